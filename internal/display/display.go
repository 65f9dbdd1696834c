// Package display provides unified terminal output for cip-agent,
// separating run/step banners from the raw NDJSON event stream the
// Controller emits through internal/runlog.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/daydemir/cip-agent/internal/types"
)

// Display handles all CLI output with visual hierarchy.
type Display struct {
	theme     *Theme
	termWidth int
	noColor   bool
	stream    bool
}

// New creates a Display with the given color and event-streaming
// preference. stream mirrors config's logging.stream: when false,
// per-event lines are suppressed and only banners/gate results print.
func New(noColor, stream bool) *Display {
	d := &Display{
		termWidth: getTerminalWidth(),
		noColor:   noColor,
		stream:    stream,
	}
	if noColor {
		d.theme = NoColorTheme()
	} else {
		d.theme = DefaultTheme()
	}
	return d
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 40 {
		return 80
	}
	if width > 120 {
		return 120
	}
	return width
}

// RunHeader prints a boxed banner when a run starts.
func (d *Display) RunHeader(instanceID, repoPath string) {
	d.Box("CIP-AGENT", fmt.Sprintf("instance: %s", instanceID), fmt.Sprintf("repo: %s", repoPath))
}

// Box prints a boxed message with a custom title.
func (d *Display) Box(title string, lines ...string) {
	if len(lines) == 0 {
		return
	}

	width := d.termWidth - 2
	titleLen := len(title) + 4
	remainingWidth := width - titleLen
	if remainingWidth < 0 {
		remainingWidth = 0
	}

	topLine := BoxTopLeft + BoxHorizontal + " " + title + " " + strings.Repeat(BoxHorizontal, remainingWidth) + BoxTopRight
	fmt.Println(d.theme.BannerBorder(topLine))

	for _, line := range lines {
		padded := d.padRight(line, width-2)
		fmt.Println(d.theme.BannerBorder(BoxVertical) + " " + d.theme.BannerText(padded) + " " + d.theme.BannerBorder(BoxVertical))
	}

	bottomLine := BoxBottomLeft + strings.Repeat(BoxHorizontal, width) + BoxBottomRight
	fmt.Println(d.theme.BannerBorder(bottomLine))
}

// Status prints a single-line timestamped status message.
func (d *Display) Status(symbol, message string) {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Printf("%s %s %s\n", d.theme.BannerBorder(timestamp), symbol, d.theme.BannerText(message))
}

// Success prints a success message with a green checkmark.
func (d *Display) Success(message string) {
	d.Status(d.theme.Success(SymbolSuccess), message)
}

// Error prints an error message with a red X.
func (d *Display) Error(message string) {
	d.Status(d.theme.Error(SymbolError), message)
}

// Warning prints a warning message with a yellow triangle.
func (d *Display) Warning(message string) {
	d.Status(d.theme.Warning(SymbolWarning), message)
}

// Retry prints a step-retry message with a cyan arrow.
func (d *Display) Retry(stepID string, attempt, max int) {
	d.Status(d.theme.Info(SymbolRetry), fmt.Sprintf("retrying %s (%d/%d)", stepID, attempt, max))
}

// Step prints the banner for a single plan step's start.
func (d *Display) Step(index, total int, step types.PlanStep) {
	d.SectionBreak()
	fmt.Printf("Step %d/%d: %s — %s\n", index, total, d.theme.Info(step.ID), step.Intent)
	d.SectionBreak()
}

// GateResult prints a gate's pass/fail outcome.
func (d *Display) GateResult(gate string, passed bool, detail string) {
	if passed {
		d.Success(fmt.Sprintf("gate %s passed", gate))
		return
	}
	msg := fmt.Sprintf("gate %s failed", gate)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, Truncate(detail, 160))
	}
	d.Error(msg)
}

// Commit prints a step's commit outcome.
func (d *Display) Commit(stepID string, committed bool) {
	if committed {
		d.Success(fmt.Sprintf("step %s committed", stepID))
	} else {
		d.Error(fmt.Sprintf("step %s rolled back", stepID))
	}
}

// Event prints a timestamped, word-wrapped line for one run event,
// when streaming is enabled.
func (d *Display) Event(kind, summary string) {
	if !d.stream {
		return
	}
	timestamp := time.Now().Format("[15:04:05]")
	lines := d.wrapText(summary, d.termWidth-20)
	for i, line := range lines {
		if i == 0 {
			fmt.Printf("  %s %s %s\n", d.theme.EventTimestamp(timestamp), d.theme.EventBadge("["+kind+"]"), d.theme.EventText(line))
		} else {
			fmt.Printf("  %s%s\n", strings.Repeat(" ", 10), d.theme.EventText(line))
		}
	}
}

// FinalPatch prints the run's closing banner: where the patch and logs
// landed.
func (d *Display) FinalPatch(patchLines int, logDir string) {
	d.Box("RESULT", fmt.Sprintf("final patch: %d lines", patchLines), fmt.Sprintf("logs: %s", logDir))
}

// SectionBreak prints a horizontal separator for step boundaries.
func (d *Display) SectionBreak() {
	fmt.Println(d.theme.Separator(strings.Repeat(SectionBreak, d.termWidth)))
}

// wrapText wraps text to the given width, capped at 5 lines.
func (d *Display) wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		maxWidth = 80
	}
	text = strings.TrimSpace(text)
	if len(text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > maxWidth {
			if current.Len() > 0 {
				lines = append(lines, current.String())
				current.Reset()
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	if len(lines) > 5 {
		lines = lines[:5]
		if len(lines[4]) > maxWidth-3 {
			lines[4] = lines[4][:maxWidth-3]
		}
		lines[4] = lines[4] + "..."
	}
	return lines
}

// Theme returns the current theme for external use.
func (d *Display) Theme() *Theme {
	return d.theme
}

func (d *Display) padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Truncate truncates text to max length with an ellipsis.
func Truncate(s string, max int) string {
	s = CleanText(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// CleanText removes newlines and collapses repeated spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}
