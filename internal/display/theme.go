package display

import "github.com/fatih/color"

// Box drawing characters
const (
	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxHorizontal  = "─"
	BoxVertical    = "│"
	SectionBreak   = "━"
)

// Status symbols
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolRetry   = "↻"
	SymbolPending = "○"
)

// IndentEvent is the indentation for streamed event lines.
const IndentEvent = "  "

// Theme holds all color functions for consistent styling.
type Theme struct {
	// Controller banner (run/step boundaries)
	BannerBorder func(a ...interface{}) string
	BannerLabel  func(a ...interface{}) string
	BannerText   func(a ...interface{}) string

	// Streamed event lines (subdued, one per NDJSON event)
	EventTimestamp func(a ...interface{}) string
	EventText      func(a ...interface{}) string
	EventBadge     func(a ...interface{}) string

	// Status indicators
	Success func(a ...interface{}) string
	Error   func(a ...interface{}) string
	Warning func(a ...interface{}) string
	Info    func(a ...interface{}) string

	// Structural elements
	Bold      func(a ...interface{}) string
	Dim       func(a ...interface{}) string
	Separator func(a ...interface{}) string
}

// DefaultTheme creates the default color theme.
func DefaultTheme() *Theme {
	return &Theme{
		BannerBorder: color.New(color.FgCyan).SprintFunc(),
		BannerLabel:  color.New(color.FgCyan, color.Bold).SprintFunc(),
		BannerText:   color.New(color.FgWhite).SprintFunc(),

		EventTimestamp: color.New(color.FgHiBlack).SprintFunc(),
		EventText:      color.New(color.FgWhite).SprintFunc(),
		EventBadge:     color.New(color.FgHiBlack).SprintFunc(),

		Success: color.New(color.FgGreen).SprintFunc(),
		Error:   color.New(color.FgRed).SprintFunc(),
		Warning: color.New(color.FgYellow).SprintFunc(),
		Info:    color.New(color.FgCyan).SprintFunc(),

		Bold:      color.New(color.Bold).SprintFunc(),
		Dim:       color.New(color.FgHiBlack).SprintFunc(),
		Separator: color.New(color.FgCyan).SprintFunc(),
	}
}

// NoColorTheme creates a theme without colors, for --no-color or a
// non-TTY stdout.
func NoColorTheme() *Theme {
	identity := func(a ...interface{}) string {
		if len(a) == 0 {
			return ""
		}
		return a[0].(string)
	}
	return &Theme{
		BannerBorder:   identity,
		BannerLabel:    identity,
		BannerText:     identity,
		EventTimestamp: identity,
		EventText:      identity,
		EventBadge:     identity,
		Success:        identity,
		Error:          identity,
		Warning:        identity,
		Info:           identity,
		Bold:           identity,
		Dim:            identity,
		Separator:      identity,
	}
}
