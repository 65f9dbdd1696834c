package diffmodel

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/daydemir/cip-agent/internal/errs"
)

// NormalizeDiff rewrites a diff so every file section carries explicit
// "--- "/"+++ " headers, synthesizing them from the "diff --git a/X
// b/Y" line when the model omitted them. The VCS Gateway normalizes
// before handing a diff to `git apply`, since git is stricter about
// header presence than the bounded-scope validator is.
func NormalizeDiff(diff string) string {
	lines := strings.Split(diff, "\n")
	var out []string
	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(line, "diff --git") {
			out = append(out, line)
			parts := strings.Fields(line)
			var aPath, bPath string
			if len(parts) >= 4 {
				aPath, bPath = parts[2], parts[3]
			}
			i++
			if i < len(lines) && strings.HasPrefix(lines[i], "--- ") {
				out = append(out, lines[i])
				i++
			} else {
				out = append(out, "--- "+aPath)
			}
			if i < len(lines) && strings.HasPrefix(lines[i], "+++ ") {
				out = append(out, lines[i])
				i++
			} else {
				out = append(out, "+++ "+bPath)
			}
			continue
		}
		out = append(out, line)
		i++
	}
	text := strings.Join(out, "\n")
	if strings.HasSuffix(diff, "\n") && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}

// ApplyHunkToLines replays hunk's body lines against the original file
// content (split into lines that retain their trailing newline) and
// returns the patched content. It is a context-free patch: it trusts
// the hunk's own context/add/remove markers rather than the line
// numbers in the hunk header, matching the teacher corpus's
// manual-apply fallback semantics.
//
// The pointer into original is local to this one call and is never
// reset mid-section: callers that need to apply every hunk of a file
// section must flatten those hunks into one Hunk first (flattenHunks)
// rather than calling this once per hunk, or later hunks walk from the
// file's start instead of continuing where the previous hunk left off.
// This mirrors original_source/vcs.py's _apply_hunks, which
// concatenates a whole section's hunk lines and walks them with a
// single pointer.
func ApplyHunkToLines(original []string, hunk Hunk) []string {
	pointer := 0
	var out []string
	for _, line := range hunk.Lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			continue
		case strings.HasPrefix(line, " "):
			if pointer < len(original) {
				out = append(out, original[pointer])
				pointer++
			}
		case strings.HasPrefix(line, "-"):
			pointer++
		case strings.HasPrefix(line, "+"):
			text := line[1:]
			if !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
			out = append(out, text)
		default:
			// "\ No newline at end of file" and other markers: skip.
		}
	}
	out = append(out, original[pointer:]...)
	return out
}

// flattenHunks concatenates a file section's hunks into one Hunk whose
// Lines is every hunk's body lines in order, so ApplyHunkToLines walks
// the whole section with a single continuous pointer instead of
// restarting at line 0 for every hunk after the first.
func flattenHunks(hunks []Hunk) Hunk {
	var flat Hunk
	for _, h := range hunks {
		flat.Lines = append(flat.Lines, h.Lines...)
	}
	return flat
}

// ManualApply reconstructs the patched content of every touched file by
// flattening each section's hunks into one continuous pointer walk and
// writing the result back to repoRoot. It is the Applier's fallback
// path for diffs that the VCS Gateway's native `git apply` rejects
// (spec.md §4.2) — usually because the model's line numbers have
// drifted from HEAD while the surrounding context lines are still
// correct.
func ManualApply(diff string, repoRoot string) error {
	parsed, err := Parse(diff)
	if err != nil {
		return &errs.ApplyError{Reason: err.Error()}
	}
	for _, section := range parsed.Sections {
		path := filepath.Join(repoRoot, section.NewPath)
		raw, err := os.ReadFile(path)
		if err != nil {
			return &errs.ApplyError{Reason: "manual apply: " + err.Error()}
		}
		original := splitKeepEnds(string(raw))
		original = ApplyHunkToLines(original, flattenHunks(section.Hunks))
		if err := os.WriteFile(path, []byte(strings.Join(original, "")), 0o644); err != nil {
			return &errs.ApplyError{Reason: "manual apply: " + err.Error()}
		}
	}
	return nil
}

// splitKeepEnds splits text into lines, each retaining its trailing
// "\n" (mirroring Python's str.splitlines(keepends=True)).
func splitKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	start := 0
	for i, r := range text {
		if r == '\n' {
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
