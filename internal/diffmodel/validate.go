package diffmodel

import (
	"fmt"
	"strings"

	"github.com/daydemir/cip-agent/internal/errs"
	"github.com/daydemir/cip-agent/internal/types"
)

// RequireUnifiedDiff does a cheap shape check before the full parse:
// the text must start with "diff --git", must contain at least one
// hunk header, and must not contain a suspicious "+def"/"+class" line
// ending in "::" — a tell that the model emitted a doubled colon while
// hallucinating a signature edit.
func RequireUnifiedDiff(diff string) error {
	if !strings.HasPrefix(diff, "diff --git") {
		return &errs.ValidationError{Reason: "diff must start with 'diff --git'"}
	}
	if !strings.Contains(diff, "@@") {
		return &errs.ValidationError{Reason: "diff must contain a hunk header '@@'"}
	}
	for _, line := range strings.Split(diff, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "+def") || strings.HasPrefix(stripped, "+class") {
			if strings.HasSuffix(stripped, "::") {
				return &errs.ValidationError{Reason: "suspicious double-colon in definition header"}
			}
		}
	}
	return nil
}

type spanRange struct{ start, end int }

func spanMap(spans []types.AstSpan, padding int) map[string][]spanRange {
	out := make(map[string][]spanRange)
	for _, s := range spans {
		start := s.StartLine - padding
		if start < 1 {
			start = 1
		}
		end := s.EndLine + padding
		if end < start {
			end = start
		}
		out[s.File] = append(out[s.File], spanRange{start, end})
	}
	return out
}

func lineAllowed(ranges map[string][]spanRange, file string, line int) bool {
	for _, r := range ranges[file] {
		if line >= r.start && line <= r.end {
			return true
		}
	}
	return false
}

// LimitOptions configures EnsureWithinLimits, the bounded-edit-scope
// policy that every candidate diff must pass before the TNR Executor
// is allowed to apply it (spec.md §4.1, §4.8).
type LimitOptions struct {
	AllowedFiles   map[string]bool
	MaxLOC         int
	MaxFiles       int
	TargetSpans    []types.AstSpan
	PaddingLines   int
	AllowAPIChange bool
}

// EnsureWithinLimits walks the diff text line by line, re-seeding old-
// and new-side cursors at each hunk header, and rejects it unless:
//   - it touches at least one file, no more than MaxFiles, all within
//     AllowedFiles;
//   - it changes no more lines than MaxLOC;
//   - it touches at least one file that TargetSpans names;
//   - every added/removed body line falls within its file's target
//     spans (padded by PaddingLines);
//   - it does not add and remove differing "def ..." signatures in the
//     same hunk unless AllowAPIChange is set.
func EnsureWithinLimits(diff string, opts LimitOptions) error {
	if err := RequireUnifiedDiff(diff); err != nil {
		return err
	}

	parsed, err := Parse(diff)
	if err != nil {
		return &errs.ValidationError{Reason: err.Error()}
	}

	files := TouchedFiles(parsed)
	if len(files) == 0 {
		return &errs.ValidationError{Reason: "diff must touch at least one file header"}
	}
	if len(files) > opts.MaxFiles {
		return &errs.ValidationError{Reason: "diff touches too many files"}
	}
	for _, f := range files {
		if !opts.AllowedFiles[f] {
			return &errs.ValidationError{Reason: fmt.Sprintf("diff touches file outside of allowed set: %s", f)}
		}
	}

	loc := ChangedLOC(parsed)
	if loc > opts.MaxLOC {
		return &errs.ValidationError{Reason: "diff changes too many lines"}
	}

	spanFiles := make(map[string]bool)
	for _, s := range opts.TargetSpans {
		spanFiles[s.File] = true
	}
	touchesTarget := false
	for _, f := range files {
		if spanFiles[f] {
			touchesTarget = true
			break
		}
	}
	if !touchesTarget {
		return &errs.ValidationError{Reason: "diff does not touch any target span files"}
	}

	ranges := spanMap(opts.TargetSpans, opts.PaddingLines)

	for _, section := range parsed.Sections {
		file := section.NewPath
		for _, hunk := range section.Hunks {
			oldLine := hunk.OldStart
			newLine := hunk.NewStart
			removedDefs := make(map[string]bool)
			addedDefs := make(map[string]bool)

			for _, line := range hunk.Lines {
				switch {
				case line == "":
					continue
				case strings.HasPrefix(line, " "):
					oldLine++
					newLine++
				case strings.HasPrefix(line, "-"):
					if !lineAllowed(ranges, file, oldLine) {
						return &errs.ValidationError{Reason: fmt.Sprintf("deletion at %s:%d outside allowed spans", file, oldLine)}
					}
					if strings.HasPrefix(line, "-def ") && !opts.AllowAPIChange {
						removedDefs[strings.TrimSpace(line[1:])] = true
					}
					oldLine++
				case strings.HasPrefix(line, "+"):
					if !lineAllowed(ranges, file, newLine) {
						return &errs.ValidationError{Reason: fmt.Sprintf("addition at %s:%d outside allowed spans", file, newLine)}
					}
					if strings.HasPrefix(line, "+def ") && !opts.AllowAPIChange {
						addedDefs[strings.TrimSpace(line[1:])] = true
					}
					newLine++
				default:
					// "\ No newline at end of file" and similar markers.
				}
			}
			if len(addedDefs) > 0 && len(removedDefs) > 0 && !sameDefSet(addedDefs, removedDefs) && !opts.AllowAPIChange {
				return &errs.ValidationError{Reason: "public API signature change detected in diff"}
			}
		}
	}

	return nil
}

func sameDefSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
