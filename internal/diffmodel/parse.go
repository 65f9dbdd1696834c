// Package diffmodel parses unified diffs and enforces the bounded-scope
// edit policy that gates every candidate patch before it reaches disk
// (spec.md §4.1). The parser and validator share one line-cursor
// discipline: old-side and new-side line numbers are carried together
// and re-seeded only at each hunk header, which is what makes the
// span-containment check in EnsureWithinLimits sound.
package diffmodel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	diffHeaderRe = regexp.MustCompile(`^diff --git a/(\S+) b/(\S+)`)
	hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
)

// Hunk is one `@@ ... @@`-delimited region of a FileSection. Lines
// retains the raw body lines in order, each still carrying its leading
// ' ', '+', or '-' marker (or the "\ No newline at end of file" marker,
// kept verbatim and otherwise ignored).
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []string
}

// FileSection is everything under one `diff --git` header.
type FileSection struct {
	OldPath    string // path after "a/", as written in the header
	NewPath    string // path after "b/", as written in the header
	OldHeader  string // the "--- ..." line, if present
	NewHeader  string // the "+++ ..." line, if present
	HasOldHdr  bool
	HasNewHdr  bool
	Hunks      []Hunk
}

// ParsedDiff is a structured unified diff: an ordered list of file
// sections, each with its hunks.
type ParsedDiff struct {
	Sections []FileSection
}

// Parse parses a unified diff of the form produced by standard VCS
// tooling (spec.md §4.1): a sequence of `diff --git` sections, each
// with optional `---`/`+++` headers, followed by one or more hunks.
func Parse(diff string) (*ParsedDiff, error) {
	if err := RequireUnifiedDiff(diff); err != nil {
		return nil, err
	}

	lines := strings.Split(diff, "\n")
	parsed := &ParsedDiff{}
	var current *FileSection
	var hunk *Hunk

	flushHunk := func() {
		if current != nil && hunk != nil {
			current.Hunks = append(current.Hunks, *hunk)
			hunk = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := diffHeaderRe.FindStringSubmatch(line); m != nil {
			flushHunk()
			if current != nil {
				parsed.Sections = append(parsed.Sections, *current)
			}
			current = &FileSection{OldPath: m[1], NewPath: m[2]}
			if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "--- ") {
				current.OldHeader = lines[i+1]
				current.HasOldHdr = true
				i++
			}
			if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ") {
				current.NewHeader = lines[i+1]
				current.HasNewHdr = true
				i++
			}
			continue
		}

		if strings.HasPrefix(line, "@@") {
			if current == nil {
				return nil, &parseError{"hunk header appears before any diff --git header"}
			}
			m := hunkHeaderRe.FindStringSubmatch(line)
			if m == nil {
				return nil, &parseError{fmt.Sprintf("malformed hunk header: %q", line)}
			}
			flushHunk()
			hunk = &Hunk{
				OldStart: atoiOr(m[1], 0),
				OldCount: atoiOr(m[2], 1),
				NewStart: atoiOr(m[3], 0),
				NewCount: atoiOr(m[4], 1),
			}
			continue
		}

		if hunk != nil {
			hunk.Lines = append(hunk.Lines, line)
		}
	}
	flushHunk()
	if current != nil {
		parsed.Sections = append(parsed.Sections, *current)
	}

	if len(parsed.Sections) == 0 {
		return nil, &parseError{"diff contains no file sections"}
	}
	return parsed, nil
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// TouchedFiles returns the set of distinct new-side ("b/...") paths
// touched by the diff, in first-seen order.
func TouchedFiles(p *ParsedDiff) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range p.Sections {
		if !seen[s.NewPath] {
			seen[s.NewPath] = true
			out = append(out, s.NewPath)
		}
	}
	return out
}

// ChangedLOC counts the total number of added and removed body lines
// across the diff.
func ChangedLOC(p *ParsedDiff) int {
	n := 0
	for _, s := range p.Sections {
		for _, h := range s.Hunks {
			for _, l := range h.Lines {
				if strings.HasPrefix(l, "+") || strings.HasPrefix(l, "-") {
					n++
				}
			}
		}
	}
	return n
}

// Reserialize rebuilds a textual unified diff from a ParsedDiff. It is
// not guaranteed byte-identical to the original text (header spacing,
// no-newline markers elsewhere may differ); it preserves the touched
// file set and the added/removed line multisets, which is the contract
// spec.md §8's round-trip property tests.
func Reserialize(p *ParsedDiff) string {
	var sb strings.Builder
	for _, s := range p.Sections {
		fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", s.OldPath, s.NewPath)
		if s.HasOldHdr {
			sb.WriteString(s.OldHeader)
			sb.WriteString("\n")
		}
		if s.HasNewHdr {
			sb.WriteString(s.NewHeader)
			sb.WriteString("\n")
		}
		for _, h := range s.Hunks {
			fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
			for _, l := range h.Lines {
				sb.WriteString(l)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

type parseError struct{ msg string }

func (e *parseError) Error() string { return "diffmodel: " + e.msg }
