// Package types holds the core data model shared across CIP-Agent's
// subsystems: spans located by the AST index, suspects and evidence
// tracked on the Blackboard, plan steps and diff proposals produced by
// the planning glue, and the task/config context threaded through a run.
package types

import "fmt"

// AstSpan is a half-open region of a text file located by the AST index.
// Immutable once constructed; produced by internal/astindex and by
// internal/llmjson's decoders of model output.
type AstSpan struct {
	File      string   `json:"file"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	NodeType  string   `json:"node_type"`
	Symbol    string   `json:"symbol,omitempty"`
	Score     *float64 `json:"score,omitempty"`
}

// Validate checks the span's invariants: 1 <= start_line <= end_line and
// file is a repo-relative forward-slash path.
func (s AstSpan) Validate() error {
	if s.StartLine < 1 {
		return fmt.Errorf("astspan: start_line must be >= 1, got %d", s.StartLine)
	}
	if s.EndLine < s.StartLine {
		return fmt.Errorf("astspan: end_line %d must be >= start_line %d", s.EndLine, s.StartLine)
	}
	if s.File == "" {
		return fmt.Errorf("astspan: file is required")
	}
	for i := 0; i < len(s.File); i++ {
		if s.File[i] == '\\' {
			return fmt.Errorf("astspan: file %q must use forward slashes", s.File)
		}
	}
	return nil
}
