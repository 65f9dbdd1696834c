// Package llmshim is the narrow seam between CIP-Agent's core and
// whatever language model backend a deployment wires in. The core
// never imports a concrete provider; it only calls Client.Complete.
package llmshim

import (
	"context"
	"errors"
)

// ErrNoLLMClientConfigured is returned by the default client, so a
// deployment that forgets to wire one fails loudly at the call site
// rather than silently returning empty completions.
var ErrNoLLMClientConfigured = errors.New("llmshim: no client configured")

// Client is the single capability the investigator, planner, and
// proposer stages need from a language model.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// unconfigured is the zero-value Client: every call fails with
// ErrNoLLMClientConfigured. Passing this explicitly (rather than a nil
// Client that would panic on use) keeps call sites' failure mode
// uniform.
type unconfigured struct{}

func (unconfigured) Complete(ctx context.Context, prompt string) (string, error) {
	return "", ErrNoLLMClientConfigured
}

// Unconfigured returns a Client whose every call fails with
// ErrNoLLMClientConfigured, for callers that have not wired a real
// backend yet. CIP-Agent passes a Client explicitly through each
// stage's constructor rather than mutating a package-level global —
// the global `llm.complete`/injected-client pattern the source used is
// deliberately not carried forward (spec.md §9 calls it out as a
// design smell: "model as an injected capability, not process-wide
// state").
func Unconfigured() Client { return unconfigured{} }
