// Package fusion reduces a Blackboard snapshot to a single ranked
// FailurePattern (spec.md §4.7): one primary location, a short list of
// alternatives, the invariants the investigation confirmed, and a
// confidence score derived from accumulated probe info-gain.
package fusion

import (
	"fmt"
	"math"
	"sort"

	"github.com/daydemir/cip-agent/internal/types"
)

// epsilon keeps confidence's denominator from dividing by zero when no
// probe ever ran.
const epsilon = 1e-9

// Fuse implements spec.md §4.7's reduction verbatim.
func Fuse(bb types.Blackboard) types.FailurePattern {
	ranked := rankSuspects(bb.Suspects)
	if len(ranked) == 0 {
		return types.FailurePattern{
			Summary:    "no suspects identified",
			Confidence: 0,
		}
	}

	primary := ranked[0]
	var alternatives []types.Alternative
	for _, n := range ranked[1:] {
		if len(alternatives) >= 3 {
			break
		}
		alternatives = append(alternatives, types.Alternative{
			Span: n.Span,
			Why:  topObservationWhy(bb.Observables, n.ID),
		})
	}

	invariants := dedupInvariants(bb.Invariants, bb.Observables)
	confidence := computeConfidence(bb.Observables)
	summary := summarize(primary, bb.Observables)

	return types.FailurePattern{
		Summary:         summary,
		PrimaryLocation: primary.Span,
		Alternatives:    alternatives,
		Invariants:      invariants,
		Confidence:      confidence,
	}
}

// rankSuspects sorts nodes by descending suspicion, tie-broken by
// earliest hop, then lexicographic id — spec.md §4.7's primary/runner-
// up ordering.
func rankSuspects(nodes []types.Node) []types.Node {
	ranked := append([]types.Node(nil), nodes...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Suspicion != b.Suspicion {
			return a.Suspicion > b.Suspicion
		}
		if a.Hop != b.Hop {
			return a.Hop < b.Hop
		}
		return a.ID < b.ID
	})
	return ranked
}

func topObservationWhy(observables []map[string]interface{}, suspectID string) string {
	best, bestGain := map[string]interface{}(nil), math.Inf(-1)
	for _, obs := range observables {
		if stringField(obs, "suspect_id") != suspectID {
			continue
		}
		gain := floatField(obs, "info_gain")
		if gain > bestGain {
			best, bestGain = obs, gain
		}
	}
	if best == nil {
		return "no supporting observation"
	}
	return fmt.Sprintf("%s (%s)", stringField(best, "recommendation"), stringField(best, "result"))
}

func dedupInvariants(base []string, observables []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(inv string) {
		if inv == "" || seen[inv] {
			return
		}
		seen[inv] = true
		out = append(out, inv)
	}
	for _, inv := range base {
		add(inv)
	}
	for _, obs := range observables {
		if stringField(obs, "recommendation") != "likely_cause" {
			continue
		}
		nested, ok := obs["observations"].(map[string]interface{})
		if !ok {
			continue
		}
		if inv, ok := nested["invariant"].(string); ok {
			add(inv)
		}
	}
	return out
}

// computeConfidence implements spec.md §4.7's literal formula:
// clamp01(Σ gain(likely_cause) / (Σ gain(all) + ε)), summed across
// every likely_cause-labelled probe report on the Blackboard, not only
// those attached to the primary suspect.
func computeConfidence(observables []map[string]interface{}) float64 {
	var likelyGain, totalGain float64
	for _, obs := range observables {
		gain := floatField(obs, "info_gain")
		totalGain += gain
		if stringField(obs, "recommendation") == "likely_cause" {
			likelyGain += gain
		}
	}
	return clamp01(likelyGain / (totalGain + epsilon))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func summarize(primary types.Node, observables []map[string]interface{}) string {
	kind := mostFrequentKind(observables)
	symbol := primary.Span.Symbol
	if symbol == "" {
		symbol = primary.ID
	}
	if kind == "" {
		return fmt.Sprintf("suspect %s is the likely fault location", symbol)
	}
	return fmt.Sprintf("suspect %s is the likely fault location (%s observations dominate)", symbol, kind)
}

func mostFrequentKind(observables []map[string]interface{}) string {
	counts := make(map[string]int)
	for _, obs := range observables {
		kind := stringField(obs, "recommendation")
		if kind == "" {
			continue
		}
		counts[kind]++
	}
	best, bestCount := "", 0
	// Deterministic iteration: sort keys before comparing counts.
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func floatField(m map[string]interface{}, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
