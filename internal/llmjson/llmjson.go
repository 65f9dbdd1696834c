// Package llmjson decodes the free-form JSON a language model returns
// into CIP-Agent's typed domain structs (spec.md §9's "Dynamic JSON
// from the LLM" design note). Every decoder first unmarshals into a
// loose map, validates required keys/types field-by-field using
// internal/types' FieldErrors, and only then constructs the typed
// value — a direct json.Unmarshal into the domain struct would
// silently zero missing fields instead of rejecting the payload.
package llmjson

import (
	"encoding/json"
	"fmt"

	"github.com/daydemir/cip-agent/internal/errs"
	"github.com/daydemir/cip-agent/internal/types"
)

// DecodeCandidates parses the investigator recall stage's response:
// either a bare JSON array of candidates, or an object with a
// "candidates" array.
func DecodeCandidates(raw string) ([]types.Candidate, error) {
	var generic interface{}
	if err := json.Unmarshal([]byte(emptyToObject(raw)), &generic); err != nil {
		return nil, &errs.ExternalError{Stage: "investigator", Detail: "non-JSON output: " + err.Error()}
	}

	var rawList []interface{}
	switch v := generic.(type) {
	case []interface{}:
		rawList = v
	case map[string]interface{}:
		list, ok := v["candidates"].([]interface{})
		if !ok {
			return nil, &errs.ExternalError{Stage: "investigator", Detail: "'candidates' must be a JSON array"}
		}
		rawList = list
	default:
		return nil, &errs.ExternalError{Stage: "investigator", Detail: "recall output must be a JSON array or an object with 'candidates'"}
	}

	candidates := make([]types.Candidate, 0, len(rawList))
	for i, item := range rawList {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &errs.ExternalError{Stage: "investigator", Detail: fmt.Sprintf("candidate %d must be a JSON object", i)}
		}
		cand, fieldErrs := decodeCandidate(obj, i)
		if fieldErrs.HasErrors() {
			return nil, &errs.ExternalError{Stage: "investigator", Detail: fieldErrs.Report()}
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

func decodeCandidate(obj map[string]interface{}, index int) (types.Candidate, types.FieldErrors) {
	var fe types.FieldErrors

	rawSpans, ok := obj["spans"].([]interface{})
	if !ok && obj["spans"] != nil {
		fe.Add("spans", "array", obj["spans"], "candidate 'spans' must be a JSON array")
	}

	var spans []types.AstSpan
	for i, rawSpan := range rawSpans {
		spanObj, ok := rawSpan.(map[string]interface{})
		if !ok {
			fe.Add(fmt.Sprintf("spans[%d]", i), "object", rawSpan, "span must be a JSON object")
			continue
		}
		span, spanErrs := decodeSpan(spanObj)
		fe.Errors = append(fe.Errors, spanErrs.Errors...)
		spans = append(spans, span)
	}

	id, _ := obj["id"].(string)
	if id == "" {
		id = fmt.Sprintf("cand-%d", index+1)
	}
	hypothesis, _ := obj["hypothesis"].(string)
	evidence, _ := obj["evidence"].(map[string]interface{})

	return types.Candidate{
		ID:         id,
		Hypothesis: hypothesis,
		Spans:      spans,
		Evidence:   evidence,
	}, fe
}

func decodeSpan(obj map[string]interface{}) (types.AstSpan, types.FieldErrors) {
	var fe types.FieldErrors
	span := types.AstSpan{}

	file, ok := obj["file"].(string)
	if !ok {
		fe.Add("file", "string", obj["file"], "span 'file' is required")
	}
	span.File = file

	span.StartLine = intField(obj, "start_line", &fe)
	span.EndLine = intField(obj, "end_line", &fe)

	nodeType, _ := obj["node_type"].(string)
	span.NodeType = nodeType
	symbol, _ := obj["symbol"].(string)
	span.Symbol = symbol
	if score, ok := obj["score"].(float64); ok {
		span.Score = &score
	}
	return span, fe
}

func intField(obj map[string]interface{}, key string, fe *types.FieldErrors) int {
	v, ok := obj[key].(float64)
	if !ok {
		fe.Add(key, "integer", obj[key], fmt.Sprintf("'%s' is required", key))
		return 0
	}
	return int(v)
}

// DecodeUnderstanding parses the planner's synthesis response.
func DecodeUnderstanding(raw string) (types.Understanding, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(emptyToObject(raw)), &obj); err != nil {
		return types.Understanding{}, &errs.ExternalError{Stage: "planner", Detail: "non-JSON output: " + err.Error()}
	}

	summary, ok := obj["summary"].(string)
	if !ok {
		return types.Understanding{}, &errs.ExternalError{Stage: "planner", Detail: "'summary' is required"}
	}
	return types.Understanding{
		Summary:      summary,
		Invariants:   stringSlice(obj["invariants"]),
		Dependencies: stringSlice(obj["dependencies"]),
	}, nil
}

// DecodePlanSteps parses the planner's plain-step response: a JSON
// array of plan steps.
func DecodePlanSteps(raw string) ([]types.PlanStep, error) {
	var rawList []interface{}
	if err := json.Unmarshal([]byte(emptyToArray(raw)), &rawList); err != nil {
		return nil, &errs.ExternalError{Stage: "planner", Detail: "non-JSON output: " + err.Error()}
	}

	steps := make([]types.PlanStep, 0, len(rawList))
	for i, item := range rawList {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &errs.ExternalError{Stage: "planner", Detail: fmt.Sprintf("step %d must be a JSON object", i)}
		}
		var fe types.FieldErrors
		id, ok := obj["id"].(string)
		if !ok {
			fe.Add("id", "string", obj["id"], "step 'id' is required")
		}
		intent, _ := obj["intent"].(string)

		var spans []types.AstSpan
		if rawSpans, ok := obj["target_spans"].([]interface{}); ok {
			for _, rawSpan := range rawSpans {
				spanObj, ok := rawSpan.(map[string]interface{})
				if !ok {
					fe.Add("target_spans", "array of objects", rawSpan, "each target span must be a JSON object")
					continue
				}
				span, spanErrs := decodeSpan(spanObj)
				fe.Errors = append(fe.Errors, spanErrs.Errors...)
				spans = append(spans, span)
			}
		}
		if fe.HasErrors() {
			return nil, &errs.ExternalError{Stage: "planner", Detail: fe.Report()}
		}

		steps = append(steps, types.PlanStep{
			ID:            id,
			Intent:        intent,
			TargetSpans:   spans,
			Constraints:   stringSlice(obj["constraints"]),
			IdealOutcome:  stringField(obj, "ideal_outcome"),
			Check:         stringField(obj, "check"),
		})
	}
	return steps, nil
}

// DecodeDiffProposals parses the proposer's response: a JSON array of
// diff proposals.
func DecodeDiffProposals(raw string) ([]types.DiffProposal, error) {
	var rawList []interface{}
	if err := json.Unmarshal([]byte(emptyToArray(raw)), &rawList); err != nil {
		return nil, &errs.ExternalError{Stage: "proposer", Detail: "non-JSON output: " + err.Error()}
	}

	proposals := make([]types.DiffProposal, 0, len(rawList))
	for i, item := range rawList {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &errs.ExternalError{Stage: "proposer", Detail: fmt.Sprintf("proposal %d must be a JSON object", i)}
		}
		diff, ok := obj["unified_diff"].(string)
		if !ok || diff == "" {
			return nil, &errs.ExternalError{Stage: "proposer", Detail: fmt.Sprintf("proposal %d missing 'unified_diff'", i)}
		}
		stepID, _ := obj["step_id"].(string)
		rationale, _ := obj["rationale"].(string)
		proposals = append(proposals, types.DiffProposal{
			StepID:      stepID,
			UnifiedDiff: diff,
			Rationale:   rationale,
		})
	}
	return proposals, nil
}

// DecodeLandmarks parses the planner's landmark-planning response: a
// JSON array of atomic repair landmarks.
func DecodeLandmarks(raw string) ([]types.Landmark, error) {
	var rawList []interface{}
	if err := json.Unmarshal([]byte(emptyToArray(raw)), &rawList); err != nil {
		return nil, &errs.ExternalError{Stage: "planner", Detail: "non-JSON output: " + err.Error()}
	}

	landmarks := make([]types.Landmark, 0, len(rawList))
	for i, item := range rawList {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &errs.ExternalError{Stage: "planner", Detail: fmt.Sprintf("landmark %d must be a JSON object", i)}
		}
		var fe types.FieldErrors
		id, ok := obj["id"].(string)
		if !ok {
			fe.Add("id", "string", obj["id"], "landmark 'id' is required")
		}

		var spans []types.AstSpan
		if rawSpans, ok := obj["target_spans"].([]interface{}); ok {
			for _, rawSpan := range rawSpans {
				spanObj, ok := rawSpan.(map[string]interface{})
				if !ok {
					fe.Add("target_spans", "array of objects", rawSpan, "each target span must be a JSON object")
					continue
				}
				span, spanErrs := decodeSpan(spanObj)
				fe.Errors = append(fe.Errors, spanErrs.Errors...)
				spans = append(spans, span)
			}
		}
		if fe.HasErrors() {
			return nil, &errs.ExternalError{Stage: "planner", Detail: fe.Report()}
		}

		confidence, _ := obj["confidence"].(float64)
		landmarks = append(landmarks, types.Landmark{
			ID:           id,
			Intent:       stringField(obj, "intent"),
			TargetSpans:  spans,
			Constraints:  stringSlice(obj["constraints"]),
			LandmarkTest: stringField(obj, "landmark_test"),
			RollbackOn:   stringSlice(obj["rollback_on"]),
			Risk:         stringField(obj, "risk"),
			Confidence:   confidence,
			TryAfter:     stringField(obj, "try_after"),
		})
	}
	return landmarks, nil
}

func stringField(obj map[string]interface{}, key string) string {
	v, _ := obj[key].(string)
	return v
}

func stringSlice(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func emptyToObject(raw string) string {
	if raw == "" {
		return "{}"
	}
	return raw
}

func emptyToArray(raw string) string {
	if raw == "" {
		return "[]"
	}
	return raw
}
