// Package investigator seeds and enriches suspect candidates by asking
// a language model to recall plausible fault spans and then probe each
// one (spec.md §4.9 step 2), ported from
// original_source/investigator.py's recall_candidates/probe.
package investigator

import (
	"context"
	"encoding/json"

	"github.com/daydemir/cip-agent/internal/astindex"
	"github.com/daydemir/cip-agent/internal/llmjson"
	"github.com/daydemir/cip-agent/internal/llmshim"
	"github.com/daydemir/cip-agent/internal/prompttpl"
	"github.com/daydemir/cip-agent/internal/types"
)

// Investigator bundles the collaborators the recall/probe stages need:
// a language model client and the symbol index built over the target
// repo. Both are passed in explicitly at construction rather than
// resolved through a package-level global.
type Investigator struct {
	Client llmshim.Client
	Index  *astindex.Index
}

func New(client llmshim.Client, index *astindex.Index) *Investigator {
	return &Investigator{Client: client, Index: index}
}

// RecallCandidates asks the language model to identify candidate fault
// spans for the failing tests in taskCtx.
func (inv *Investigator) RecallCandidates(ctx context.Context, taskCtx types.TaskContext) ([]types.Candidate, error) {
	prompt, err := prompttpl.Render(prompttpl.AstRecall, struct {
		InstanceID   string
		FailingTests []string
	}{InstanceID: taskCtx.InstanceID, FailingTests: taskCtx.FailingTests})
	if err != nil {
		return nil, err
	}

	response, err := inv.Client.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return llmjson.DecodeCandidates(response)
}

// Probe asks the language model one follow-up question per candidate
// and attaches its JSON response under candidate.Evidence["probe"],
// returning enriched copies (the originals are left untouched).
func (inv *Investigator) Probe(ctx context.Context, taskCtx types.TaskContext, candidates []types.Candidate) ([]types.Candidate, error) {
	enriched := make([]types.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		prompt, err := prompttpl.Render(prompttpl.Probe, struct {
			InstanceID  string
			CandidateID string
			Hypothesis  string
		}{InstanceID: taskCtx.InstanceID, CandidateID: candidate.ID, Hypothesis: candidate.Hypothesis})
		if err != nil {
			return nil, err
		}

		response, err := inv.Client.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}

		var notes map[string]interface{}
		if response != "" {
			if err := json.Unmarshal([]byte(response), &notes); err != nil {
				notes = map[string]interface{}{"raw": response}
			}
		}

		if candidate.Evidence == nil {
			candidate.Evidence = make(map[string]interface{})
		} else {
			copied := make(map[string]interface{}, len(candidate.Evidence))
			for k, v := range candidate.Evidence {
				copied[k] = v
			}
			candidate.Evidence = copied
		}
		candidate.Evidence["probe"] = notes
		enriched = append(enriched, candidate)
	}
	return enriched, nil
}
