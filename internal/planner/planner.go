// Package planner turns candidate evidence into a structured
// understanding and a concrete list of plan steps (spec.md §4.9 step
// 3), ported from original_source/planner.py's synthesize/plan.
package planner

import (
	"context"
	"fmt"

	"github.com/daydemir/cip-agent/internal/llmjson"
	"github.com/daydemir/cip-agent/internal/llmshim"
	"github.com/daydemir/cip-agent/internal/prompttpl"
	"github.com/daydemir/cip-agent/internal/types"
)

type Planner struct {
	Client llmshim.Client
}

func New(client llmshim.Client) *Planner {
	return &Planner{Client: client}
}

// Synthesize combines candidate hypotheses into a single Understanding.
func (p *Planner) Synthesize(ctx context.Context, candidates []types.Candidate) (types.Understanding, error) {
	prompt, err := prompttpl.Render(prompttpl.Synthesize, struct{ Candidates []types.Candidate }{Candidates: candidates})
	if err != nil {
		return types.Understanding{}, err
	}
	response, err := p.Client.Complete(ctx, prompt)
	if err != nil {
		return types.Understanding{}, err
	}
	return llmjson.DecodeUnderstanding(response)
}

// Plan asks the language model for a list of plan steps that would
// realize understanding, truncated to maxSteps.
func (p *Planner) Plan(ctx context.Context, understanding types.Understanding, maxSteps int) ([]types.PlanStep, error) {
	prompt, err := prompttpl.Render(prompttpl.Synthesize, struct{ Candidates []types.Candidate }{})
	if err != nil {
		return nil, err
	}
	prompt = fmt.Sprintf("%s\nPLAN: %s", prompt, understanding.Summary)

	response, err := p.Client.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	steps, err := llmjson.DecodePlanSteps(response)
	if err != nil {
		return nil, err
	}
	if maxSteps > 0 && len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	return steps, nil
}

// PlanLandmarks asks the language model for up to maxLandmarks atomic
// repair landmarks realizing understanding, used in place of Plan when
// search.use_landmarks is enabled.
func (p *Planner) PlanLandmarks(ctx context.Context, understanding types.Understanding, maxLandmarks int) ([]types.Landmark, error) {
	prompt, err := prompttpl.Render(prompttpl.Landmarks, struct {
		MaxLandmarks int
		Summary      string
		Invariants   []string
	}{MaxLandmarks: maxLandmarks, Summary: understanding.Summary, Invariants: understanding.Invariants})
	if err != nil {
		return nil, err
	}

	response, err := p.Client.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	landmarks, err := llmjson.DecodeLandmarks(response)
	if err != nil {
		return nil, err
	}
	if maxLandmarks > 0 && len(landmarks) > maxLandmarks {
		landmarks = landmarks[:maxLandmarks]
	}
	return landmarks, nil
}
