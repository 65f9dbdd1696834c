// Package proposer asks a language model for candidate unified diffs
// that realize a single plan step (spec.md §4.9 step 4), ported from
// original_source/proposer.py's propose.
package proposer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/daydemir/cip-agent/internal/llmjson"
	"github.com/daydemir/cip-agent/internal/llmshim"
	"github.com/daydemir/cip-agent/internal/prompttpl"
	"github.com/daydemir/cip-agent/internal/types"
)

type Proposer struct {
	Client llmshim.Client
}

func New(client llmshim.Client) *Proposer {
	return &Proposer{Client: client}
}

// Propose renders step and ctxFiles into a prompt, asks the model for
// up to k diff proposals, and returns them truncated to k.
func (p *Proposer) Propose(ctx context.Context, step types.PlanStep, ctxFiles map[string]string, k int) ([]types.DiffProposal, error) {
	prompt, err := prompttpl.Render(prompttpl.ProposeDiff, struct {
		StepID       string
		Intent       string
		IdealOutcome string
		Context      string
		K            int
	}{
		StepID:       step.ID,
		Intent:       step.Intent,
		IdealOutcome: step.IdealOutcome,
		Context:      buildContext(ctxFiles),
		K:            k,
	})
	if err != nil {
		return nil, err
	}

	response, err := p.Client.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	proposals, err := llmjson.DecodeDiffProposals(response)
	if err != nil {
		return nil, err
	}

	for i := range proposals {
		if proposals[i].StepID == "" {
			proposals[i].StepID = step.ID
		}
	}

	if k > 0 && len(proposals) > k {
		proposals = proposals[:k]
	}
	return proposals, nil
}

// buildContext renders ctxFiles as "FILE: <path>\n<content>" blocks in
// deterministic (sorted) file order, joined by blank lines.
func buildContext(ctxFiles map[string]string) string {
	files := make([]string, 0, len(ctxFiles))
	for file := range ctxFiles {
		files = append(files, file)
	}
	sort.Strings(files)

	blocks := make([]string, 0, len(files))
	for _, file := range files {
		blocks = append(blocks, fmt.Sprintf("FILE: %s\n%s", file, ctxFiles[file]))
	}
	return strings.Join(blocks, "\n\n")
}
