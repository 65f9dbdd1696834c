package proposer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/cip-agent/internal/types"
)

type stubClient struct {
	response string
	prompts  []string
}

func (s *stubClient) Complete(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, nil
}

func TestProposeDecodesAndFillsStepID(t *testing.T) {
	client := &stubClient{response: `[{"unified_diff":"diff --git a/mod.py b/mod.py","rationale":"flip sign"}]`}
	p := New(client)

	step := types.PlanStep{ID: "step-1", Intent: "fix sign", IdealOutcome: "tests pass"}
	proposals, err := p.Propose(context.Background(), step, map[string]string{"mod.py": "def add(x, y):\n    return x - y\n"}, 2)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "step-1", proposals[0].StepID)
	assert.Equal(t, "flip sign", proposals[0].Rationale)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "step_id: step-1")
	assert.Contains(t, client.prompts[0], "FILE: mod.py")
	assert.Contains(t, client.prompts[0], "Respond with up to 2 JSON objects")
}

func TestProposeTruncatesToK(t *testing.T) {
	client := &stubClient{response: `[{"unified_diff":"d1"},{"unified_diff":"d2"},{"unified_diff":"d3"}]`}
	p := New(client)

	proposals, err := p.Propose(context.Background(), types.PlanStep{ID: "step-1"}, nil, 1)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "d1", proposals[0].UnifiedDiff)
}

func TestProposeContextIsDeterministicallyOrdered(t *testing.T) {
	client := &stubClient{response: `[]`}
	p := New(client)

	_, err := p.Propose(context.Background(), types.PlanStep{ID: "step-1"}, map[string]string{
		"b.py": "content-b",
		"a.py": "content-a",
	}, 1)
	require.NoError(t, err)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Less(t, indexOf(prompt, "FILE: a.py"), indexOf(prompt, "FILE: b.py"))
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
