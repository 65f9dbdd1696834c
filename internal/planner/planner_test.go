package planner

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

func TestSynthesizeDecodesUnderstanding(t *testing.T) {
	client := &stubClient{response: `{"summary":"off-by-one sign flip","invariants":["add is commutative"],"dependencies":["mod.py"]}`}
	p := New(client)

	understanding, err := p.Synthesize(context.Background(), []types.Candidate{{ID: "c1", Hypothesis: "sign flipped"}})
	require.NoError(t, err)
	assert.Equal(t, "off-by-one sign flip", understanding.Summary)
	assert.Equal(t, []string{"add is commutative"}, understanding.Invariants)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "c1: sign flipped")
}

func TestPlanDecodesAndTruncatesSteps(t *testing.T) {
	client := &stubClient{response: `[{"id":"step-1","intent":"fix sign"},{"id":"step-2","intent":"add test"},{"id":"step-3","intent":"extra"}]`}
	p := New(client)

	steps, err := p.Plan(context.Background(), types.Understanding{Summary: "off-by-one sign flip"}, 2)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "step-1", steps[0].ID)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "PLAN: off-by-one sign flip")
}

func TestPlanLandmarksDecodesAndTruncates(t *testing.T) {
	client := &stubClient{response: `[{"id":"lm-1","intent":"fix sign","landmark_test":"tests/test_mod.py::test_add","risk":"low","confidence":0.8},{"id":"lm-2","intent":"add regression test"}]`}
	p := New(client)

	landmarks, err := p.PlanLandmarks(context.Background(), types.Understanding{Summary: "off-by-one sign flip"}, 1)
	require.NoError(t, err)
	require.Len(t, landmarks, 1)
	assert.Equal(t, "lm-1", landmarks[0].ID)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "off-by-one sign flip")
}

func TestPlanNoTruncationWhenMaxStepsZero(t *testing.T) {
	client := &stubClient{response: `[{"id":"step-1"},{"id":"step-2"}]`}
	p := New(client)

	steps, err := p.Plan(context.Background(), types.Understanding{Summary: "s"}, 0)
	require.NoError(t, err)
	assert.Len(t, steps, 2)
}
