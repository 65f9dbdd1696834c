package investigator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/cip-agent/internal/types"
)

type stubClient struct {
	response string
	calls    int
}

func (s *stubClient) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.response, nil
}

func TestRecallCandidatesDecodesResponse(t *testing.T) {
	client := &stubClient{response: `[{"id":"c1","hypothesis":"sign flipped","spans":[{"file":"mod.py","start_line":1,"end_line":2,"node_type":"function_definition","symbol":"add"}]}]`}
	inv := New(client, nil)

	candidates, err := inv.RecallCandidates(context.Background(), types.TaskContext{InstanceID: "demo-1", FailingTests: []string{"tests/test_mod.py::test_add"}})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "c1", candidates[0].ID)
	assert.Equal(t, 1, client.calls)
}

func TestProbeAttachesNotesWithoutMutatingInput(t *testing.T) {
	client := &stubClient{response: `{"checked":"return statement sign"}`}
	inv := New(client, nil)

	original := []types.Candidate{{ID: "c1", Hypothesis: "sign flipped"}}
	enriched, err := inv.Probe(context.Background(), types.TaskContext{InstanceID: "demo-1"}, original)
	require.NoError(t, err)

	require.Len(t, enriched, 1)
	assert.Equal(t, "return statement sign", enriched[0].Evidence["probe"].(map[string]interface{})["checked"])
	assert.Nil(t, original[0].Evidence, "probing must not mutate the caller's candidate slice")
}
