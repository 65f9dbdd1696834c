package controller

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/cip-agent/internal/astindex"
	"github.com/daydemir/cip-agent/internal/config"
	"github.com/daydemir/cip-agent/internal/investigator"
	"github.com/daydemir/cip-agent/internal/planner"
	"github.com/daydemir/cip-agent/internal/proposer"
	"github.com/daydemir/cip-agent/internal/types"
	"github.com/daydemir/cip-agent/internal/vcsgateway"
)

// queueClient returns its canned responses in order, one per Complete
// call, repeating the last response once exhausted.
type queueClient struct {
	responses []string
	calls     int
}

func (q *queueClient) Complete(ctx context.Context, prompt string) (string, error) {
	i := q.calls
	if i >= len(q.responses) {
		i = len(q.responses) - 1
	}
	q.calls++
	return q.responses[i], nil
}

func newTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mod.py"), []byte("def add(x, y):\n    return x - y\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial")
	return dir
}

const controllerFixDiff = `diff --git a/mod.py b/mod.py
--- a/mod.py
+++ b/mod.py
@@ -1,2 +1,2 @@
 def add(x, y):
-    return x - y
+    return x + y
`

// jsonString renders s as a JSON string literal, so it can be embedded
// verbatim inside a canned LLM response without hand-rolled escaping.
func jsonString(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

func TestRunPlainPathAppliesFixAndEmitsFinalPatch(t *testing.T) {
	dir := newTestRepo(t)
	gw := vcsgateway.New(dir)
	idx, err := astindex.BuildIndex(dir)
	require.NoError(t, err)

	invClient := &queueClient{responses: []string{
		`[{"id":"c1","hypothesis":"sign flipped","spans":[{"file":"mod.py","start_line":1,"end_line":2,"node_type":"function_definition","symbol":"add"}]}]`,
		`{"checked":"return statement sign"}`,
	}}
	planClient := &queueClient{responses: []string{
		`{"summary":"add subtracts instead of summing","invariants":["add is commutative"]}`,
		`[{"id":"step-1","intent":"fix sign","target_spans":[{"file":"mod.py","start_line":1,"end_line":2}],"ideal_outcome":"add returns the sum","check":"tests"}]`,
	}}
	proposeClient := &queueClient{responses: []string{
		`[{"step_id":"step-1","unified_diff":` + jsonString(t, controllerFixDiff) + `,"rationale":"flip sign"}]`,
	}}

	ctrl := New(gw, idx,
		investigator.New(invClient, idx),
		planner.New(planClient),
		proposer.New(proposeClient),
	)

	// FailingTests is left empty so the gate keeps running the
	// repo-specific interpreter check below instead of a -k-narrowed
	// pytest invocation the fixture repo has no suite to satisfy.
	taskCtx := types.TaskContext{
		RepoPath:   dir,
		InstanceID: "demo-1",
		TestCmd:    `python3 -c "import sys; sys.path.insert(0, '.'); import mod; sys.exit(0 if mod.add(2,2)==4 else 1)"`,
	}
	cfg := config.DefaultConfig()

	result, err := ctrl.Run(context.Background(), taskCtx, cfg)
	require.NoError(t, err)

	require.Len(t, result.Transactions, 1)
	assert.True(t, result.Transactions[0].Committed)
	assert.Contains(t, result.FinalPatch, "+    return x + y")
	assert.Equal(t, "add subtracts instead of summing", result.Understanding.Summary)
	require.Len(t, result.Candidates, 1)

	content, err := os.ReadFile(filepath.Join(dir, "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, "def add(x, y):\n    return x + y\n", string(content))
}

func TestRunInvestigativeLoopFusesBeforeLandmarkPlanning(t *testing.T) {
	dir := newTestRepo(t)
	gw := vcsgateway.New(dir)
	idx, err := astindex.BuildIndex(dir)
	require.NoError(t, err)

	invClient := &queueClient{responses: []string{
		`[{"id":"c1","hypothesis":"sign flipped","spans":[{"file":"mod.py","start_line":1,"end_line":2,"node_type":"function_definition","symbol":"add","score":0.9}]}]`,
		`{"checked":"return statement sign"}`,
	}}
	planClient := &queueClient{responses: []string{
		`[{"id":"lm-1","intent":"fix sign","target_spans":[{"file":"mod.py","start_line":1,"end_line":2}],"landmark_test":"tests/test_mod.py::test_add","risk":"low","confidence":0.8}]`,
	}}
	proposeClient := &queueClient{responses: []string{
		`[{"step_id":"lm-1","unified_diff":` + jsonString(t, controllerFixDiff) + `,"rationale":"flip sign"}]`,
	}}

	ctrl := New(gw, idx,
		investigator.New(invClient, idx),
		planner.New(planClient),
		proposer.New(proposeClient),
	)

	taskCtx := types.TaskContext{
		RepoPath: dir,
		TestCmd:  "true",
	}
	cfg := config.DefaultConfig()
	cfg.Search.InvestigationsEnabled = true
	cfg.Search.UseLandmarks = true
	cfg.Gates.TargetedTests = false
	cfg.Gates.Static = false
	cfg.TNR.RequireMuNonworsening = false

	result, err := ctrl.Run(context.Background(), taskCtx, cfg)
	require.NoError(t, err)

	require.NotNil(t, result.FailurePattern)
	require.Len(t, result.Landmarks, 1)
	assert.Equal(t, "lm-1", result.Landmarks[0].ID)
	require.Len(t, result.Plan, 1)
	assert.Equal(t, "lm-1", result.Plan[0].ID)
	assert.Equal(t, "tests/test_mod.py::test_add", result.Plan[0].IdealOutcome)
}

func TestNarrowedTestCmdDedupesAndSorts(t *testing.T) {
	cmd := narrowedTestCmd([]string{
		"pkg/t_calc.py::test_sub",
		"pkg/t_calc.py::test_add",
		"pkg/other.py::test_add",
	})
	assert.Equal(t, `pytest -q -k "test_add or test_sub"`, cmd)
}

func TestNarrowedTestCmdEmptyWhenNoFailingTests(t *testing.T) {
	assert.Equal(t, "", narrowedTestCmd(nil))
}

func TestLandmarksToPlanStepsCarriesSpansAndTest(t *testing.T) {
	steps := landmarksToPlanSteps([]types.Landmark{{
		ID:           "lm-1",
		Intent:       "fix sign",
		TargetSpans:  []types.AstSpan{{File: "mod.py", StartLine: 1, EndLine: 2}},
		Constraints:  []string{"no signature change"},
		LandmarkTest: "tests/test_mod.py::test_add",
	}})

	require.Len(t, steps, 1)
	assert.Equal(t, "lm-1", steps[0].ID)
	assert.Equal(t, "tests", steps[0].Check)
	assert.Equal(t, "tests/test_mod.py::test_add", steps[0].IdealOutcome)
	assert.Equal(t, []string{"no signature change"}, steps[0].Constraints)
}

func TestLastLogRecoverable(t *testing.T) {
	assert.False(t, lastLogRecoverable(nil))
	assert.True(t, lastLogRecoverable([]string{"validation failed: too many files"}))
	assert.False(t, lastLogRecoverable([]string{"vcs fatal during checkpoint: not a git repo"}))
}
