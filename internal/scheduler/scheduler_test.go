package scheduler

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/cip-agent/internal/blackboard"
)

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
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mod.py"), []byte("def add(x, y):\n    return x + y\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial")
	return dir
}

func TestNextPCBIsFIFO(t *testing.T) {
	s := New(0)
	a := &PCB{ID: "a"}
	b := &PCB{ID: "b"}
	s.AddPCB(a)
	s.AddPCB(b)

	assert.Equal(t, a, s.NextPCB())
	assert.Equal(t, b, s.NextPCB())
	assert.Nil(t, s.NextPCB())
}

func TestBoostMovesToHead(t *testing.T) {
	s := New(0)
	a := &PCB{ID: "a"}
	b := &PCB{ID: "b"}
	s.AddPCB(a)
	s.AddPCB(b)

	s.NextPCB() // pop a
	s.Boost(a)

	assert.Equal(t, a, s.NextPCB())
}

func TestPreemptDemotesAndDocksBudget(t *testing.T) {
	s := New(0)
	a := &PCB{ID: "a", TimeBudget: 5 * time.Second}
	b := &PCB{ID: "b"}
	s.AddPCB(a)
	s.AddPCB(b)

	s.NextPCB() // pop a
	s.Preempt(a)

	assert.Equal(t, b, s.NextPCB())
	assert.Equal(t, a, s.NextPCB())
	assert.Equal(t, 5*time.Second-PreemptPenalty, a.TimeBudget)
}

func TestPreemptRetiresExhaustedBudget(t *testing.T) {
	s := New(0)
	a := &PCB{ID: "a", TimeBudget: 1 * time.Second}
	s.AddPCB(a)
	s.NextPCB()
	s.Preempt(a)

	assert.Nil(t, s.NextPCB())
}

func TestRunDispatchesAndPublishesReports(t *testing.T) {
	repo := newTestRepo(t)
	board := blackboard.New()
	s := New(2)
	s.AddPCB(&PCB{ID: "p1", SuspectID: "s1", TimeBudget: 5 * time.Second})
	s.AddPCB(&PCB{ID: "p2", SuspectID: "s2", TimeBudget: 5 * time.Second})

	reports := s.Run(context.Background(), Deps{
		RepoPath: repo,
		TestCmd:  "true",
		Board:    board,
	})

	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, "likely_cause", r.Recommendation)
		assert.Equal(t, 1.0, r.InfoGain)
	}
	assert.Len(t, board.Snapshot().Observables, 2)
}

func TestRunHonorsMaxPCBs(t *testing.T) {
	repo := newTestRepo(t)
	board := blackboard.New()
	s := New(1)
	s.AddPCB(&PCB{ID: "p1", SuspectID: "s1", TimeBudget: 5 * time.Second})
	s.AddPCB(&PCB{ID: "p2", SuspectID: "s2", TimeBudget: 5 * time.Second})

	reports := s.Run(context.Background(), Deps{
		RepoPath: repo,
		TestCmd:  "true",
		Board:    board,
	})

	assert.Len(t, reports, 1)
}
