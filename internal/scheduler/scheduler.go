// Package scheduler implements the Probe Scheduler: a round-robin
// ready queue of probe control blocks (PCBs) that dispatches read-only
// instrumentation patches into ephemeral sandboxes and scores their
// information gain (spec.md §4.6).
package scheduler

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/daydemir/cip-agent/internal/blackboard"
	"github.com/daydemir/cip-agent/internal/gates"
	"github.com/daydemir/cip-agent/internal/sandbox"
	"github.com/daydemir/cip-agent/internal/types"
)

// PCB is one probe control block: the scheduler's unit of work.
type PCB struct {
	ID             string
	SuspectID      string
	Span           types.AstSpan
	QuantumOps     int
	TimeBudget     time.Duration
	Priority       int
	ObservedGain   float64
}

// PreemptPenalty is the fixed time-budget deduction applied to a PCB
// whose probe reports non-positive gain (spec.md §4.6 step 5).
const PreemptPenalty = 2 * time.Second

// Deps are the collaborators the dispatch loop needs per PCB: the
// repo to sandbox, the test command to run under TimeBudget, and the
// shared Blackboard to publish reports to.
type Deps struct {
	RepoPath string
	TestCmd  string
	Board    *blackboard.Store
	// BuildProbePatch lets the caller shape the instrumentation diff for
	// a PCB's span; defaults to an empty no-op patch when nil, which
	// still exercises the dispatch/scoring machinery end to end.
	BuildProbePatch func(pcb PCB) types.ProbePatch
}

// Scheduler holds the ready queue. The queue is a plain slice popped
// from the front by NextPCB; AddPCB and Preempt append at the tail, so
// PCBs that report non-positive gain are dispatched in round-robin
// order. Boost puts a PCB back at the head, so a PCB that reports
// positive gain is dispatched again next.
type Scheduler struct {
	ready   []*PCB
	MaxPCBs int // max_probes: overall probe budget for one Run
}

func New(maxProbes int) *Scheduler {
	return &Scheduler{MaxPCBs: maxProbes}
}

func (s *Scheduler) AddPCB(pcb *PCB) {
	s.ready = append(s.ready, pcb)
}

// NextPCB pops the head of the ready queue, or nil if it is empty.
func (s *Scheduler) NextPCB() *PCB {
	if len(s.ready) == 0 {
		return nil
	}
	next := s.ready[0]
	s.ready = s.ready[1:]
	return next
}

// RecordGain accumulates observed gain onto the PCB.
func (s *Scheduler) RecordGain(pcb *PCB, gain float64) {
	pcb.ObservedGain += gain
}

// Boost re-enters the PCB at the head of the ready queue, the reward
// for a probe that reported positive gain.
func (s *Scheduler) Boost(pcb *PCB) {
	s.ready = append([]*PCB{pcb}, s.ready...)
}

// Preempt re-enters the PCB at the tail and docks its time budget by
// PreemptPenalty, the penalty for a probe that reported non-positive
// gain. A PCB whose budget has run out is not re-queued at all.
func (s *Scheduler) Preempt(pcb *PCB) {
	pcb.TimeBudget -= PreemptPenalty
	if pcb.TimeBudget <= 0 {
		return
	}
	s.ready = append(s.ready, pcb)
}

// Run drains the ready queue, dispatching at most MaxPCBs probes
// (0 means unbounded) or until ctx is done. Each PCB's probe runs in
// its own sandbox; the previous PCB's sandbox is cleaned up
// concurrently with the current PCB's dispatch via a bounded conc
// pool, so cleanup latency never serializes with probe latency while
// the ready queue itself is only ever touched by this goroutine.
func (s *Scheduler) Run(ctx context.Context, deps Deps) []types.ProbeReport {
	var reports []types.ProbeReport
	cleanupPool := pool.New().WithMaxGoroutines(2)
	dispatched := 0

	for {
		if ctx.Err() != nil {
			break
		}
		if s.MaxPCBs > 0 && dispatched >= s.MaxPCBs {
			break
		}
		pcb := s.NextPCB()
		if pcb == nil {
			break
		}
		dispatched++

		report, sb := s.dispatch(ctx, deps, pcb)
		if sb != nil {
			cleanupPool.Go(func() { sb.Cleanup() })
		}
		reports = append(reports, report)
		deps.Board.PublishObservable(map[string]interface{}{
			"suspect_id":     report.SuspectID,
			"result":         report.Result,
			"info_gain":      report.InfoGain,
			"recommendation": report.Recommendation,
			"observations":   report.Observations,
		})

		s.RecordGain(pcb, report.InfoGain)
		if report.InfoGain > 0 {
			s.Boost(pcb)
		} else {
			s.Preempt(pcb)
		}
	}

	cleanupPool.Wait()
	return reports
}

// dispatch runs steps 2-4 of spec.md §4.6's algorithm for one PCB: build
// a minimal instrument patch, apply it in a fresh sandbox, run the
// targeted-test gate under the PCB's time budget, and score the result.
// It returns the sandbox so the caller can schedule its cleanup
// concurrently with the next PCB's dispatch rather than blocking on it
// here.
func (s *Scheduler) dispatch(ctx context.Context, deps Deps, pcb *PCB) (types.ProbeReport, *sandbox.Sandbox) {
	patch := defaultProbePatch(pcb)
	if deps.BuildProbePatch != nil {
		patch = deps.BuildProbePatch(*pcb)
	}

	sb, err := sandbox.Create(ctx, deps.RepoPath)
	if err != nil {
		return types.ProbeReport{
			ID:        patch.ID,
			SuspectID: pcb.SuspectID,
			Result:    "uninformative",
			InfoGain:  0,
			Observations: map[string]interface{}{
				"error": err.Error(),
			},
		}, nil
	}

	var applyErr error
	if patch.Diff != "" {
		applyErr = sb.ApplyDiff(ctx, patch.Diff)
	}
	if err := applyErr; err != nil {
		return types.ProbeReport{
			ID:        patch.ID,
			SuspectID: pcb.SuspectID,
			Result:    "uninformative",
			InfoGain:  0,
			Observations: map[string]interface{}{
				"apply_error": err.Error(),
			},
		}, sb
	}

	budgetCtx, cancel := context.WithTimeout(ctx, pcb.TimeBudget)
	defer cancel()

	result, err := gates.RunTargetedTests(budgetCtx, deps.TestCmd, sb.Path)
	if err == nil && budgetCtx.Err() != nil {
		err = budgetCtx.Err()
	}
	gain, recommendation := scoreProbe(result, err)

	return types.ProbeReport{
		ID:             patch.ID,
		SuspectID:      pcb.SuspectID,
		Result:         probeOutcome(gain),
		InfoGain:       gain,
		Recommendation: recommendation,
		Observations: map[string]interface{}{
			"success": result.Success,
			"output":  result.Output,
		},
	}, sb
}

func defaultProbePatch(pcb *PCB) types.ProbePatch {
	return types.ProbePatch{
		ID:        "probe-" + pcb.ID,
		SuspectID: pcb.SuspectID,
		Diff:      "",
		Purpose:   "instrument",
	}
}

// scoreProbe turns a targeted-test outcome into an info_gain score and
// a recommendation. A probe that times out or errors scores zero and
// is unknown; one whose tests newly pass is the strongest signal
// (likely_cause); one that still fails is weak evidence the suspect is
// not the cause (unlikely), scored just above zero so it is not
// indistinguishable from a hard failure to even run the probe.
func scoreProbe(result gates.Result, err error) (float64, string) {
	if err != nil {
		return 0, "unknown"
	}
	if result.Success {
		return 1.0, "likely_cause"
	}
	return 0.1, "unlikely"
}

func probeOutcome(gain float64) string {
	if gain > 0 {
		return "informative"
	}
	return "uninformative"
}
