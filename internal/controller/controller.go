// Package controller is the single-threaded orchestrator tying every
// other package together (spec.md §4.9): it checkpoints the baseline,
// seeds suspects, optionally runs the investigative loop and fuses a
// failure pattern, plans repair steps, and drives each one through the
// TNR Executor until a final patch can be emitted.
package controller

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daydemir/cip-agent/internal/astindex"
	"github.com/daydemir/cip-agent/internal/blackboard"
	"github.com/daydemir/cip-agent/internal/config"
	"github.com/daydemir/cip-agent/internal/errs"
	"github.com/daydemir/cip-agent/internal/fusion"
	"github.com/daydemir/cip-agent/internal/investigator"
	"github.com/daydemir/cip-agent/internal/planner"
	"github.com/daydemir/cip-agent/internal/proposer"
	"github.com/daydemir/cip-agent/internal/scheduler"
	"github.com/daydemir/cip-agent/internal/tnr"
	"github.com/daydemir/cip-agent/internal/types"
	"github.com/daydemir/cip-agent/internal/vcsgateway"
)

// defaultProbeBudget is the per-PCB time budget used to seed the
// investigative loop's scheduler when the Controller itself isn't
// handed a per-suspect budget by the caller.
const defaultProbeBudget = 10 * time.Second

// Controller bundles every collaborator Run needs. All fields are
// required except Index, which recall/context-window building treat
// as optional (an empty window is rendered when nil).
type Controller struct {
	Gateway      *vcsgateway.Gateway
	Index        *astindex.Index
	Investigator *investigator.Investigator
	Planner      *planner.Planner
	Proposer     *proposer.Proposer
	Board        *blackboard.Store
}

// New wires a Controller from its collaborators.
func New(gw *vcsgateway.Gateway, index *astindex.Index, inv *investigator.Investigator, pl *planner.Planner, pr *proposer.Proposer) *Controller {
	return &Controller{
		Gateway:      gw,
		Index:        index,
		Investigator: inv,
		Planner:      pl,
		Proposer:     pr,
		Board:        blackboard.New(),
	}
}

// Run implements spec.md §4.9's five pseudosteps.
func (c *Controller) Run(ctx context.Context, taskCtx types.TaskContext, cfg *config.Config) (types.ControllerResult, error) {
	baseline, err := c.Gateway.Checkpoint(ctx)
	if err != nil {
		return types.ControllerResult{}, fmt.Errorf("controller: checkpoint baseline: %w", err)
	}

	candidates, err := c.Investigator.RecallCandidates(ctx, taskCtx)
	if err != nil {
		return types.ControllerResult{}, fmt.Errorf("controller: recall candidates: %w", err)
	}
	probed, err := c.Investigator.Probe(ctx, taskCtx, candidates)
	if err != nil {
		return types.ControllerResult{}, fmt.Errorf("controller: probe candidates: %w", err)
	}
	c.seedSuspects(probed)

	understanding, steps, landmarks, err := c.planSteps(ctx, taskCtx, cfg, probed)
	if err != nil {
		return types.ControllerResult{}, fmt.Errorf("controller: plan: %w", err)
	}
	if len(steps) > cfg.Search.MaxSteps {
		steps = steps[:cfg.Search.MaxSteps]
	}

	var transactions []types.TransactionResult
	var lastAppliedDiff *types.DiffProposal

	for _, step := range steps {
		result, err := c.runStep(ctx, taskCtx, cfg, step)
		if err != nil {
			return types.ControllerResult{}, fmt.Errorf("controller: step %s: %w", step.ID, err)
		}
		transactions = append(transactions, result)
		if result.Committed {
			if result.AppliedDiff != nil {
				lastAppliedDiff = result.AppliedDiff
			}
			// original_source/controller.py's run_controller stops at the
			// first committed transaction rather than working through
			// every remaining step.
			break
		}
	}

	finalPatch, err := c.Gateway.DiffBetween(ctx, baseline, "HEAD")
	if err != nil {
		return types.ControllerResult{}, fmt.Errorf("controller: diff baseline..HEAD: %w", err)
	}
	if finalPatch == "" && lastAppliedDiff != nil {
		finalPatch = lastAppliedDiff.UnifiedDiff
	}

	var fp *types.FailurePattern
	snapshot := c.Board.Snapshot()
	if len(snapshot.Suspects) > 0 {
		f := fusion.Fuse(snapshot)
		fp = &f
	}

	return types.ControllerResult{
		FinalPatch:     finalPatch,
		Understanding:  understanding,
		FailurePattern: fp,
		Plan:           steps,
		Landmarks:      landmarks,
		Candidates:     probed,
		Transactions:   transactions,
		Blackboard:     snapshot,
	}, nil
}

// seedSuspects publishes one Node per candidate span onto the
// Blackboard, per spec.md §4.9 step 2. Confidence reported by the
// recall stage (span.Score) seeds suspicion when present; otherwise a
// neutral 0.5.
func (c *Controller) seedSuspects(candidates []types.Candidate) {
	for _, cand := range candidates {
		for _, span := range cand.Spans {
			suspicion := 0.5
			if span.Score != nil {
				suspicion = *span.Score
			}
			c.Board.PublishSuspects(types.Node{
				ID:        fmt.Sprintf("recall:%s:%d-%d", span.File, span.StartLine, span.EndLine),
				Span:      span,
				Kind:      span.NodeType,
				Hop:       0,
				Suspicion: suspicion,
			})
		}
	}
}

// planSteps implements spec.md §4.9 step 3: either the investigative
// loop (scheduler + fusion + landmark planning) or plain step planning
// from the probed candidates directly.
func (c *Controller) planSteps(ctx context.Context, taskCtx types.TaskContext, cfg *config.Config, probed []types.Candidate) (types.Understanding, []types.PlanStep, []types.Landmark, error) {
	if !cfg.Search.InvestigationsEnabled {
		understanding, err := c.Planner.Synthesize(ctx, probed)
		if err != nil {
			return types.Understanding{}, nil, nil, err
		}
		steps, err := c.Planner.Plan(ctx, understanding, cfg.Search.MaxSteps)
		return understanding, steps, nil, err
	}

	c.runInvestigativeLoop(ctx, taskCtx, cfg)

	snapshot := c.Board.Snapshot()
	failurePattern := fusion.Fuse(snapshot)
	understanding := types.Understanding{
		Summary:    failurePattern.Summary,
		Invariants: failurePattern.Invariants,
	}

	if cfg.Search.UseLandmarks {
		landmarks, err := c.Planner.PlanLandmarks(ctx, understanding, cfg.Search.MaxLandmarks)
		if err != nil {
			return understanding, nil, nil, err
		}
		return understanding, landmarksToPlanSteps(landmarks), landmarks, nil
	}

	steps, err := c.Planner.Plan(ctx, understanding, cfg.Search.MaxSteps)
	return understanding, steps, nil, err
}

// runInvestigativeLoop seeds one PCB per current suspect and drains
// the Probe Scheduler, feeding its observables onto the Blackboard for
// Fusion to read back (spec.md §4.6).
func (c *Controller) runInvestigativeLoop(ctx context.Context, taskCtx types.TaskContext, cfg *config.Config) {
	snapshot := c.Board.Snapshot()
	if len(snapshot.Suspects) == 0 {
		return
	}

	sched := scheduler.New(len(snapshot.Suspects))
	for _, suspect := range snapshot.Suspects {
		sched.AddPCB(&scheduler.PCB{
			ID:         uuid.NewString(),
			SuspectID:  suspect.ID,
			Span:       suspect.Span,
			TimeBudget: defaultProbeBudget,
		})
	}

	sched.Run(ctx, scheduler.Deps{
		RepoPath: taskCtx.RepoPath,
		TestCmd:  taskCtx.TestCmd,
		Board:    c.Board,
	})
}

// runStep implements spec.md §4.9 step 4 for a single plan step: build
// context windows, narrow the test command, ask the proposer for
// diffs, shortlist finalists, and call TxnPatch, calling it again up to
// cfg.Search.RetriesPerStep times while the step is uncommitted and its
// last log is recoverable.
func (c *Controller) runStep(ctx context.Context, taskCtx types.TaskContext, cfg *config.Config, step types.PlanStep) (types.TransactionResult, error) {
	ctxFiles := c.buildContextWindows(step, cfg.Limits.SlicePaddingLines)

	stepTaskCtx := taskCtx
	if cfg.Gates.TargetedTests {
		if narrowed := narrowedTestCmd(taskCtx.FailingTests); narrowed != "" {
			stepTaskCtx.TestCmd = narrowed
		}
	}

	proposals, err := c.Proposer.Propose(ctx, step, ctxFiles, cfg.Search.DiffsPerStep)
	if err != nil {
		return types.TransactionResult{}, err
	}
	if len(proposals) > cfg.Search.Finalists {
		proposals = proposals[:cfg.Search.Finalists]
	}

	tnrCfg := tnr.Config{
		ActionsPerTxn:         cfg.TNR.ActionsPerTxn,
		RequireMuNonworsening: cfg.TNR.RequireMuNonworsening,
		Gates: tnr.GatesConfig{
			Static:        cfg.Gates.Static,
			TargetedTests: cfg.Gates.TargetedTests,
		},
		Limits: tnr.LimitsConfig{
			MaxLOC:            cfg.Limits.MaxLOCChanges,
			MaxFiles:          cfg.Limits.MaxFilesPerDiff,
			SlicePaddingLines: cfg.Limits.SlicePaddingLines,
		},
	}

	result := tnr.TxnPatch(ctx, c.Gateway, stepTaskCtx, step, proposals, tnrCfg)
	retries := 0
	for !result.Committed && retries < cfg.Search.RetriesPerStep && lastLogRecoverable(result.Logs) {
		retries++
		result = tnr.TxnPatch(ctx, c.Gateway, stepTaskCtx, step, proposals, tnrCfg)
	}
	return result, nil
}

// buildContextWindows renders a numbered-line, padded context window
// for every file step.TargetSpans touches.
func (c *Controller) buildContextWindows(step types.PlanStep, padding int) map[string]string {
	ctxFiles := make(map[string]string)
	if c.Index == nil {
		return ctxFiles
	}
	for _, span := range step.TargetSpans {
		if _, ok := ctxFiles[span.File]; ok {
			continue
		}
		ctxFiles[span.File] = c.Index.Slice(span.File, span.StartLine, span.EndLine, padding)
	}
	return ctxFiles
}

// narrowedTestCmd implements spec.md §6's Task JSON narrowing rule:
// split each "<path>::<name>" failing-test node id on "::", take the
// trailing name, dedupe, sort, and join into a pytest -k expression.
func narrowedTestCmd(failingTests []string) string {
	seen := make(map[string]bool)
	var names []string
	for _, nodeID := range failingTests {
		parts := strings.Split(nodeID, "::")
		name := parts[len(parts)-1]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return fmt.Sprintf(`pytest -q -k "%s"`, strings.Join(names, " or "))
}

// lastLogRecoverable reports whether a TransactionResult's most recent
// log entry matches one of errs.IsRecoverable's markers, the condition
// spec.md §4.9 step 4 requires before the Controller retries a step.
func lastLogRecoverable(logs []string) bool {
	if len(logs) == 0 {
		return false
	}
	return errs.IsRecoverable(logs[len(logs)-1])
}

// landmarksToPlanSteps adapts spec.md §4.9 step 3's landmark-planning
// path onto runStep's plain PlanStep contract: a landmark's explicit
// verification test becomes the step's check, with its target spans
// and constraints carried through unchanged.
func landmarksToPlanSteps(landmarks []types.Landmark) []types.PlanStep {
	steps := make([]types.PlanStep, 0, len(landmarks))
	for _, lm := range landmarks {
		steps = append(steps, types.PlanStep{
			ID:           lm.ID,
			Intent:       lm.Intent,
			TargetSpans:  lm.TargetSpans,
			Constraints:  lm.Constraints,
			IdealOutcome: lm.LandmarkTest,
			Check:        "tests",
		})
	}
	return steps
}
