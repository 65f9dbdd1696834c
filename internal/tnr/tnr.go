// Package tnr implements the Transactional No-Regression Executor
// (spec.md §4.8): the only component allowed to commit to the target
// repository. Every attempt is checkpoint-validate-apply-gate-commit,
// with an unconditional revert to the pre-transaction HEAD on any
// failure, so a transaction's net effect on the working tree is always
// either "fully applied and committed" or "as if it never ran."
package tnr

import (
	"context"
	"fmt"

	"github.com/daydemir/cip-agent/internal/diffmodel"
	"github.com/daydemir/cip-agent/internal/errs"
	"github.com/daydemir/cip-agent/internal/gates"
	"github.com/daydemir/cip-agent/internal/types"
	"github.com/daydemir/cip-agent/internal/vcsgateway"
)

// GatesConfig toggles which gates a transaction runs, mirroring
// config.gates in SPEC_FULL.md's ambient configuration.
type GatesConfig struct {
	Static        bool
	TargetedTests bool
}

// LimitsConfig bounds a candidate diff's scope, consumed by
// internal/diffmodel's EnsureWithinLimits.
type LimitsConfig struct {
	MaxLOC            int
	MaxFiles          int
	SlicePaddingLines int
	AllowAPIChange    bool
}

// Config is everything TxnPatch needs beyond the step and proposals.
type Config struct {
	ActionsPerTxn         int
	RequireMuNonworsening bool
	Gates                 GatesConfig
	Limits                LimitsConfig
}

// TxnPatch attempts at most cfg.ActionsPerTxn proposals against step,
// committing on the first that clears every enabled gate without
// worsening µ, and reverting to the pre-call HEAD on any failure
// (spec.md §4.8).
func TxnPatch(
	ctx context.Context,
	gw *vcsgateway.Gateway,
	taskCtx types.TaskContext,
	step types.PlanStep,
	proposals []types.DiffProposal,
	cfg Config,
) types.TransactionResult {
	head, err := gw.Checkpoint(ctx)
	if err != nil {
		return types.TransactionResult{Logs: []string{err.Error()}}
	}

	allowedFiles := make(map[string]bool)
	for _, span := range step.TargetSpans {
		allowedFiles[span.File] = true
	}

	var logs []string
	lastMuPre := 0

	for attempt, proposal := range proposals {
		if attempt >= cfg.ActionsPerTxn {
			break
		}

		muPre, err := measureMuPre(ctx, gw, taskCtx, cfg)
		if err != nil {
			logs = append(logs, err.Error())
			continue
		}
		lastMuPre = muPre

		if err := diffmodel.EnsureWithinLimits(proposal.UnifiedDiff, diffmodel.LimitOptions{
			AllowedFiles:   allowedFiles,
			MaxLOC:         cfg.Limits.MaxLOC,
			MaxFiles:       cfg.Limits.MaxFiles,
			TargetSpans:    step.TargetSpans,
			PaddingLines:   cfg.Limits.SlicePaddingLines,
			AllowAPIChange: cfg.Limits.AllowAPIChange,
		}); err != nil {
			logs = append(logs, err.Error())
			continue // unvalidated diffs never touch the tree.
		}

		if err := gw.ApplyDiff(ctx, proposal.UnifiedDiff); err != nil {
			gw.Revert(ctx, head)
			logs = append(logs, err.Error())
			continue
		}

		if cfg.Gates.Static {
			result, err := gates.RunStatic(ctx, gw.RepoPath)
			if err != nil || !result.Success {
				gw.Revert(ctx, head)
				logs = append(logs, (&errs.GateFailure{Gate: "static", Output: result.Output}).Error())
				continue
			}
		}

		var muPost int
		if cfg.Gates.TargetedTests {
			result, err := gates.RunTargetedTests(ctx, taskCtx.TestCmd, gw.RepoPath)
			if err != nil || !result.Success {
				gw.Revert(ctx, head)
				logs = append(logs, (&errs.GateFailure{Gate: "targeted_tests", Output: result.Output}).Error())
				continue
			}
			muPost = 0
		} else {
			muPost, err = gw.NumstatChurn(ctx)
			if err != nil {
				gw.Revert(ctx, head)
				logs = append(logs, err.Error())
				continue
			}
		}

		if cfg.RequireMuNonworsening && muPost > muPre {
			gw.Revert(ctx, head)
			logs = append(logs, (&errs.RegressionError{MuPre: muPre, MuPost: muPost}).Error())
			continue
		}

		if _, err := gw.Commit(ctx, fmt.Sprintf("txn:%s", step.ID)); err != nil {
			gw.Revert(ctx, head)
			logs = append(logs, err.Error())
			continue
		}

		proposalCopy := proposal
		return types.TransactionResult{
			Committed:   true,
			AppliedDiff: &proposalCopy,
			MuPre:       muPre,
			MuPost:      muPost,
			Logs:        logs,
		}
	}

	gw.Revert(ctx, head)
	return types.TransactionResult{
		Committed: false,
		MuPre:     lastMuPre,
		MuPost:    lastMuPre,
		Logs:      logs,
	}
}

// measureMuPre computes µ before any diff in this attempt is applied.
// With the targeted-tests gate enabled, µ is binary: 0 if the baseline
// working tree currently passes the caller's test command, 1
// otherwise. With it disabled, µ is the working tree's current
// numstat churn against HEAD.
func measureMuPre(ctx context.Context, gw *vcsgateway.Gateway, taskCtx types.TaskContext, cfg Config) (int, error) {
	if cfg.Gates.TargetedTests {
		result, err := gates.RunTargetedTests(ctx, taskCtx.TestCmd, gw.RepoPath)
		if err != nil {
			return 0, err
		}
		if result.Success {
			return 0, nil
		}
		return 1, nil
	}
	return gw.NumstatChurn(ctx)
}
