// Package vcsgateway is the sole surface through which the rest of
// CIP-Agent touches the target repository's version control. Every
// mutation goes through here so the TNR Executor can checkpoint before
// a transaction and revert cleanly if it fails (spec.md §4.2, §4.8).
package vcsgateway

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/daydemir/cip-agent/internal/diffmodel"
	"github.com/daydemir/cip-agent/internal/errs"
)

// Gateway wraps git plumbing for one repository working tree.
type Gateway struct {
	RepoPath string
}

func New(repoPath string) *Gateway {
	return &Gateway{RepoPath: repoPath}
}

func (g *Gateway) runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.RepoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &errs.VcsFatalError{Op: strings.Join(args, " "), Reason: strings.TrimSpace(string(out))}
	}
	return string(out), nil
}

func (g *Gateway) runGitWithInput(ctx context.Context, input string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.RepoPath
	cmd.Stdin = strings.NewReader(input)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &errs.ApplyError{Reason: strings.TrimSpace(string(out))}
	}
	return string(out), nil
}

// Checkpoint returns the current HEAD commit hash, recorded by the TNR
// Executor before a transaction begins so it can Revert to this exact
// point if the transaction fails (spec.md §4.8 step 1).
func (g *Gateway) Checkpoint(ctx context.Context) (string, error) {
	out, err := g.runGit(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ApplyDiff normalizes the diff and delegates to `git apply`. If git
// rejects it — usually because the model's line numbers have drifted
// from HEAD — it falls back to diffmodel's manual, context-driven
// reconstruction rather than failing the whole proposal outright.
func (g *Gateway) ApplyDiff(ctx context.Context, diff string) error {
	normalized := diffmodel.NormalizeDiff(diff)
	if _, err := g.runGitWithInput(ctx, normalized, "apply", "-"); err != nil {
		return diffmodel.ManualApply(normalized, g.RepoPath)
	}
	return nil
}

// Revert hard-resets to commitID and removes untracked files, undoing
// everything a failed transaction did to the working tree.
func (g *Gateway) Revert(ctx context.Context, commitID string) error {
	if _, err := g.runGit(ctx, "reset", "--hard", commitID); err != nil {
		return err
	}
	_, err := g.runGit(ctx, "clean", "-fd")
	return err
}

// StageAll stages every change in the working tree.
func (g *Gateway) StageAll(ctx context.Context) error {
	_, err := g.runGit(ctx, "add", "-A")
	return err
}

// Commit stages all changes and commits them, returning the new commit
// hash. The TNR Executor calls this once a transaction's diff has
// cleared every gate (spec.md §4.8 step 7).
func (g *Gateway) Commit(ctx context.Context, message string) (string, error) {
	if err := g.StageAll(ctx); err != nil {
		return "", err
	}
	if _, err := g.runGit(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	return g.Checkpoint(ctx)
}

// FinalPatch returns the diff between HEAD and the working tree
// (uncommitted changes only).
func (g *Gateway) FinalPatch(ctx context.Context) (string, error) {
	return g.runGit(ctx, "diff", "HEAD")
}

// DiffBetween returns the cumulative unified diff from base to head,
// capturing the effect of every intervening commit — necessary because
// each committed transaction is its own commit (spec.md §4.8).
func (g *Gateway) DiffBetween(ctx context.Context, base, head string) (string, error) {
	if head == "" {
		head = "HEAD"
	}
	return g.runGit(ctx, "diff", base+".."+head)
}

// NumstatChurn sums (added+deleted)/2 over every row of `git diff
// --numstat` against the working tree, the µ measure the TNR Executor
// falls back to when the targeted-tests gate is disabled (spec.md
// §4.8, grounded in original_source/tnr.py's `_measure_mu`).
func (g *Gateway) NumstatChurn(ctx context.Context) (int, error) {
	out, err := g.runGit(ctx, "diff", "--numstat")
	if err != nil {
		return 0, err
	}
	total := 0
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		added, errA := strconv.Atoi(fields[0])
		deleted, errB := strconv.Atoi(fields[1])
		if errA != nil || errB != nil {
			continue
		}
		total += (added + deleted) / 2
	}
	return total, nil
}

// Clean discards all uncommitted changes, tracked and untracked.
func (g *Gateway) Clean(ctx context.Context) error {
	if _, err := g.runGit(ctx, "reset", "--hard"); err != nil {
		return err
	}
	_, err := g.runGit(ctx, "clean", "-fd")
	return err
}
