// Package sandbox makes disposable copies of a target repository so
// probes and speculative transactions can mutate a working tree
// without ever touching the one the Controller ultimately commits to
// (spec.md §4.4).
package sandbox

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/daydemir/cip-agent/internal/vcsgateway"
)

// Sandbox is a throwaway repository copy. It embeds a VCS Gateway
// rooted at the copy, so every VCS Gateway operation is available on a
// Sandbox exactly as it is on the original repo.
type Sandbox struct {
	*vcsgateway.Gateway
	Path string
}

// Create clones repoPath into a fresh temp directory. When repoPath is
// a git working tree, it uses `git clone --no-hardlinks --local` so
// the sandbox gets its own object store and edits there cannot corrupt
// the source repo's. When repoPath is not a git repository, it falls
// back to a plain recursive file copy.
func Create(ctx context.Context, repoPath string) (*Sandbox, error) {
	dir, err := os.MkdirTemp("", "cip-agent-sandbox-*")
	if err != nil {
		return nil, err
	}

	if isGitRepo(repoPath) {
		cmd := exec.CommandContext(ctx, "git", "clone", "--no-hardlinks", "--local", repoPath, dir)
		if out, err := cmd.CombinedOutput(); err != nil {
			os.RemoveAll(dir)
			return nil, &cloneError{output: string(out), err: err}
		}
	} else {
		if err := copyTree(repoPath, dir); err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	}

	sb := &Sandbox{Gateway: vcsgateway.New(dir), Path: dir}
	runtime.SetFinalizer(sb, func(s *Sandbox) { os.RemoveAll(s.Path) })
	return sb, nil
}

// Cleanup removes the sandbox's temp directory. Callers invoke it
// explicitly once done with the sandbox (the scheduler does so from its
// cleanup pool); the finalizer set in Create is a safety net for
// sandboxes a caller forgets to clean up explicitly, not a substitute
// for doing so.
func (s *Sandbox) Cleanup() error {
	runtime.SetFinalizer(s, nil)
	return os.RemoveAll(s.Path)
}

func isGitRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && (info.IsDir() || info.Mode().IsRegular())
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

type cloneError struct {
	output string
	err    error
}

func (e *cloneError) Error() string { return "sandbox clone failed: " + e.output }
func (e *cloneError) Unwrap() error { return e.err }
