package llmshim

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/daydemir/cip-agent/internal/utils"
)

// CLIClient shells out to a locally installed model CLI for one-shot,
// non-interactive completions, the same subprocess idiom the teacher
// uses for its Claude backend (internal/llm/claude.go's Execute) but
// collapsed to a single blocking call instead of a streaming reader,
// since the planner/proposer/investigator stages only ever need one
// finished JSON response per prompt.
type CLIClient struct {
	BinaryPath string
	Model      string
}

// NewCLIClient resolves binaryPath (defaulting to "claude") via
// internal/utils.ResolveBinaryPath, the teacher's own binary-resolution
// helper: absolute paths pass through, otherwise PATH and a handful of
// common install locations are checked in order.
func NewCLIClient(binaryPath, model string) *CLIClient {
	if binaryPath == "" {
		binaryPath = "claude"
	}
	return &CLIClient{BinaryPath: utils.ResolveBinaryPath(binaryPath), Model: model}
}

// Complete runs the CLI once with prompt as its -p argument and returns
// its trimmed stdout. A missing binary is reported with the same
// remediation text the teacher surfaces for a missing Claude install.
func (c *CLIClient) Complete(ctx context.Context, prompt string) (string, error) {
	args := []string{"-p", prompt, "--output-format", "text"}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}

	cmd := exec.CommandContext(ctx, c.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if strings.Contains(err.Error(), "executable file not found") || strings.Contains(err.Error(), "no such file or directory") {
			return "", binaryNotFoundError(c.BinaryPath)
		}
		return "", fmt.Errorf("llmshim: %s: %w: %s", c.BinaryPath, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func binaryNotFoundError(binaryPath string) error {
	return fmt.Errorf(`%s not found in PATH

To fix, add to your ~/.zshrc or ~/.bashrc:
  export PATH="$HOME/.claude/local:$PATH"

Or pass --llm-bin with the path to an installed model CLI`, binaryPath)
}
