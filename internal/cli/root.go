// Package cli implements cip-agent's single root command: spec.md §6
// requires one command with persistent flags, not the teacher's
// discuss/run/status subcommand tree — the redesign collapses ralph's
// subcommands into root-level flags (see DESIGN.md).
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daydemir/cip-agent/internal/astindex"
	"github.com/daydemir/cip-agent/internal/config"
	"github.com/daydemir/cip-agent/internal/controller"
	"github.com/daydemir/cip-agent/internal/display"
	"github.com/daydemir/cip-agent/internal/investigator"
	"github.com/daydemir/cip-agent/internal/llmshim"
	"github.com/daydemir/cip-agent/internal/planner"
	"github.com/daydemir/cip-agent/internal/proposer"
	"github.com/daydemir/cip-agent/internal/runlog"
	"github.com/daydemir/cip-agent/internal/types"
	"github.com/daydemir/cip-agent/internal/vcsgateway"
)

// Version is set by goreleaser via ldflags, the teacher's own pattern
// (internal/cli/root.go).
var Version = "dev"

var (
	flagRepo     string
	flagTask     string
	flagOut      string
	flagTestCmd  string
	flagConfig   string
	flagNoColor  bool
	flagStream   bool
	flagLLMBin   string
)

var rootCmd = &cobra.Command{
	Use:     "cip-agent",
	Short:   "Investigate a failing test, plan a fix, and emit a patch",
	Version: Version,
	RunE:    runRoot,
}

func init() {
	rootCmd.Flags().StringVar(&flagRepo, "repo", "", "path to the repository under repair (required)")
	rootCmd.Flags().StringVar(&flagTask, "task", "", "path to the task JSON file (required)")
	rootCmd.Flags().StringVar(&flagOut, "out", "", "path to write the final unified diff (required)")
	rootCmd.Flags().StringVar(&flagTestCmd, "test-cmd", "", "fallback targeted test command (required)")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to a config YAML file (optional)")
	rootCmd.Flags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	rootCmd.Flags().BoolVar(&flagStream, "stream", false, "echo NDJSON events to stdout")
	rootCmd.Flags().StringVar(&flagLLMBin, "llm-bin", "", "override the model CLI binary (default: \"claude\"; config model.name is passed as its --model)")

	rootCmd.MarkFlagRequired("repo")
	rootCmd.MarkFlagRequired("task")
	rootCmd.MarkFlagRequired("out")
	rootCmd.MarkFlagRequired("test-cmd")

	rootCmd.SetVersionTemplate(fmt.Sprintf("cip-agent version %s\n", Version))
}

// Execute runs the root command and returns its error; main prints it
// and sets the process exit code.
func Execute() error {
	return rootCmd.Execute()
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}

	taskCtx, err := loadTaskContext(flagTask)
	if err != nil {
		return fmt.Errorf("cli: load task: %w", err)
	}
	taskCtx.RepoPath = flagRepo
	if taskCtx.TestCmd == "" {
		taskCtx.TestCmd = flagTestCmd
	}

	stream := cfg.Logging.Stream || flagStream
	if !cmd.Flags().Changed("stream") {
		stream = stream || streamFromEnv()
	}
	d := display.New(flagNoColor || os.Getenv("NO_COLOR") != "", stream)
	d.RunHeader(taskCtx.InstanceID, flagRepo)

	logger, err := runlog.Open(cfg.Logging.Dir, taskCtx.InstanceID)
	if err != nil {
		return fmt.Errorf("cli: open run log: %w", err)
	}
	defer logger.Close()

	ctrl, err := buildController(flagRepo, cfg)
	if err != nil {
		return fmt.Errorf("cli: build controller: %w", err)
	}

	ctx := context.Background()
	logger.Emit("run_started", map[string]string{"repo": flagRepo, "instance_id": taskCtx.InstanceID})
	d.Event("run_started", fmt.Sprintf("repo=%s instance=%s", flagRepo, taskCtx.InstanceID))

	result, err := ctrl.Run(ctx, taskCtx, cfg)
	if err != nil {
		logger.Emit("run_failed", map[string]string{"error": err.Error()})
		d.Error(err.Error())
		// spec.md §7: "The final patch is always written, even if empty."
		// Controller.Run returns an empty result alongside an error, so
		// this writes an empty patch; --out always exists on exit.
		if writeErr := os.WriteFile(flagOut, []byte(result.FinalPatch), 0o644); writeErr != nil {
			return fmt.Errorf("cli: write %s: %w", flagOut, writeErr)
		}
		return err
	}

	writeArtifacts(logger, result)
	for i, txn := range result.Transactions {
		stepID := fmt.Sprintf("step-%d", i+1)
		if i < len(result.Plan) {
			stepID = result.Plan[i].ID
		}
		d.Commit(stepID, txn.Committed)
	}
	if err := os.WriteFile(flagOut, []byte(result.FinalPatch), 0o644); err != nil {
		return fmt.Errorf("cli: write %s: %w", flagOut, err)
	}
	d.FinalPatch(strings.Count(result.FinalPatch, "\n"), logger.Dir())
	logger.Emit("run_finished", map[string]interface{}{"committed_steps": countCommitted(result.Transactions)})

	return nil
}

func buildController(repoPath string, cfg *config.Config) (*controller.Controller, error) {
	idx, err := astindex.BuildIndex(repoPath)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", repoPath, err)
	}

	client := llmshim.NewCLIClient(flagLLMBin, cfg.Model.Name)
	gw := vcsgateway.New(repoPath)

	return controller.New(gw, idx,
		investigator.New(client, idx),
		planner.New(client),
		proposer.New(client),
	), nil
}

func loadTaskContext(path string) (types.TaskContext, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.TaskContext{}, fmt.Errorf("read %s: %w", path, err)
	}
	var taskCtx types.TaskContext
	if err := json.Unmarshal(b, &taskCtx); err != nil {
		return types.TaskContext{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return taskCtx, nil
}

var streamTruthyValues = map[string]bool{
	"1": true, "true": true, "yes": true, "on": true, "enable": true, "enabled": true,
}

// streamFromEnv implements spec.md §6's CIP_LOG_STREAM rule: truthy
// values enable stdout echo when no explicit stream flag is passed.
func streamFromEnv() bool {
	return streamTruthyValues[strings.ToLower(os.Getenv("CIP_LOG_STREAM"))]
}

func writeArtifacts(logger *runlog.Logger, result types.ControllerResult) {
	logger.WriteArtifact("understanding", result.Understanding)
	logger.WriteArtifact("plan", result.Plan)
	logger.WriteArtifact("transactions", result.Transactions)
	logger.WriteArtifact("blackboard", result.Blackboard)
	logger.WriteYAML("blackboard", result.Blackboard)
	logger.WriteArtifact("candidates", result.Candidates)
	if result.FailurePattern != nil {
		logger.WriteArtifact("failure_pattern", result.FailurePattern)
		logger.WriteYAML("failure_pattern", result.FailurePattern)
	}
	if len(result.Landmarks) > 0 {
		logger.WriteArtifact("landmarks", result.Landmarks)
	}
	logger.WriteText("final_patch", result.FinalPatch)
}

func countCommitted(transactions []types.TransactionResult) int {
	n := 0
	for _, txn := range transactions {
		if txn.Committed {
			n++
		}
	}
	return n
}

