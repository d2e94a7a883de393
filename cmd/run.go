package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taskmill/mill/internal/agent"
	"github.com/taskmill/mill/internal/board"
	"github.com/taskmill/mill/internal/config"
	"github.com/taskmill/mill/internal/diagnostics"
	"github.com/taskmill/mill/internal/engine"
	"github.com/taskmill/mill/internal/git"
	"github.com/taskmill/mill/internal/llm"
	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/notify"
	"github.com/taskmill/mill/internal/output"
	"github.com/taskmill/mill/internal/sessions"
)

var (
	runMaxTasks int
	runOnce     bool
	runRepoPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a session: drain ready tasks through the agent",
	Long: `Run pulls tasks from the board's ready column one at a time and drives
each through branch setup, agent iterations, verification, and a pull
request. The session stops when the queue is empty, a budget or task cap
is reached, or too many tasks fail in a row.

Ctrl-C stops the session after the task in flight reaches a terminal
outcome; it never abandons a half-done task.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun()
	},
}

func init() {
	runCmd.Flags().IntVar(&runMaxTasks, "max-tasks", 0, "Stop after this many tasks (0 = until the queue drains)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Process a single task and exit")
	runCmd.Flags().StringVar(&runRepoPath, "repo-path", ".", "Path to the working checkout")
	rootCmd.AddCommand(runCmd)
}

func runRun() error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	if runMaxTasks > 0 {
		c.Session.MaxTasks = runMaxTasks
	}
	if runOnce {
		c.Session.MaxTasks = 1
	}

	pidFile := sessions.NewPIDFile(c.SessionPIDPath())
	if pid, running := pidFile.IsRunning(); running {
		return fmt.Errorf("a session is already running (pid %d)", pid)
	}
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return err
	}
	if err := pidFile.Write(); err != nil {
		return err
	}
	defer func() { _ = pidFile.Remove() }()

	if c.Output.LogFile != "" {
		logger, err := output.NewLogger(c.Output.LogFile, c.Output.LogLevel,
			c.Output.MaxLogSizeMB, c.Output.MaxLogFiles)
		if err != nil {
			return err
		}
		ui.Log = logger
		defer logger.Close()
	}

	manager, err := buildManager(c, runRepoPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := manager.Run(ctx)
	if err != nil {
		return err
	}

	ui.Info("session ended (%s): %d completed, %d failed, %d skipped, $%.2f",
		summary.StopReason, summary.TasksCompleted, summary.TasksFailed, summary.TasksSkipped, summary.CostUSD)
	return nil
}

// buildManager assembles the engine and session loop from configuration.
func buildManager(c *config.Config, repoPath string) (*sessions.Manager, error) {
	gc := git.NewClient()
	b, err := newBoard(c)
	if err != nil {
		return nil, err
	}
	store := metrics.NewStore(c.MetricsPath())
	dispatcher := notify.NewDispatcher(c.Notifications, ui)

	eng := &engine.Engine{
		Config:    c,
		RepoPath:  repoPath,
		Git:       gc,
		Board:     b,
		PRs:       b,
		Runner:    &agent.CLIRunner{Command: c.Agent.Command, Args: c.Agent.Args},
		Verifier:  &engine.ShellVerifier{Commands: c.Agent.VerifyCommands},
		Collector: diagnostics.NewCollector(c.DiagnosticsDir(), repoPath, gc),
		Notifier:  dispatcher,
		Store:     store,
		UI:        ui,
		Explore:   dryRun,
	}

	manager := &sessions.Manager{
		Config:   c,
		Board:    b,
		Engine:   eng,
		Pause:    sessions.NewPauseController(c.PauseLockPath()),
		Progress: metrics.NewProgressWriter(c.ProgressPath()),
		Notifier: dispatcher,
		UI:       ui,
	}
	eng.OnProgress = manager.OnTaskProgress
	return manager, nil
}

// newBoard builds the gh-backed board source, with the LLM category
// fallback attached when enabled.
func newBoard(c *config.Config) (*board.GhBoard, error) {
	var fallback board.Categorizer
	if c.Category.LLMFallback {
		fallback = llm.NewClient(viper.GetString("anthropic.api_key"), c.Category.Model)
	}
	return board.New(c, fallback)
}
