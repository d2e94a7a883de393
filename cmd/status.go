package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/models"
	"github.com/taskmill/mill/internal/output"
	"github.com/taskmill/mill/internal/sessions"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session status and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit machine-readable JSON")
	rootCmd.AddCommand(statusCmd)
}

func statusRun() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	progress, err := metrics.ReadProgress(c.ProgressPath())
	if err != nil {
		return err
	}
	lock, paused := sessions.NewPauseController(c.PauseLockPath()).Active(time.Now())
	runs, err := metrics.NewStore(c.MetricsPath()).Runs()
	if err != nil {
		return err
	}
	if len(runs) > 5 {
		runs = runs[len(runs)-5:]
	}

	if statusJSON {
		doc := map[string]any{
			"progress": progress,
			"paused":   paused,
			"recent":   runs,
		}
		if paused {
			doc["pause"] = lock
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	status := string(progress.Status)
	if paused {
		status = string(models.SessionPaused)
	}
	ui.Info("session: %s", output.SessionColor(status))

	if progress.Status == models.SessionRunning {
		if _, running := sessions.NewPIDFile(c.SessionPIDPath()).IsRunning(); !running {
			ui.Warning("state says running but no session process found; the last session may have crashed")
		}
	}

	if paused {
		if lock.Reason != "" {
			ui.Warning("paused: %s", lock.Reason)
		}
		if lock.ExpiresAt != nil {
			ui.Info("auto-resumes at %s", lock.ExpiresAt.Format(time.Kitchen))
		}
	}

	if progress.CurrentTask != 0 {
		ui.Info("working on #%d %s (%s, iteration %d)",
			progress.CurrentTask, progress.CurrentTitle, progress.Phase, progress.Iteration)
	}
	if progress.Status != models.SessionIdle {
		ui.Info("completed %d, failed %d, $%.2f, elapsed %s",
			progress.TasksCompleted, progress.TasksFailed, progress.SessionCostUSD,
			(time.Duration(progress.ElapsedSeconds) * time.Second).String())
	}

	if len(runs) > 0 {
		table := ui.Table([]string{"Issue", "Outcome", "Iter", "Cost", "Duration", "Reason"})
		for i := len(runs) - 1; i >= 0; i-- {
			run := runs[i]
			table.Append([]string{
				fmt.Sprintf("#%d", run.Issue),
				output.OutcomeColor(string(run.Outcome)),
				fmt.Sprintf("%d", run.Iterations),
				fmt.Sprintf("$%.2f", run.CostUSD),
				run.Duration().Round(time.Second).String(),
				run.Reason,
			})
		}
		table.Render()
	}
	return nil
}
