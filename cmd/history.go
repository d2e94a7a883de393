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
)

var (
	historyLimit  int
	historyFailed bool
	historyIssue  int
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past task runs from the metrics store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to show")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only failed and timed-out runs")
	historyCmd.Flags().IntVar(&historyIssue, "issue", 0, "Only runs for this issue number")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Emit machine-readable JSON")
	rootCmd.AddCommand(historyCmd)
}

func historyRun() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	store := metrics.NewStore(c.MetricsPath())
	runs, err := store.Runs()
	if err != nil {
		return err
	}

	var filtered []*models.TaskRun
	for i := len(runs) - 1; i >= 0; i-- { // newest first
		run := runs[i]
		if historyFailed && (run.Outcome == models.OutcomeCompleted || run.Outcome == models.OutcomeSkipped) {
			continue
		}
		if historyIssue != 0 && run.Issue != historyIssue {
			continue
		}
		filtered = append(filtered, run)
		if historyLimit > 0 && len(filtered) >= historyLimit {
			break
		}
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(filtered)
	}

	if len(filtered) == 0 {
		ui.Info("no matching runs")
		return nil
	}

	table := ui.Table([]string{"When", "Issue", "Outcome", "Iter", "Cost", "Duration", "Reason"})
	for _, run := range filtered {
		table.Append([]string{
			run.StartedAt.Format("Jan 02 15:04"),
			output.Cyan(fmt.Sprintf("#%d", run.Issue)),
			output.OutcomeColor(string(run.Outcome)),
			fmt.Sprintf("%d", run.Iterations),
			fmt.Sprintf("$%.2f", run.CostUSD),
			run.Duration().Round(time.Second).String(),
			run.Reason,
		})
	}
	table.Render()
	return nil
}
