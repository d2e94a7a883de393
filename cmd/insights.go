package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/output"
)

var insightsDays int

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Aggregate stats over past runs: success rate, cost, failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		return insightsRun()
	},
}

func init() {
	insightsCmd.Flags().IntVar(&insightsDays, "days", 0, "Only include runs from the last N days (0 = all retained)")
	rootCmd.AddCommand(insightsCmd)
}

func insightsRun() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	runs, err := metrics.NewStore(c.MetricsPath()).Runs()
	if err != nil {
		return err
	}
	if insightsDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -insightsDays)
		kept := runs[:0]
		for _, r := range runs {
			if r.StartedAt.After(cutoff) {
				kept = append(kept, r)
			}
		}
		runs = kept
	}

	ins := metrics.Summarize(runs)
	if ins.TotalRuns == 0 {
		ui.Info("no runs recorded")
		return nil
	}

	ui.Info("%d run(s): %s completed, %s failed, %d skipped",
		ins.TotalRuns,
		output.Green(fmt.Sprintf("%d", ins.Completed)),
		output.Red(fmt.Sprintf("%d", ins.Failed)),
		ins.Skipped)
	ui.Info("success rate %.0f%%, avg %.1f iterations, avg duration %s",
		ins.SuccessRate*100, ins.AvgIterations, ins.AvgDuration.Round(time.Second))
	ui.Info("total spend $%.2f (avg $%.2f per run)", ins.TotalCostUSD, ins.AvgCostUSD)

	if len(ins.FailureReasons) > 0 {
		table := ui.Table([]string{"Failure reason", "Count"})
		for _, rc := range ins.FailureReasons {
			table.Append([]string{rc.Reason, fmt.Sprintf("%d", rc.Count)})
		}
		table.Render()
	}

	if len(ins.CostByCategory) > 0 {
		table := ui.Table([]string{"Category", "Runs", "Cost"})
		for _, cc := range ins.CostByCategory {
			table.Append([]string{cc.Category, fmt.Sprintf("%d", cc.Runs), fmt.Sprintf("$%.2f", cc.CostUSD)})
		}
		table.Render()
	}
	return nil
}
