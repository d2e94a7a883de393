package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal view of the running session",
	Long: `Watch renders the progress snapshot and recent runs, refreshing every
second. It only reads state files, so it can be opened and closed freely
while a session runs in another terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchRun() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	model := tui.NewModel(c.ProgressPath(), metrics.NewStore(c.MetricsPath()))
	_, err = tea.NewProgram(model).Run()
	return err
}
