package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmill/mill/internal/output"
)

var queueJSON bool

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List ready tasks in pickup order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return queueRun()
	},
}

func init() {
	queueCmd.Flags().BoolVar(&queueJSON, "json", false, "Emit machine-readable JSON")
	rootCmd.AddCommand(queueCmd)
}

func queueRun() error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	b, err := newBoard(c)
	if err != nil {
		return err
	}

	tasks, err := b.ListReadyTasks()
	if err != nil {
		return err
	}

	if queueJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	if len(tasks) == 0 {
		ui.Info("ready column is empty")
		return nil
	}

	table := ui.Table([]string{"Issue", "Title", "Category", "Labels"})
	for _, t := range tasks {
		table.Append([]string{
			output.Cyan(fmt.Sprintf("#%d", t.Number)),
			t.Title,
			string(b.Category(t)),
			strings.Join(t.Labels, ", "),
		})
	}
	table.Render()
	ui.Info("%d task(s) ready", len(tasks))
	return nil
}
