package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/taskmill/mill/internal/mcp"
	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/sessions"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve mill state over MCP (stdio)",
	Long: `Serve exposes read-only MCP tools (mill_status, mill_queue,
mill_history) over stdio so an agent can inspect the session and run
history. Add it to an MCP client config as:

  {"command": "mill", "args": ["mcp"]}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
	c, err := requireConfig()
	if err != nil {
		return err
	}
	b, err := newBoard(c)
	if err != nil {
		return err
	}

	server := mcp.NewServer(c, b,
		metrics.NewStore(c.MetricsPath()),
		sessions.NewPauseController(c.PauseLockPath()))
	return server.ServeStdio(context.Background())
}
