// Package mcp exposes mill's state over the Model Context Protocol so an
// agent can inspect the session, queue, and run history. All tools are
// read-only; mutations stay with the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/taskmill/mill/internal/board"
	"github.com/taskmill/mill/internal/config"
	"github.com/taskmill/mill/internal/diagnostics"
	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/models"
	"github.com/taskmill/mill/internal/sessions"
)

// Server wraps mill's state files and board client as MCP tools.
type Server struct {
	cfg   *config.Config
	board board.Source
	store *metrics.Store
	pause *sessions.PauseController
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(cfg *config.Config, b board.Source, store *metrics.Store, pause *sessions.PauseController) *Server {
	return &Server{cfg: cfg, board: b, store: store, pause: pause}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("mill", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.statusTool())
	srv.AddTool(s.queueTool())
	srv.AddTool(s.historyTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// mill_status
func (s *Server) statusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("mill_status",
		mcp.WithDescription("Get the current session status: running/paused/idle, the task in flight with its phase and iteration, completed/failed counts, elapsed time, and session cost. Includes pause lock details when paused."),
	)
	return tool, s.handleStatus
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	progress, err := metrics.ReadProgress(s.cfg.ProgressPath())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read progress: %v", err)), nil
	}

	result := map[string]any{
		"status":           string(progress.Status),
		"tasks_completed":  progress.TasksCompleted,
		"tasks_failed":     progress.TasksFailed,
		"elapsed_seconds":  progress.ElapsedSeconds,
		"session_cost_usd": progress.SessionCostUSD,
	}
	if progress.CurrentTask != 0 {
		result["current_task"] = map[string]any{
			"issue":     progress.CurrentTask,
			"title":     progress.CurrentTitle,
			"phase":     string(progress.Phase),
			"iteration": progress.Iteration,
		}
	}
	if lock, active := s.pause.Active(time.Now()); active {
		pause := map[string]any{
			"reason":     lock.Reason,
			"created_at": lock.CreatedAt.Format(time.RFC3339),
		}
		if lock.ExpiresAt != nil {
			pause["expires_at"] = lock.ExpiresAt.Format(time.RFC3339)
		}
		result["pause"] = pause
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// mill_queue
func (s *Server) queueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("mill_queue",
		mcp.WithDescription("List the tasks currently in the ready column, in the order mill would pick them up. Each task has: number, title, labels, category, and url."),
	)
	return tool, s.handleQueue
}

func (s *Server) handleQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := s.board.ListReadyTasks()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list ready tasks: %v", err)), nil
	}

	type taskOut struct {
		Number   int      `json:"number"`
		Title    string   `json:"title"`
		Labels   []string `json:"labels,omitempty"`
		Category string   `json:"category"`
		URL      string   `json:"url,omitempty"`
	}

	out := make([]taskOut, len(tasks))
	for i, t := range tasks {
		out[i] = taskOut{
			Number:   t.Number,
			Title:    t.Title,
			Labels:   t.Labels,
			Category: string(s.board.Category(t)),
			URL:      t.URL,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal queue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// mill_history
func (s *Server) historyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("mill_history",
		mcp.WithDescription("List past task runs from the metrics store, newest first. Each run has: issue, branch, outcome (completed/failed/skipped/timeout), reason, iterations, cost_usd, duration_seconds, pull_request_url, and diagnostics_path. Failed runs include a remediation hint."),
		mcp.WithString("outcome", mcp.Description("Filter by outcome: completed, failed, skipped, timeout")),
		mcp.WithNumber("issue", mcp.Description("Filter by issue number")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return (default 20)")),
	)
	return tool, s.handleHistory
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.store.Runs()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load run history: %v", err)), nil
	}

	outcome := strings.ToLower(request.GetString("outcome", ""))
	issue := request.GetInt("issue", 0)
	limit := request.GetInt("limit", 20)

	type runOut struct {
		ID              string  `json:"id"`
		Issue           int     `json:"issue"`
		Title           string  `json:"title,omitempty"`
		Branch          string  `json:"branch"`
		Outcome         string  `json:"outcome"`
		Reason          string  `json:"reason,omitempty"`
		Iterations      int     `json:"iterations"`
		CostUSD         float64 `json:"cost_usd"`
		DurationSeconds int64   `json:"duration_seconds"`
		PullRequestURL  string  `json:"pull_request_url,omitempty"`
		DiagnosticsPath string  `json:"diagnostics_path,omitempty"`
		Hint            string  `json:"hint,omitempty"`
	}

	var out []runOut
	for i := len(runs) - 1; i >= 0; i-- { // newest first
		run := runs[i]
		if outcome != "" && string(run.Outcome) != outcome {
			continue
		}
		if issue != 0 && run.Issue != issue {
			continue
		}
		r := runOut{
			ID:              run.ID,
			Issue:           run.Issue,
			Title:           run.Title,
			Branch:          run.Branch,
			Outcome:         string(run.Outcome),
			Reason:          run.Reason,
			Iterations:      run.Iterations,
			CostUSD:         run.CostUSD,
			DurationSeconds: int64(run.Duration().Seconds()),
			PullRequestURL:  run.PullRequestURL,
			DiagnosticsPath: run.DiagnosticsPath,
		}
		if run.Outcome == models.OutcomeFailed && run.Reason != "" {
			r.Hint = diagnostics.Hint(models.ErrorKind(run.Reason))
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal history: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
