package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/mill/internal/config"
	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/models"
	"github.com/taskmill/mill/internal/sessions"
)

type stubBoard struct {
	tasks []*models.Task
}

func (b *stubBoard) NextReadyTask() (*models.Task, error) {
	if len(b.tasks) == 0 {
		return nil, nil
	}
	return b.tasks[0], nil
}

func (b *stubBoard) ListReadyTasks() ([]*models.Task, error) { return b.tasks, nil }
func (b *stubBoard) MoveTask(*models.Task, string) error     { return nil }
func (b *stubBoard) AssignTask(*models.Task) error           { return nil }
func (b *stubBoard) Category(t *models.Task) models.Category {
	if t.Category != "" {
		return t.Category
	}
	return models.CategoryChore
}

func newTestServer(t *testing.T, b *stubBoard) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	store := &metrics.Store{Path: cfg.MetricsPath(), RetentionDays: metrics.DefaultRetentionDays}
	pause := sessions.NewPauseController(cfg.PauseLockPath())
	return NewServer(cfg, b, store, pause)
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) string {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, "tool returned error: %+v", result)
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestToolsRegistered(t *testing.T) {
	s := newTestServer(t, &stubBoard{})
	srv := s.MCPServer()
	assert.NotNil(t, srv)
}

func TestStatusIdleWithoutSession(t *testing.T) {
	s := newTestServer(t, &stubBoard{})

	text := callTool(t, s.handleStatus, nil)
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &status))

	assert.Equal(t, "idle", status["status"])
	_, hasPause := status["pause"]
	assert.False(t, hasPause)
	_, hasTask := status["current_task"]
	assert.False(t, hasTask)
}

func TestStatusReportsProgressAndPause(t *testing.T) {
	s := newTestServer(t, &stubBoard{})

	writer := metrics.NewProgressWriter(s.cfg.ProgressPath())
	require.NoError(t, writer.Write(&models.Progress{
		Status:         models.SessionRunning,
		CurrentTask:    42,
		CurrentTitle:   "Fix login crash",
		Phase:          models.PhaseImplementation,
		Iteration:      2,
		TasksCompleted: 3,
	}))
	require.NoError(t, s.pause.Pause("deploy freeze", time.Hour))

	text := callTool(t, s.handleStatus, nil)
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &status))

	assert.Equal(t, "running", status["status"])
	assert.Equal(t, float64(3), status["tasks_completed"])

	task, ok := status["current_task"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), task["issue"])
	assert.Equal(t, "implementation", task["phase"])

	pause, ok := status["pause"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "deploy freeze", pause["reason"])
	assert.Contains(t, pause, "expires_at")
}

func TestQueueListsReadyTasks(t *testing.T) {
	s := newTestServer(t, &stubBoard{tasks: []*models.Task{
		{Number: 7, Title: "Add dark mode", Labels: []string{"enhancement"}, Category: models.CategoryFeature},
		{Number: 9, Title: "Fix typo in README", Category: models.CategoryDocs},
	}})

	text := callTool(t, s.handleQueue, nil)
	var tasks []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &tasks))

	require.Len(t, tasks, 2)
	assert.Equal(t, float64(7), tasks[0]["number"])
	assert.Equal(t, "feature", tasks[0]["category"])
	assert.Equal(t, "docs", tasks[1]["category"])
}

func TestHistoryFiltersAndOrders(t *testing.T) {
	s := newTestServer(t, &stubBoard{})

	base := time.Now().Add(-time.Hour)
	for i, spec := range []struct {
		issue   int
		outcome models.Outcome
		reason  string
	}{
		{10, models.OutcomeCompleted, ""},
		{11, models.OutcomeFailed, string(models.ErrorBuild)},
		{12, models.OutcomeCompleted, ""},
	} {
		started := base.Add(time.Duration(i) * time.Minute)
		ended := started.Add(30 * time.Second)
		require.NoError(t, s.store.Append(&models.TaskRun{
			ID:        ulidLike(i),
			Issue:     spec.issue,
			Branch:    "mill/branch",
			Outcome:   spec.outcome,
			Reason:    spec.reason,
			StartedAt: started,
			EndedAt:   &ended,
		}))
	}

	text := callTool(t, s.handleHistory, nil)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &runs))
	require.Len(t, runs, 3)
	assert.Equal(t, float64(12), runs[0]["issue"], "newest first")

	text = callTool(t, s.handleHistory, map[string]any{"outcome": "failed"})
	runs = nil
	require.NoError(t, json.Unmarshal([]byte(text), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, float64(11), runs[0]["issue"])
	assert.NotEmpty(t, runs[0]["hint"], "failed runs carry a remediation hint")

	text = callTool(t, s.handleHistory, map[string]any{"limit": 1})
	runs = nil
	require.NoError(t, json.Unmarshal([]byte(text), &runs))
	assert.Len(t, runs, 1)
}

func TestHistoryEmptyStore(t *testing.T) {
	s := newTestServer(t, &stubBoard{})
	text := callTool(t, s.handleHistory, nil)
	assert.Equal(t, "null", text)
}

func ulidLike(i int) string {
	return fmt.Sprintf("01TESTRUN%02d", i)
}
