package sessions

import (
	"context"
	"time"

	"github.com/taskmill/mill/internal/board"
	"github.com/taskmill/mill/internal/config"
	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/models"
	"github.com/taskmill/mill/internal/notify"
	"github.com/taskmill/mill/internal/output"
)

// StopReason explains why the session loop ended.
type StopReason string

const (
	StopQueueEmpty          StopReason = "queue_empty"
	StopMaxTasks            StopReason = "max_tasks"
	StopSessionBudget       StopReason = "session_budget"
	StopConsecutiveFailures StopReason = "consecutive_failures"
	StopCanceled            StopReason = "canceled"
	StopBoardError          StopReason = "board_error"
)

// Engine executes a single task to a terminal outcome.
type Engine interface {
	RunTask(task *models.Task) *models.TaskRun
}

// Notifier is the session-level event sink.
type Notifier interface {
	Notify(p notify.Payload)
}

// Summary aggregates one session's results.
type Summary struct {
	TasksCompleted int
	TasksFailed    int
	TasksSkipped   int
	CostUSD        float64
	StopReason     StopReason
}

// Manager drains the ready column one task at a time, honoring the pause
// lock, budgets, and failure circuit breaker between tasks.
type Manager struct {
	Config   *config.Config
	Board    board.Source
	Engine   Engine
	Pause    *PauseController
	Progress *metrics.ProgressWriter
	Notifier Notifier
	UI       *output.UI

	snapshot     models.Progress
	pollOverride time.Duration // test hook for sub-second pause polling
}

// Run drains ready tasks until a stop condition holds. The context only
// interrupts between tasks and while paused; a task in flight always runs
// to its terminal outcome.
func (m *Manager) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	m.Notifier.Notify(notify.Payload{Event: notify.EventSessionStarted})
	m.setStatus(models.SessionRunning)

	consecutiveFailures := 0
	processed := 0

	defer func() {
		m.snapshot.CurrentTask = 0
		m.snapshot.CurrentTitle = ""
		m.snapshot.Phase = ""
		m.snapshot.Iteration = 0
		m.setStatus(models.SessionIdle)
		m.Notifier.Notify(notify.Payload{
			Event:   notify.EventSessionEnded,
			Reason:  string(summary.StopReason),
			CostUSD: summary.CostUSD,
			Meta: map[string]any{
				"completed": summary.TasksCompleted,
				"failed":    summary.TasksFailed,
				"skipped":   summary.TasksSkipped,
			},
		})
	}()

	for {
		if ctx.Err() != nil {
			summary.StopReason = StopCanceled
			return summary, nil
		}

		if !m.waitWhilePaused(ctx) {
			summary.StopReason = StopCanceled
			return summary, nil
		}

		if limit := m.Config.Budget.PerSessionLimit; limit > 0 && summary.CostUSD >= limit {
			m.UI.Warning("session budget exhausted ($%.2f of $%.2f)", summary.CostUSD, limit)
			summary.StopReason = StopSessionBudget
			return summary, nil
		}
		if max := m.Config.Session.MaxTasks; max > 0 && processed >= max {
			summary.StopReason = StopMaxTasks
			return summary, nil
		}

		task, err := m.Board.NextReadyTask()
		if err != nil {
			m.UI.Error("fetch next task: %v", err)
			summary.StopReason = StopBoardError
			return summary, err
		}
		if task == nil {
			m.UI.Info("ready column is empty")
			summary.StopReason = StopQueueEmpty
			return summary, nil
		}

		m.snapshot.CurrentTask = task.Number
		m.snapshot.CurrentTitle = task.Title
		m.writeProgress()

		run := m.Engine.RunTask(task)
		processed++
		summary.CostUSD += run.CostUSD
		m.snapshot.SessionCostUSD = summary.CostUSD

		switch run.Outcome {
		case models.OutcomeCompleted:
			summary.TasksCompleted++
			m.snapshot.TasksCompleted++
			consecutiveFailures = 0
		case models.OutcomeSkipped:
			summary.TasksSkipped++
		default:
			summary.TasksFailed++
			m.snapshot.TasksFailed++
			consecutiveFailures++
		}
		m.writeProgress()

		if max := m.Config.Session.MaxConsecutiveFailures; max > 0 && consecutiveFailures >= max {
			m.UI.Error("%d consecutive failures, stopping the session", consecutiveFailures)
			summary.StopReason = StopConsecutiveFailures
			return summary, nil
		}
	}
}

// OnTaskProgress is wired into the engine so phase transitions land in
// the progress snapshot.
func (m *Manager) OnTaskProgress(phase models.Phase, iteration int) {
	m.snapshot.Phase = phase
	m.snapshot.Iteration = iteration
	m.writeProgress()
}

// waitWhilePaused blocks while the pause lock is active, polling at the
// configured interval. It returns false when the context is canceled.
func (m *Manager) waitWhilePaused(ctx context.Context) bool {
	poll := time.Duration(m.Config.Session.PausePollSeconds) * time.Second
	if m.pollOverride > 0 {
		poll = m.pollOverride
	}
	if poll <= 0 {
		poll = 5 * time.Second
	}
	announced := false
	for {
		lock, active := m.Pause.Active(time.Now())
		if !active {
			if announced {
				m.UI.Info("pause lifted, resuming")
				m.setStatus(models.SessionRunning)
			}
			return true
		}
		if !announced {
			announced = true
			if lock.Reason != "" {
				m.UI.Warning("session paused: %s", lock.Reason)
			} else {
				m.UI.Warning("session paused")
			}
			m.setStatus(models.SessionPaused)
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(poll):
		}
	}
}

func (m *Manager) setStatus(status models.SessionStatus) {
	m.snapshot.Status = status
	m.writeProgress()
}

func (m *Manager) writeProgress() {
	if m.Progress == nil {
		return
	}
	if err := m.Progress.Write(&m.snapshot); err != nil {
		m.UI.VerboseLog("write progress: %v", err)
	}
}
