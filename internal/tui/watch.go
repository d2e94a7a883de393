// Package tui renders the live session view for mill watch. It polls the
// progress snapshot and metrics store; it never writes state, so closing
// the view never disturbs a running session.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/models"
)

const pollInterval = time.Second

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// Model is the bubbletea model behind mill watch.
type Model struct {
	progressPath string
	store        *metrics.Store
	now          func() time.Time

	spinner  spinner.Model
	progress *models.Progress
	recent   []*models.TaskRun
	readErr  error
	quitting bool
}

// NewModel creates a watch model reading from the given state files.
func NewModel(progressPath string, store *metrics.Store) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	return Model{
		progressPath: progressPath,
		store:        store,
		now:          time.Now,
		spinner:      sp,
	}
}

type tickMsg time.Time

type refreshMsg struct {
	progress *models.Progress
	recent   []*models.TaskRun
	err      error
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) refresh() tea.Cmd {
	progressPath, store := m.progressPath, m.store
	return func() tea.Msg {
		progress, err := metrics.ReadProgress(progressPath)
		if err != nil {
			return refreshMsg{err: err}
		}
		runs, err := store.Runs()
		if err != nil {
			// a torn read loses one poll, not the view
			return refreshMsg{progress: progress}
		}
		if len(runs) > 5 {
			runs = runs[len(runs)-5:]
		}
		return refreshMsg{progress: progress, recent: runs}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh(), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		switch typed.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.refresh(), tickCmd())
	case refreshMsg:
		if typed.err != nil {
			m.readErr = typed.err
			return m, nil
		}
		m.readErr = nil
		m.progress = typed.progress
		if typed.recent != nil {
			m.recent = typed.recent
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("mill"))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	if m.readErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("state unreadable: %v", m.readErr)))
		b.WriteString("\n")
	}

	if p := m.progress; p != nil {
		if p.CurrentTask != 0 {
			b.WriteString(fmt.Sprintf("%s #%d %s\n", m.spinner.View(), p.CurrentTask, p.CurrentTitle))
			b.WriteString(faintStyle.Render(fmt.Sprintf("  %s, iteration %d", phaseLabel(p.Phase), p.Iteration)))
			b.WriteString("\n\n")
		}
		b.WriteString(fmt.Sprintf("%s %d   %s %d   %s $%.2f   %s %s\n",
			labelStyle.Render("completed"), p.TasksCompleted,
			labelStyle.Render("failed"), p.TasksFailed,
			labelStyle.Render("cost"), p.SessionCostUSD,
			labelStyle.Render("elapsed"), formatElapsed(p.ElapsedSeconds),
		))
	}

	if len(m.recent) > 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("recent runs"))
		b.WriteString("\n")
		for i := len(m.recent) - 1; i >= 0; i-- {
			run := m.recent[i]
			line := fmt.Sprintf("  #%-5d %-10s %2d iter  $%.2f", run.Issue, outcomeLabel(run), run.Iterations, run.CostUSD)
			if run.Reason != "" {
				line += faintStyle.Render("  " + run.Reason)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) statusLine() string {
	if m.progress == nil {
		return idleStyle.Render("loading")
	}
	switch m.progress.Status {
	case models.SessionRunning:
		return runningStyle.Render("running")
	case models.SessionPaused:
		return pausedStyle.Render("paused")
	case models.SessionError:
		return errorStyle.Render("error")
	default:
		return idleStyle.Render("idle")
	}
}

func phaseLabel(phase models.Phase) string {
	switch phase {
	case models.PhaseBranchSetup:
		return "setting up branch"
	case models.PhaseImplementation:
		return "implementing"
	case models.PhaseVerification:
		return "verifying"
	case models.PhaseCommit:
		return "committing"
	case models.PhaseRecovery:
		return "collecting diagnostics"
	default:
		return string(phase)
	}
}

func outcomeLabel(run *models.TaskRun) string {
	switch run.Outcome {
	case models.OutcomeCompleted:
		return runningStyle.Render("completed")
	case models.OutcomeSkipped:
		return idleStyle.Render("skipped")
	default:
		return errorStyle.Render(string(run.Outcome))
	}
}

func formatElapsed(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
