// Package engine drives one task end to end: branch setup, iterative
// agent invocations bounded by the watchdog, verification, commit/PR,
// and the board column transition.
package engine

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskmill/mill/internal/agent"
	"github.com/taskmill/mill/internal/board"
	"github.com/taskmill/mill/internal/config"
	"github.com/taskmill/mill/internal/diagnostics"
	"github.com/taskmill/mill/internal/git"
	"github.com/taskmill/mill/internal/models"
	"github.com/taskmill/mill/internal/notify"
	"github.com/taskmill/mill/internal/output"
)

// Reasons for failed runs that are controlled terminations, not errors.
const (
	ReasonTimeout       = "timeout"
	ReasonBudget        = "budget_exceeded"
	ReasonMaxIterations = "max_iterations_exhausted"
	ReasonDryRun        = "dry_run"
)

// Notifier is the event sink consumed by the engine.
type Notifier interface {
	Notify(p notify.Payload)
}

// Collector captures failure diagnostics. Nil disables collection.
type Collector interface {
	Collect(task *models.Task, kind models.ErrorKind, output string) (string, error)
}

// RunStore persists finalized task runs.
type RunStore interface {
	Append(run *models.TaskRun) error
}

// PRClient covers the pull request operations the engine needs.
type PRClient interface {
	CreatePR(branch, title string, issue int, base string) (string, error)
	MergePR(url string, squash bool) error
}

// ProgressFunc receives phase transitions for the progress snapshot.
type ProgressFunc func(phase models.Phase, iteration int)

// Engine executes tasks. One Engine serves the whole session; RunTask is
// called for one task at a time.
type Engine struct {
	Config   *config.Config
	RepoPath string

	Git       git.Client
	Board     board.Source
	PRs       PRClient
	Runner    agent.Runner
	Verifier  Verifier
	Collector Collector
	Notifier  Notifier
	Store     RunStore
	UI        *output.UI

	// Explore runs the agent in read-only mode and skips all mutations.
	Explore bool

	OnProgress ProgressFunc
	Sleep      func(time.Duration) // test hook, defaults to time.Sleep
	Grace      time.Duration       // SIGTERM grace, defaults to DefaultGracePeriod

	budgetOverride time.Duration // test hook for sub-minute watchdog budgets
}

func (e *Engine) taskBudget() time.Duration {
	if e.budgetOverride > 0 {
		return e.budgetOverride
	}
	return e.Config.Iteration.TaskTimeoutDuration()
}

func (e *Engine) sleep(d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (e *Engine) progress(phase models.Phase, iteration int) {
	if e.OnProgress != nil {
		e.OnProgress(phase, iteration)
	}
}

// RunTask executes one task to a terminal outcome. Exactly one TaskRun is
// persisted per call; errors never escape to the session loop.
func (e *Engine) RunTask(task *models.Task) *models.TaskRun {
	category := e.Board.Category(task)
	branch := git.BranchForIssue(task.Number, task.Title)
	run := &models.TaskRun{
		ID:        ulid.Make().String(),
		Issue:     task.Number,
		Title:     task.Title,
		Branch:    branch,
		Category:  string(category),
		StartedAt: time.Now(),
	}

	if e.Explore {
		return e.explore(task, run, category)
	}

	e.Notifier.Notify(notify.Payload{Event: notify.EventTaskStarted, Issue: task.Number, Title: task.Title})

	if err := e.Board.AssignTask(task); err != nil {
		e.UI.Warning("assign #%d: %v", task.Number, err)
	}
	if err := e.Board.MoveTask(task, e.Config.GitHub.Columns.InProgress); err != nil {
		e.UI.Warning("move #%d to %s: %v", task.Number, e.Config.GitHub.Columns.InProgress, err)
	}

	e.progress(models.PhaseBranchSetup, 0)
	if err := e.setupBranch(branch); err != nil {
		return e.fail(task, run, 1, err.Error(), "")
	}

	// The timeout is a single wall-clock budget for the whole task:
	// iterations, verification runs, and retry sleeps all draw from it.
	budget := e.taskBudget()
	var deadline time.Time
	if budget > 0 {
		deadline = run.StartedAt.Add(budget)
	}
	lapsed := func() bool {
		return budget > 0 && !time.Now().Before(deadline)
	}

	maxIter := e.Config.Iteration.MaxIterations
	var prevOutput, lastOutput string
	for iteration := 1; iteration <= maxIter; iteration++ {
		if lapsed() {
			e.captureWIP(task, run)
			return e.fail(task, run, diagnostics.TimeoutExitCode, lastOutput, ReasonTimeout)
		}
		run.Iterations = iteration

		result, timedOut, err := e.runIteration(task, run, branch, category, iteration, prevOutput)
		if err != nil {
			return e.fail(task, run, 1, err.Error(), "")
		}
		lastOutput = result.Output

		if timedOut {
			e.captureWIP(task, run)
			return e.fail(task, run, diagnostics.TimeoutExitCode, result.Output, ReasonTimeout)
		}

		switch result.Signal {
		case agent.SignalHardFailure:
			exitCode := result.ExitCode
			if exitCode == 0 {
				exitCode = 1
			}
			return e.fail(task, run, exitCode, result.Output, "")

		case agent.SignalSuccess:
			e.progress(models.PhaseVerification, iteration)
			vStart := time.Now()
			run.VerifyStart = &vStart
			verifyOut, verr := e.Verifier.Verify(e.RepoPath)
			vEnd := time.Now()
			run.VerifyEnd = &vEnd
			if verr == nil {
				return e.complete(task, run, category)
			}
			e.UI.Warning("#%d iteration %d failed verification: %v", task.Number, iteration, verr)
			prevOutput = diagnostics.TailLines(verifyOut, diagnostics.DefaultOutputLines)
			lastOutput = verifyOut

		default: // needs more work
			prevOutput = diagnostics.TailLines(result.Output, diagnostics.DefaultOutputLines)
		}

		// Budget is checked after the iteration finishes, never mid-flight.
		if limit := e.Config.Budget.PerTaskLimit; limit > 0 && run.CostUSD >= limit {
			return e.fail(task, run, 1, lastOutput, ReasonBudget)
		}

		if iteration < maxIter {
			if lapsed() {
				e.captureWIP(task, run)
				return e.fail(task, run, diagnostics.TimeoutExitCode, lastOutput, ReasonTimeout)
			}
			run.Retries++
			delay := RetryDelay(iteration, e.Config.Iteration)
			e.UI.VerboseLog("#%d retrying in %s (iteration %d/%d)", task.Number, delay, iteration+1, maxIter)
			e.sleep(delay)
		}
	}

	return e.fail(task, run, 1, lastOutput, ReasonMaxIterations)
}

// runIteration performs one watched agent invocation.
func (e *Engine) runIteration(task *models.Task, run *models.TaskRun, branch string, category models.Category, iteration int, prevOutput string) (*agent.Result, bool, error) {
	e.progress(models.PhaseImplementation, iteration)
	iStart := time.Now()
	run.ImplStart = &iStart

	prompt, err := agent.RenderPrompt(agent.PromptData{
		Task:           task,
		Branch:         branch,
		Category:       category,
		VerifyCommands: e.Config.Agent.VerifyCommands,
		PreviousOutput: prevOutput,
	})
	if err != nil {
		return nil, false, fmt.Errorf("render prompt: %w", err)
	}

	inv, err := e.Runner.Start(agent.Request{Dir: e.RepoPath, Prompt: prompt, Explore: e.Explore})
	if err != nil {
		return nil, false, err
	}

	wd := &Watchdog{
		Budget:  e.taskBudget(),
		Elapsed: time.Since(run.StartedAt),
		Grace:   e.Grace,
		OnWarning: func(pct int, elapsed time.Duration) {
			if pct >= 90 {
				e.UI.Warning("#%d at %d%% of task timeout (%s elapsed)", task.Number, pct, elapsed.Round(time.Second))
			} else {
				e.UI.Info("#%d at %d%% of task timeout (%s elapsed)", task.Number, pct, elapsed.Round(time.Second))
			}
		},
	}
	stop, fired := wd.Watch(inv)
	result, err := inv.Wait()
	stop()
	if err != nil {
		return nil, false, err
	}

	iEnd := time.Now()
	run.ImplEnd = &iEnd
	run.CostUSD += result.CostUSD
	run.InputTokens += result.InputTokens
	run.OutputTokens += result.OutputTokens

	return result, fired.Load(), nil
}

// explore runs a single read-only agent pass and persists a skipped run.
func (e *Engine) explore(task *models.Task, run *models.TaskRun, category models.Category) *models.TaskRun {
	result, _, err := e.runIteration(task, run, run.Branch, category, 1, "")
	if err != nil {
		e.UI.Warning("explore #%d: %v", task.Number, err)
	} else {
		e.UI.Info("explore #%d: %s", task.Number, result.Summary)
	}
	run.Iterations = 1
	run.Outcome = models.OutcomeSkipped
	run.Reason = ReasonDryRun
	e.finalize(run)
	return run
}

func (e *Engine) setupBranch(branch string) error {
	exists, err := e.Git.BranchExists(e.RepoPath, branch)
	if err != nil {
		return err
	}
	if exists {
		return e.Git.CheckoutBranch(e.RepoPath, branch)
	}
	return e.Git.CreateBranch(e.RepoPath, branch, e.Config.GitHub.BaseBranch)
}

// captureWIP commits whatever the agent left behind so a timed-out task
// loses no work.
func (e *Engine) captureWIP(task *models.Task, run *models.TaskRun) {
	dirty, err := e.Git.IsDirty(e.RepoPath)
	if err != nil || !dirty {
		return
	}
	subject := fmt.Sprintf("[WIP] #%d: %s (timed out after %d iterations)", task.Number, task.Title, run.Iterations)
	if err := e.Git.CommitAll(e.RepoPath, subject); err != nil {
		e.UI.Warning("WIP commit for #%d: %v", task.Number, err)
	}
}

// complete handles the success path: commit, push, PR, optional
// auto-merge, column move, persistence, notification.
func (e *Engine) complete(task *models.Task, run *models.TaskRun, category models.Category) *models.TaskRun {
	e.progress(models.PhaseCommit, run.Iterations)

	subject := fmt.Sprintf("%s: %s (#%d)", category, task.Title, task.Number)
	if e.Config.Iteration.GigachadMode && e.Config.Iteration.GigachadCommitPrefix != "" {
		subject = e.Config.Iteration.GigachadCommitPrefix + " " + subject
	}

	if dirty, _ := e.Git.IsDirty(e.RepoPath); dirty {
		if err := e.Git.CommitAll(e.RepoPath, subject); err != nil {
			return e.fail(task, run, 1, err.Error(), "")
		}
	}
	if err := e.Git.Push(e.RepoPath, run.Branch); err != nil {
		return e.fail(task, run, 1, err.Error(), "")
	}

	prURL, err := e.PRs.CreatePR(run.Branch, subject, task.Number, e.Config.GitHub.BaseBranch)
	if err != nil {
		return e.fail(task, run, 1, err.Error(), "")
	}
	run.PullRequestURL = prURL

	doneColumn := e.Config.GitHub.Columns.InReview
	if e.Config.Iteration.GigachadMode {
		// Squash merge first; fall back to a regular merge on conflict.
		if err := e.PRs.MergePR(prURL, true); err != nil {
			e.UI.Warning("squash merge %s: %v, retrying with merge commit", prURL, err)
			if err := e.PRs.MergePR(prURL, false); err != nil {
				return e.fail(task, run, 1, err.Error(), "")
			}
		}
		doneColumn = e.Config.GitHub.Columns.Done
	}

	run.Outcome = models.OutcomeCompleted
	e.finalize(run)

	e.Notifier.Notify(notify.Payload{
		Event:      notify.EventTaskCompleted,
		Issue:      task.Number,
		Title:      task.Title,
		Outcome:    string(models.OutcomeCompleted),
		Iterations: run.Iterations,
		CostUSD:    run.CostUSD,
		Meta:       map[string]any{"pull_request": prURL},
	})

	if err := e.Board.MoveTask(task, doneColumn); err != nil {
		e.UI.Warning("move #%d to %s: %v", task.Number, doneColumn, err)
	}

	e.UI.Success("#%d completed in %d iteration(s), $%.2f", task.Number, run.Iterations, run.CostUSD)
	return run
}

// fail handles every failure exit in a fixed order: classify, diagnose,
// persist, notify, move. The order guarantees a reader of the metrics
// file never sees a failed run whose diagnostics bundle is missing.
func (e *Engine) fail(task *models.Task, run *models.TaskRun, exitCode int, capturedOutput, reason string) *models.TaskRun {
	e.progress(models.PhaseRecovery, run.Iterations)

	kind := diagnostics.Classify(exitCode, capturedOutput)
	if reason == "" {
		reason = string(kind)
	}
	run.Outcome = models.OutcomeFailed
	run.Reason = reason

	if e.Collector != nil && e.Config.DiagnosticsEnabled() {
		if dir, err := e.Collector.Collect(task, kind, capturedOutput); err == nil {
			run.DiagnosticsPath = dir
		} else {
			e.UI.Warning("collect diagnostics for #%d: %v", task.Number, err)
		}
	}

	e.finalize(run)

	e.Notifier.Notify(notify.Payload{
		Event:      notify.EventTaskFailed,
		Issue:      task.Number,
		Title:      task.Title,
		Outcome:    string(models.OutcomeFailed),
		Reason:     reason,
		Iterations: run.Iterations,
		CostUSD:    run.CostUSD,
		Meta:       map[string]any{"diagnostics": run.DiagnosticsPath},
	})

	failColumn := e.Config.GitHub.Columns.Ready
	if e.Config.GitHub.MoveOnFailure == "failed" {
		failColumn = e.Config.GitHub.Columns.Failed
	}
	if err := e.Board.MoveTask(task, failColumn); err != nil {
		e.UI.Warning("move #%d to %s: %v", task.Number, failColumn, err)
	}

	e.UI.Error("#%d failed (%s), diagnostics: %s", task.Number, reason, orNone(run.DiagnosticsPath))
	e.UI.Info("hint: %s", diagnostics.Hint(kind))
	return run
}

// finalize stamps the end time and persists the run exactly once.
func (e *Engine) finalize(run *models.TaskRun) {
	end := time.Now()
	run.EndedAt = &end
	if err := e.Store.Append(run); err != nil {
		e.UI.Error("persist run for #%d: %v", run.Issue, err)
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
