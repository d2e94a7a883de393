package models

import "time"

// Outcome represents the terminal state of a task run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeTimeout   Outcome = "timeout"
)

// ErrorKind classifies why a task run failed.
type ErrorKind string

const (
	ErrorTimeout   ErrorKind = "timeout_failure"
	ErrorGit       ErrorKind = "git_error"
	ErrorAPI       ErrorKind = "api_error"
	ErrorBuild     ErrorKind = "build_failure"
	ErrorExecution ErrorKind = "execution_error"
)

// Phase represents where in the task lifecycle a run currently is.
type Phase string

const (
	PhaseBranchSetup    Phase = "branch_setup"
	PhaseImplementation Phase = "implementation"
	PhaseVerification   Phase = "verification"
	PhaseCommit         Phase = "commit"
	PhaseRecovery       Phase = "error_recovery"
)

// TaskRun records one end-to-end execution attempt of a task.
// It is created when the engine picks up a task and flushed to the
// metrics store exactly once, after the terminal outcome is known.
type TaskRun struct {
	ID         string  `json:"id"`
	Issue      int     `json:"issue"`
	Title      string  `json:"title,omitempty"`
	Branch     string  `json:"branch"`
	Category   string  `json:"category,omitempty"`
	Iterations int     `json:"iterations"`
	Retries    int     `json:"retries"`
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`

	CostUSD      float64 `json:"cost_usd"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`

	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	ImplStart   *time.Time `json:"impl_start,omitempty"`
	ImplEnd     *time.Time `json:"impl_end,omitempty"`
	VerifyStart *time.Time `json:"verify_start,omitempty"`
	VerifyEnd   *time.Time `json:"verify_end,omitempty"`

	DiagnosticsPath string `json:"diagnostics_path,omitempty"`
	PullRequestURL  string `json:"pull_request_url,omitempty"`
}

// Duration returns the wall time of the run, zero if still in flight.
func (r *TaskRun) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
