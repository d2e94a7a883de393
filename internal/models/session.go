package models

import "time"

// SessionStatus represents the state of the session loop.
type SessionStatus string

const (
	SessionRunning SessionStatus = "running"
	SessionPaused  SessionStatus = "paused"
	SessionIdle    SessionStatus = "idle"
	SessionError   SessionStatus = "error"
)

// Progress is the mutable snapshot the session loop overwrites on every
// tick. The status/watch commands read it without locking, so a reader
// may observe a slightly stale snapshot.
type Progress struct {
	Status         SessionStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	CurrentTask    int           `json:"current_task,omitempty"`
	CurrentTitle   string        `json:"current_title,omitempty"`
	Phase          Phase         `json:"phase,omitempty"`
	Iteration      int           `json:"iteration,omitempty"`
	TasksCompleted int           `json:"tasks_completed"`
	TasksFailed    int           `json:"tasks_failed"`
	ElapsedSeconds int64         `json:"elapsed_seconds"`
	SessionCostUSD float64       `json:"session_cost_usd"`
	LastUpdated    time.Time     `json:"last_updated"`
}

// PauseLock is the optional payload of the pause lock file. The file's
// presence alone means "paused"; an empty body is valid.
type PauseLock struct {
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the lock carries an expiry in the past.
func (p *PauseLock) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}
