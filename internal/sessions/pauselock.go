// Package sessions runs the outer task loop and owns the pause lock.
package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/taskmill/mill/internal/metrics"
	"github.com/taskmill/mill/internal/models"
)

// PauseController manages the pause lock file. The file's presence means
// paused; its JSON body carries an optional reason and expiry.
type PauseController struct {
	Path string
}

// NewPauseController creates a controller for the lock at path.
func NewPauseController(path string) *PauseController {
	return &PauseController{Path: path}
}

// Pause writes the lock. Pausing an already-paused session overwrites the
// lock with the new reason and expiry, so pause is idempotent.
func (p *PauseController) Pause(reason string, duration time.Duration) error {
	lock := models.PauseLock{Reason: reason, CreatedAt: time.Now()}
	if duration > 0 {
		expires := lock.CreatedAt.Add(duration)
		lock.ExpiresAt = &expires
	}
	return metrics.WriteJSONAtomic(p.Path, lock)
}

// Resume removes the lock and reports whether one existed. Resuming an
// unpaused session is a no-op, not an error.
func (p *PauseController) Resume() (bool, error) {
	err := os.Remove(p.Path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove pause lock: %w", err)
	}
	return true, nil
}

// Current reads the lock without interpreting expiry. It returns nil when
// no lock exists. A lock with an unreadable body still counts as paused;
// presence is the signal, the body is advisory.
func (p *PauseController) Current() (*models.PauseLock, error) {
	data, err := os.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pause lock: %w", err)
	}
	var lock models.PauseLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return &models.PauseLock{}, nil
	}
	return &lock, nil
}

// Active returns the lock if the session should hold. An expired lock is
// removed here, so the session that observes the expiry also cleans up.
func (p *PauseController) Active(now time.Time) (*models.PauseLock, bool) {
	lock, err := p.Current()
	if err != nil || lock == nil {
		return nil, false
	}
	if lock.Expired(now) {
		_, _ = p.Resume()
		return nil, false
	}
	return lock, true
}
