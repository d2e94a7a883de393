package engine

import (
	"sync/atomic"
	"time"

	"github.com/taskmill/mill/internal/agent"
)

// DefaultGracePeriod is how long a SIGTERM'd agent gets to flush state
// before SIGKILL.
const DefaultGracePeriod = 30 * time.Second

// Watchdog enforces the per-task wall-time budget on an agent invocation.
// It warns at 75% and 90% of the task budget, then escalates
// SIGTERM -> grace -> SIGKILL. The budget spans the whole task: Elapsed
// carries the wall time already consumed by earlier iterations, so
// thresholds fire once per task, not once per invocation.
type Watchdog struct {
	Budget  time.Duration
	Elapsed time.Duration
	Grace   time.Duration

	// OnWarning is called with the percentage threshold that fired.
	OnWarning func(pct int, elapsed time.Duration)
}

// thresholdTimer arms a timer for the pct warning relative to the task
// budget. Returns nil when the task already crossed that threshold in an
// earlier invocation.
func thresholdTimer(budget, elapsed time.Duration, pct int) *time.Timer {
	d := budget*time.Duration(pct)/100 - elapsed
	if d < 0 {
		return nil
	}
	return time.NewTimer(d)
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Watch arms the watchdog against inv. The returned stop function
// disarms it (call once Wait returns); fired reports whether the budget
// lapsed and the invocation was interrupted.
func (w *Watchdog) Watch(inv agent.Invocation) (stop func(), fired *atomic.Bool) {
	fired = &atomic.Bool{}
	if w.Budget <= 0 {
		return func() {}, fired
	}

	grace := w.Grace
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	remaining := w.Budget - w.Elapsed
	if remaining < 0 {
		remaining = 0
	}

	done := make(chan struct{})
	start := time.Now()

	warn75 := thresholdTimer(w.Budget, w.Elapsed, 75)
	warn90 := thresholdTimer(w.Budget, w.Elapsed, 90)
	deadline := time.NewTimer(remaining)

	go func() {
		defer stopTimer(warn75)
		defer stopTimer(warn90)
		defer deadline.Stop()
		for {
			select {
			case <-done:
				return
			case <-timerC(warn75):
				if w.OnWarning != nil {
					w.OnWarning(75, w.Elapsed+time.Since(start))
				}
			case <-timerC(warn90):
				if w.OnWarning != nil {
					w.OnWarning(90, w.Elapsed+time.Since(start))
				}
			case <-deadline.C:
				fired.Store(true)
				_ = inv.RequestGracefulStop()
				select {
				case <-done:
					return
				case <-time.After(grace):
					_ = inv.ForceKill()
				}
				return
			}
		}
	}()

	var stopped atomic.Bool
	return func() {
		if stopped.CompareAndSwap(false, true) {
			close(done)
		}
	}, fired
}
