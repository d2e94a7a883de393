package notify

import (
	"sync"
	"time"
)

// RateLimiter bounds notification frequency. Short spurts are governed by
// the burst cap within a rolling window; the minimum interval applies when
// a new window opens, throttling sustained traffic. State is process-local
// and resets per session.
type RateLimiter struct {
	mu sync.Mutex

	minInterval time.Duration
	burstLimit  int
	burstWindow time.Duration

	lastSent    time.Time
	burstCount  int
	windowStart time.Time

	now func() time.Time // test hook
}

// NewRateLimiter builds a limiter from config values in seconds.
func NewRateLimiter(minIntervalSec, burstLimit, burstWindowSec int) *RateLimiter {
	return &RateLimiter{
		minInterval: time.Duration(minIntervalSec) * time.Second,
		burstLimit:  burstLimit,
		burstWindow: time.Duration(burstWindowSec) * time.Second,
		now:         time.Now,
	}
}

// Allow reports whether a send may proceed now, consuming budget if so.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	if rl.burstLimit <= 0 {
		// No burst allowance configured; spacing alone governs.
		if !rl.lastSent.IsZero() && now.Sub(rl.lastSent) < rl.minInterval {
			return false
		}
		rl.lastSent = now
		return true
	}

	if rl.windowStart.IsZero() || now.Sub(rl.windowStart) >= rl.burstWindow {
		rl.windowStart = now
		rl.burstCount = 0
	}

	if rl.burstCount >= rl.burstLimit {
		return false
	}
	// Opening a fresh window still honors the minimum spacing.
	if rl.burstCount == 0 && !rl.lastSent.IsZero() && now.Sub(rl.lastSent) < rl.minInterval {
		return false
	}

	rl.burstCount++
	rl.lastSent = now
	return true
}
