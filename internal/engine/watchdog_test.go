package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmill/mill/internal/agent"
)

// stubInvocation records the stop signals the watchdog sends.
type stubInvocation struct {
	mu       sync.Mutex
	termed   bool
	killed   bool
	unblock  chan struct{}
	unblockO sync.Once
}

func newStubInvocation() *stubInvocation {
	return &stubInvocation{unblock: make(chan struct{})}
}

func (s *stubInvocation) Wait() (*agent.Result, error) {
	<-s.unblock
	return &agent.Result{Signal: agent.SignalNeedsMoreWork}, nil
}

func (s *stubInvocation) RequestGracefulStop() error {
	s.mu.Lock()
	s.termed = true
	s.mu.Unlock()
	return nil
}

func (s *stubInvocation) ForceKill() error {
	s.mu.Lock()
	s.killed = true
	s.mu.Unlock()
	s.unblockO.Do(func() { close(s.unblock) })
	return nil
}

func (s *stubInvocation) state() (termed, killed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.termed, s.killed
}

func TestWatchdogDisabledWhenNoBudget(t *testing.T) {
	wd := &Watchdog{Budget: 0}
	inv := newStubInvocation()
	stop, fired := wd.Watch(inv)
	stop()
	assert.False(t, fired.Load())
	termed, killed := inv.state()
	assert.False(t, termed)
	assert.False(t, killed)
}

func TestWatchdogStopDisarms(t *testing.T) {
	wd := &Watchdog{Budget: time.Hour}
	inv := newStubInvocation()
	stop, fired := wd.Watch(inv)
	stop()
	stop() // idempotent
	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired.Load())
	termed, _ := inv.state()
	assert.False(t, termed)
}

func TestWatchdogWarningsThenKill(t *testing.T) {
	var warnings []int
	var mu sync.Mutex
	wd := &Watchdog{
		Budget: 100 * time.Millisecond,
		Grace:  50 * time.Millisecond,
		OnWarning: func(pct int, _ time.Duration) {
			mu.Lock()
			warnings = append(warnings, pct)
			mu.Unlock()
		},
	}
	inv := newStubInvocation()
	stop, fired := wd.Watch(inv)
	defer stop()

	require.Eventually(t, func() bool {
		_, killed := inv.state()
		return killed
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, fired.Load())
	termed, killed := inv.state()
	assert.True(t, termed, "SIGTERM precedes SIGKILL")
	assert.True(t, killed)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{75, 90}, warnings)
}

func TestWatchdogElapsedShrinksRemainingBudget(t *testing.T) {
	// A later iteration inherits the wall time earlier ones consumed: the
	// 75% warning already passed, only 90% and the deadline remain.
	var warnings []int
	var mu sync.Mutex
	wd := &Watchdog{
		Budget:  time.Hour,
		Elapsed: time.Hour - 80*time.Millisecond, // ~99.998% consumed
		Grace:   20 * time.Millisecond,
		OnWarning: func(pct int, _ time.Duration) {
			mu.Lock()
			warnings = append(warnings, pct)
			mu.Unlock()
		},
	}
	inv := newStubInvocation()
	stop, fired := wd.Watch(inv)
	defer stop()

	require.Eventually(t, func() bool {
		_, killed := inv.state()
		return killed
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, fired.Load())
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, warnings, "thresholds crossed in earlier iterations don't re-fire")
}

func TestWatchdogExhaustedBudgetStopsImmediately(t *testing.T) {
	wd := &Watchdog{
		Budget:  50 * time.Millisecond,
		Elapsed: 200 * time.Millisecond,
		Grace:   10 * time.Millisecond,
	}
	inv := newStubInvocation()
	stop, fired := wd.Watch(inv)
	defer stop()

	require.Eventually(t, func() bool {
		termed, _ := inv.state()
		return termed
	}, time.Second, 5*time.Millisecond)
	assert.True(t, fired.Load())
}

func TestWatchdogNoKillWithinGrace(t *testing.T) {
	wd := &Watchdog{Budget: 50 * time.Millisecond, Grace: time.Hour}
	inv := newStubInvocation()
	stop, fired := wd.Watch(inv)

	require.Eventually(t, func() bool {
		termed, _ := inv.state()
		return termed
	}, 2*time.Second, 10*time.Millisecond)

	// Simulate the process honoring SIGTERM before the grace lapses.
	inv.unblockO.Do(func() { close(inv.unblock) })
	stop()

	assert.True(t, fired.Load())
	_, killed := inv.state()
	assert.False(t, killed)
}
