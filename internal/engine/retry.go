package engine

import (
	"math/rand"
	"time"

	"github.com/taskmill/mill/internal/config"
)

// RetryDelay computes the backoff before the next iteration. Deterministic
// for a given iteration and policy unless jitter is enabled.
func RetryDelay(iteration int, it config.Iteration) time.Duration {
	return retryDelay(iteration, it, rand.Float64)
}

// retryDelay takes the random source as a parameter so jitter is testable.
func retryDelay(iteration int, it config.Iteration, randFloat func() float64) time.Duration {
	if iteration < 1 {
		iteration = 1
	}
	base := float64(it.RetryDelay)

	var seconds float64
	switch it.RetryBackoff {
	case config.BackoffFixed:
		seconds = base
	case config.BackoffLinear:
		seconds = base * float64(iteration)
	default: // exponential
		// Clamp the exponent: 1<<62 already dwarfs any usable delay, and
		// larger shifts wrap to zero or negative.
		shift := iteration - 1
		if shift > 62 {
			shift = 62
		}
		seconds = base * float64(int64(1)<<uint(shift))
	}

	if max := float64(it.RetryMaxDelay); max > 0 && seconds > max {
		seconds = max
	}

	if it.RetryJitter {
		// Uniform adjustment of +/-20%, clamped to at least one second.
		seconds *= 0.8 + 0.4*randFloat()
		if seconds < 1 {
			seconds = 1
		}
	}

	return time.Duration(seconds * float64(time.Second))
}
