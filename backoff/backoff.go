// Package backoff provides the delay schedules used between supervised
// attempts.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

const (
	smoothing = 4.0
	maxintf   = float64(math.MaxInt64) - 1
)

// Iterator returns the delay before the next retry each time it is called.
type Iterator func() time.Duration

// None retries immediately.
func None() Iterator {
	return func() time.Duration { return 0 }
}

// Fixed pauses for d before every retry. Negative values are treated as zero.
func Fixed(d time.Duration) Iterator {
	if d < 0 {
		d = 0
	}
	return func() time.Duration { return d }
}

// New returns a decorrelated soft exponential schedule whose median first
// delay is initialMedian, capped at maxDelay. If firstFast is set, the first
// retry is immediate.
func New(initialMedian time.Duration, maxDelay time.Duration, firstFast bool) Iterator {
	if maxDelay < 0 {
		panic("maxDelay must not be negative")
	}
	initial := float64(initialMedian)
	maxDf := float64(maxDelay)
	var (
		prev float64
		i    int
	)
	return func() time.Duration {
		if i == 0 && firstFast {
			i++
			return 0
		}
		t := float64(i) + rand.Float64()
		i++
		next := math.Pow(2, t) * math.Tanh(math.Sqrt(smoothing*t))
		out := (next - prev) * initial
		switch {
		case maxDelay > 0 && out > maxDf:
			return maxDelay
		case out > maxintf:
			// maxintf serves as a backstop against float64->int64 overflow
			return time.Duration(math.MaxInt64)
		default:
			prev = next
			return time.Duration(out)
		}
	}
}
