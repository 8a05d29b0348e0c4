// Package clock provides the tick time base for channels that run in their
// own goroutines.
package clock

import (
	"context"
	"runtime"
	"time"

	"github.com/sweeney/pulse-sync/internal/logic"
)

// Tick is the wall-clock length of one tick.
const Tick = time.Second / logic.TickHz

// DefaultSpin is how close to a deadline Real stops sleeping on a timer and
// busy-waits instead. Timer wakeups on Linux land tens of microseconds late.
const DefaultSpin = 200 * time.Microsecond

// Clock is a shared, monotonically advancing tick counter.
type Clock interface {
	// Now returns the current tick.
	Now() int64

	// SleepUntil blocks until the clock reaches tick or ctx ends.
	// A tick in the past returns immediately.
	SleepUntil(ctx context.Context, tick int64) error
}

// Real counts ticks of the host monotonic clock since it was created.
type Real struct {
	start time.Time
	spin  time.Duration
}

// NewReal creates a Real clock starting at tick 0 now.
func NewReal() *Real {
	return &Real{start: time.Now(), spin: DefaultSpin}
}

// NewRealSpin creates a Real clock with a custom busy-wait window.
// A zero spin sleeps on timers only.
func NewRealSpin(spin time.Duration) *Real {
	return &Real{start: time.Now(), spin: spin}
}

// Now returns the number of whole ticks since the clock started.
func (r *Real) Now() int64 {
	return int64(time.Since(r.start) / Tick)
}

// Time converts a tick to wall-clock time.
func (r *Real) Time(tick int64) time.Time {
	return r.start.Add(time.Duration(tick) * Tick)
}

// SleepUntil sleeps on a timer until the spin window, then yields in a loop
// until the deadline.
func (r *Real) SleepUntil(ctx context.Context, tick int64) error {
	deadline := r.Time(tick)
	if d := time.Until(deadline) - r.spin; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}
