package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTickIsOneMicrosecond(t *testing.T) {
	if Tick != time.Microsecond {
		t.Errorf("Tick: got %v, want 1µs", Tick)
	}
}

func TestRealNowAdvances(t *testing.T) {
	c := NewReal()
	a := c.Now()
	time.Sleep(2 * time.Millisecond)
	b := c.Now()
	if b-a < 2000 {
		t.Errorf("Now advanced %d ticks over 2ms, want >= 2000", b-a)
	}
}

func TestRealSleepUntil(t *testing.T) {
	c := NewReal()
	target := c.Now() + 3000
	if err := c.SleepUntil(context.Background(), target); err != nil {
		t.Fatalf("SleepUntil: %v", err)
	}
	if now := c.Now(); now < target {
		t.Errorf("woke at tick %d, before target %d", now, target)
	}
}

func TestRealSleepUntilPast(t *testing.T) {
	c := NewRealSpin(0)
	start := time.Now()
	if err := c.SleepUntil(context.Background(), -100); err != nil {
		t.Fatalf("SleepUntil: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("SleepUntil in the past took %v", time.Since(start))
	}
}

func TestRealSleepUntilCancel(t *testing.T) {
	c := NewReal()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.SleepUntil(ctx, c.Now()+int64(10*time.Second/Tick))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestRealTime(t *testing.T) {
	c := NewReal()
	if got := c.Time(1500).Sub(c.Time(500)); got != time.Millisecond {
		t.Errorf("Time(1500)-Time(500): got %v, want 1ms", got)
	}
}
