package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaiseIsIdempotent(t *testing.T) {
	s := New("S")
	s.Raise()
	s.Raise()
	assert.True(t, s.Raised())

	assert.True(t, s.TryClear())
	assert.False(t, s.Raised())
	assert.False(t, s.TryClear(), "two raises must not queue")
}

func TestLower(t *testing.T) {
	s := New("S")
	s.Raise()
	s.Lower()
	assert.False(t, s.Raised())
	assert.False(t, s.TryClear())
}

func TestWaitAndClearAlreadyRaised(t *testing.T) {
	s := New("S")
	s.Raise()
	require.NoError(t, s.WaitAndClear(context.Background()))
	assert.False(t, s.Raised())
}

func TestWaitAndClearBlocksUntilRaise(t *testing.T) {
	s := New("S")
	done := make(chan error, 1)
	go func() {
		done <- s.WaitAndClear(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("WaitAndClear returned before Raise")
	case <-time.After(20 * time.Millisecond):
	}

	s.Raise()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitAndClear did not return after Raise")
	}
	assert.False(t, s.Raised(), "waiter must lower the signal")
}

func TestWaitAndClearIgnoresLoweredRaise(t *testing.T) {
	s := New("S")
	s.Raise()
	s.Lower()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitAndClear(ctx), context.DeadlineExceeded)
}

func TestWaitAndClearCancel(t *testing.T) {
	s := New("S")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.WaitAndClear(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("WaitAndClear ignored cancellation")
	}

	// A cancelled waiter leaves no trace: a new waiter is allowed and a
	// later raise is still observed.
	s.Raise()
	require.NoError(t, s.WaitAndClear(context.Background()))
}

func TestSecondWaiterPanics(t *testing.T) {
	s := New("S")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		_ = s.WaitAndClear(ctx)
	}()
	<-started
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.waiting
	}, time.Second, time.Millisecond)

	assert.Panics(t, func() {
		_ = s.WaitAndClear(ctx)
	})
}

func TestBroadcastEachTapSeesEdge(t *testing.T) {
	b := NewBroadcast("S_CYCLE", 2)
	b.Raise()

	assert.True(t, b.Tap(0).TryClear())
	assert.True(t, b.Tap(1).Raised(), "consuming one tap must not consume the other")
	assert.True(t, b.Tap(1).TryClear())

	b.Raise()
	b.Lower()
	assert.False(t, b.Tap(0).Raised())
	assert.False(t, b.Tap(1).Raised())
	assert.Equal(t, "S_CYCLE", b.Tap(1).Name())
}

func TestBroadcastWakesAllWaiters(t *testing.T) {
	b := NewBroadcast("S_CYCLE", 2)
	done := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			if err := b.Tap(i).WaitAndClear(context.Background()); err == nil {
				done <- i
			}
		}(i)
	}
	b.Raise()

	seen := map[int]bool{}
	for len(seen) < 2 {
		select {
		case i := <-done:
			seen[i] = true
		case <-time.After(time.Second):
			t.Fatalf("only %d of 2 waiters woke", len(seen))
		}
	}
}
