// Package signal provides the binary, edge-triggered synchronization
// primitives that timing channels hand off through.
//
// A Signal is a one-slot latch: Raise sets it, WaitAndClear blocks until it is
// set and lowers it before returning. Raises do not queue. At most one
// goroutine may wait on a Signal at a time; a Broadcast gives each of several
// consumers its own Signal so every primitive keeps that property.
package signal

import (
	"context"
	"fmt"
	"sync"
)

// Raiser is the producer side shared by Signal and Broadcast.
type Raiser interface {
	Name() string
	Raise()
	Lower()
}

// Signal is a binary latch with a single waiter.
type Signal struct {
	name string

	mu      sync.Mutex
	raised  bool
	waiting bool
	wake    chan struct{}
}

// New creates a lowered Signal.
func New(name string) *Signal {
	return &Signal{
		name: name,
		wake: make(chan struct{}, 1),
	}
}

// Name returns the signal's name.
func (s *Signal) Name() string {
	return s.name
}

// Raise sets the signal and wakes the waiter, if any. Raising an already
// raised signal does nothing.
func (s *Signal) Raise() {
	s.mu.Lock()
	if !s.raised {
		s.raised = true
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}

// Lower clears the signal without waiting for it.
func (s *Signal) Lower() {
	s.mu.Lock()
	s.raised = false
	s.drain()
	s.mu.Unlock()
}

// Raised reports whether the signal is currently set.
func (s *Signal) Raised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raised
}

// TryClear lowers the signal if it is raised and reports whether it was.
// It is the non-blocking form of WaitAndClear used by the lock-step driver.
func (s *Signal) TryClear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.raised {
		return false
	}
	s.raised = false
	s.drain()
	return true
}

// WaitAndClear blocks until the signal is raised, then lowers it before
// returning. It returns ctx.Err() without consuming anything if ctx ends first.
// A second concurrent waiter panics.
func (s *Signal) WaitAndClear(ctx context.Context) error {
	s.mu.Lock()
	if s.waiting {
		s.mu.Unlock()
		panic(fmt.Sprintf("signal %s: second concurrent waiter", s.name))
	}
	s.waiting = true
	for !s.raised {
		s.mu.Unlock()
		select {
		case <-s.wake:
		case <-ctx.Done():
			s.mu.Lock()
			s.waiting = false
			s.mu.Unlock()
			return ctx.Err()
		}
		s.mu.Lock()
	}
	s.raised = false
	s.drain()
	s.waiting = false
	s.mu.Unlock()
	return nil
}

// drain discards a stale wake token. Caller must hold mu.
func (s *Signal) drain() {
	select {
	case <-s.wake:
	default:
	}
}

// Broadcast raises and lowers one Signal per consumer together, so each
// consumer observes every edge independently.
type Broadcast struct {
	name string
	taps []*Signal
}

// NewBroadcast creates a Broadcast with n consumer taps.
func NewBroadcast(name string, n int) *Broadcast {
	b := &Broadcast{name: name, taps: make([]*Signal, n)}
	for i := range b.taps {
		b.taps[i] = New(name)
	}
	return b
}

// Name returns the broadcast's name.
func (b *Broadcast) Name() string {
	return b.name
}

// Tap returns consumer i's Signal.
func (b *Broadcast) Tap(i int) *Signal {
	return b.taps[i]
}

// Raise raises every tap.
func (b *Broadcast) Raise() {
	for _, t := range b.taps {
		t.Raise()
	}
}

// Lower lowers every tap.
func (b *Broadcast) Lower() {
	for _, t := range b.taps {
		t.Lower()
	}
}
