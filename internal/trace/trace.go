// Package trace records channel tick events and checks them against the
// synchronization protocol: ordering of signal hand-offs and the timing of
// each channel's stages.
package trace

import (
	"sync"

	"github.com/sweeney/pulse-sync/internal/logic"
)

// DefaultLimit bounds a Recorder to about a minute of events at 15 Hz.
const DefaultLimit = 1 << 16

// Recorder keeps the first limit events it observes. It is safe for
// concurrent use, so it can observe channels running in their own goroutines.
type Recorder struct {
	mu      sync.Mutex
	events  []logic.TickEvent
	limit   int
	dropped int
}

// NewRecorder creates a Recorder holding at most limit events.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Observe records ev. Its method value is a channel.Observer.
func (r *Recorder) Observe(ev logic.TickEvent) {
	r.mu.Lock()
	if len(r.events) < r.limit {
		r.events = append(r.events, ev)
	} else {
		r.dropped++
	}
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in observation order.
func (r *Recorder) Events() []logic.TickEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]logic.TickEvent(nil), r.events...)
}

// Dropped returns how many events arrived after the recorder filled up.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Reset discards every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.dropped = 0
	r.mu.Unlock()
}
