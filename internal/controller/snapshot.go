package controller

import "github.com/sweeney/pulse-sync/internal/logic"

// ChannelStatus is a point-in-time view of one channel.
type ChannelStatus struct {
	ID       logic.ChannelID
	Active   bool
	Register int
	Waiting  bool // parked at its wait stage; for the window this is "armed"
	Faults   int64
}

// Snapshot is a point-in-time view of the controller.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Params    Params
	Channels  []ChannelStatus
	Tick      int64 // lock-step ticks driven so far
	Running   bool  // channels run in their own goroutines
	Cycles    int64 // S_CYCLE raises
	Captures  int64 // S_CAPTURE raises
	Exposures int64 // exposure windows opened
}

// Enabled reports whether every channel is active.
func (s Snapshot) Enabled() bool {
	for _, ch := range s.Channels {
		if !ch.Active {
			return false
		}
	}
	return len(s.Channels) > 0
}

// Channel returns the status of id.
func (s Snapshot) Channel(id logic.ChannelID) (ChannelStatus, bool) {
	for _, ch := range s.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return ChannelStatus{}, false
}

// Snapshot returns the current parameters, registers and counters.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Params:    c.params,
		Tick:      c.tick,
		Running:   c.clk != nil,
		Cycles:    c.cycles.Load(),
		Captures:  c.captures.Load(),
		Exposures: c.exposures.Load(),
	}
	for _, m := range c.machines() {
		snap.Channels = append(snap.Channels, ChannelStatus{
			ID:       m.ID(),
			Active:   m.Active(),
			Register: m.Register(),
			Waiting:  m.Waiting(),
			Faults:   m.Faults(),
		})
	}
	return snap
}

// Armed reports whether the window channel is waiting for a capture.
func (c *Controller) Armed() bool {
	return c.window.Waiting()
}
