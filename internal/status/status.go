// Package status provides a thread-safe status tracker for the pulse-sync daemon.
// It is read by the HTTP handlers, the console and the periodic MQTT status event.
package status

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sweeney/pulse-sync/internal/controller"
	"github.com/sweeney/pulse-sync/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Broker         string
	HTTPAddr       string
	StatusInterval time.Duration
	GPIOChip       string
	Pins           Pins
	Realtime       bool
	RTPriority     int
	Simulated      bool
}

// Pins are the BCM line offsets in use; -1 means not connected.
type Pins struct {
	Heartbeat int
	Camera    int
	Emitter0  [2]int
	Emitter1  [2]int
}

// EventCounts counts published configuration events by type.
type EventCounts struct {
	RateSet     int
	ExposureSet int
	DelaySet    int
	Enabled     int
	Disabled    int
	Rejected    int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Session       string
	Sync          controller.Snapshot
	Counts        EventCounts
	LastEvent     *logic.Event
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config. Each
// tracker gets a new session ID, so consumers can tell restarts apart.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Session:   ulid.Make().String(),
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the controller snapshot.
// Called from runLoop on every status tick and after every command.
func (t *Tracker) Update(cs controller.Snapshot) {
	t.mu.Lock()
	t.snap.Sync = cs
	t.mu.Unlock()
}

// RecordEvent counts a configuration event and remembers it as the latest.
func (t *Tracker) RecordEvent(ev logic.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch ev.Type {
	case logic.EventRateSet:
		t.snap.Counts.RateSet++
	case logic.EventExposureSet:
		t.snap.Counts.ExposureSet++
	case logic.EventDelaySet:
		t.snap.Counts.DelaySet++
	case logic.EventEnabled:
		t.snap.Counts.Enabled++
	case logic.EventDisabled:
		t.snap.Counts.Disabled++
	case logic.EventRejected:
		t.snap.Counts.Rejected++
	}
	t.snap.LastEvent = &ev
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastEvent != nil {
		ev := *s.LastEvent
		s.LastEvent = &ev
	}
	s.Sync.Channels = append([]controller.ChannelStatus(nil), s.Sync.Channels...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
