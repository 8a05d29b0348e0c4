// Package logic contains the pure timing arithmetic and event types shared by
// the pulse-sync channels.
// This package has NO external dependencies (no GPIO, MQTT, OS, or goroutines).
package logic

import "time"

// ChannelID names one of the four fixed timing channels.
type ChannelID string

const (
	Heartbeat ChannelID = "heartbeat"
	Emitter0  ChannelID = "emitter0"
	Emitter1  ChannelID = "emitter1"
	Window    ChannelID = "window"
)

// Channels lists every channel in the order the lock-step driver advances them.
var Channels = []ChannelID{Heartbeat, Emitter0, Emitter1, Window}

// Signal names.
const (
	SignalCycle   = "S_CYCLE"
	SignalCapture = "S_CAPTURE"
)

// EventType identifies an operator-visible configuration change.
type EventType string

const (
	EventRateSet     EventType = "RATE_SET"
	EventExposureSet EventType = "EXPOSURE_SET"
	EventDelaySet    EventType = "DELAY_SET"
	EventEnabled     EventType = "ENABLED"
	EventDisabled    EventType = "DISABLED"
	EventRejected    EventType = "REJECTED"
)

// Event is a configuration change to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Channel   ChannelID // empty for ENABLED/DISABLED
	Value     float64   // requested parameter (Hz or µs)
	Register  int       // derived tick register
	Achieved  float64   // achieved heartbeat rate, RATE_SET only
	Reason    string    // REJECTED only
}

// Kind is what happened on a single tick of a channel.
type Kind string

const (
	KindWoke  Kind = "WOKE"  // wait-and-clear returned
	KindRaise Kind = "RAISE" // signal raised
	KindLower Kind = "LOWER" // signal lowered without waiting
	KindHigh  Kind = "HIGH"  // output driven high
	KindLow   Kind = "LOW"   // output driven low
)

// TickEvent is one observable step of a channel, stamped with the tick on
// which it happened.
type TickEvent struct {
	Tick    int64
	Channel ChannelID
	Kind    Kind
	Signal  string // WOKE, RAISE, LOWER
	Line    int    // HIGH, LOW: index of the output line within the channel
}
