// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pulse-sync/internal/logic"
)

// Topic is the MQTT topic for configuration events.
const Topic = "lab/pulse-sync/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "lab/pulse-sync/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a configuration event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, status).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "STATUS"
	Reason     string // e.g., "SIGTERM", "QUIT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Sync SyncPayload `json:"sync"`
}

// SyncPayload contains the configuration event details.
type SyncPayload struct {
	Timestamp string   `json:"timestamp"`
	Event     string   `json:"event"`
	Channel   string   `json:"channel,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Register  *int     `json:"register,omitempty"`
	Achieved  float64  `json:"achieved_hz,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a configuration event.
// ENABLED and DISABLED carry no channel, value or register.
func FormatPayload(event logic.Event) ([]byte, error) {
	inner := SyncPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Channel:   string(event.Channel),
		Achieved:  event.Achieved,
		Reason:    event.Reason,
	}
	switch event.Type {
	case logic.EventEnabled, logic.EventDisabled:
	case logic.EventRejected:
		inner.Value = &event.Value
	default:
		inner.Value = &event.Value
		inner.Register = &event.Register
	}
	return json.Marshal(Payload{Sync: inner})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Discard is a Publisher for running without a broker.
type Discard struct{}

func (Discard) Publish(logic.Event) error       { return nil }
func (Discard) PublishSystem(SystemEvent) error { return nil }
func (Discard) Close() error                    { return nil }
func (Discard) IsConnected() bool               { return false }
