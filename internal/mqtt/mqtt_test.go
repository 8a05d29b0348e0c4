package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/pulse-sync/internal/logic"
)

var ts = time.Date(2026, 3, 4, 10, 15, 0, 0, time.UTC)

func TestTopics(t *testing.T) {
	if Topic != "lab/pulse-sync/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "lab/pulse-sync/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	tests := []struct {
		name  string
		event logic.Event
		want  string
	}{
		{
			name: "rate",
			event: logic.Event{
				Timestamp: ts, Type: logic.EventRateSet, Channel: logic.Heartbeat,
				Value: 1000, Register: 997, Achieved: 1000,
			},
			want: `{"sync":{"timestamp":"2026-03-04T10:15:00Z","event":"RATE_SET","channel":"heartbeat","value":1000,"register":997,"achieved_hz":1000}}`,
		},
		{
			name: "exposure",
			event: logic.Event{
				Timestamp: ts, Type: logic.EventExposureSet, Channel: logic.Window,
				Value: 30, Register: 27,
			},
			want: `{"sync":{"timestamp":"2026-03-04T10:15:00Z","event":"EXPOSURE_SET","channel":"window","value":30,"register":27}}`,
		},
		{
			name: "zero register is kept",
			event: logic.Event{
				Timestamp: ts, Type: logic.EventDelaySet, Channel: logic.Emitter0,
				Value: 1, Register: 0,
			},
			want: `{"sync":{"timestamp":"2026-03-04T10:15:00Z","event":"DELAY_SET","channel":"emitter0","value":1,"register":0}}`,
		},
		{
			name:  "enabled",
			event: logic.Event{Timestamp: ts, Type: logic.EventEnabled},
			want:  `{"sync":{"timestamp":"2026-03-04T10:15:00Z","event":"ENABLED"}}`,
		},
		{
			name: "rejected",
			event: logic.Event{
				Timestamp: ts, Type: logic.EventRejected, Channel: logic.Emitter1,
				Value: 10, Reason: "invalid parameter",
			},
			want: `{"sync":{"timestamp":"2026-03-04T10:15:00Z","event":"REJECTED","channel":"emitter1","value":10,"reason":"invalid parameter"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatPayload(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, tt.want)
			}
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	event := logic.Event{
		Timestamp: time.Date(2026, 3, 4, 11, 15, 0, 0, loc),
		Type:      logic.EventDisabled,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Sync.Timestamp != "2026-03-04T10:15:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Sync.Timestamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	tests := []struct {
		name  string
		event SystemEvent
		want  string
	}{
		{
			name:  "will",
			event: SystemEvent{Timestamp: ts, Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"},
			want:  `{"system":{"timestamp":"2026-03-04T10:15:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`,
		},
		{
			name:  "reconnected omits reason",
			event: SystemEvent{Timestamp: ts, Event: "RECONNECTED"},
			want:  `{"system":{"timestamp":"2026-03-04T10:15:00Z","event":"RECONNECTED"}}`,
		},
		{
			name:  "raw payload passes through",
			event: SystemEvent{Timestamp: ts, Event: "STATUS", RawPayload: []byte(`{"status":{}}`)},
			want:  `{"status":{}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatSystemPayload(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, tt.want)
			}
		})
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	events := []logic.Event{
		{Timestamp: ts, Type: logic.EventEnabled},
		{Timestamp: ts, Type: logic.EventRateSet, Channel: logic.Heartbeat, Value: 15, Register: 66664},
		{Timestamp: ts, Type: logic.EventDisabled},
	}
	for _, ev := range events {
		if err := f.Publish(ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got := f.EventTypes()
	want := []logic.EventType{logic.EventEnabled, logic.EventRateSet, logic.EventDisabled}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if len(f.Payloads) != 3 {
		t.Errorf("expected 3 payloads, got %d", len(f.Payloads))
	}
	if f.Events[1].Register != 66664 {
		t.Errorf("event data not preserved: %+v", f.Events[1])
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.Publish(logic.Event{Type: logic.EventEnabled}); err == nil {
		t.Error("expected Publish error")
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err == nil {
		t.Error("expected PublishSystem error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestFakePublisherSystemEvents(t *testing.T) {
	f := NewFakePublisher()
	f.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP", Retained: true})
	f.PublishSystem(SystemEvent{Timestamp: ts, Event: "STATUS"})

	names := f.SystemEventNames()
	if len(names) != 2 || names[0] != "STARTUP" || names[1] != "STATUS" {
		t.Errorf("unexpected system events: %v", names)
	}
	if !f.SystemEvents[0].Retained || f.SystemEvents[1].Retained {
		t.Error("retained flag not recorded")
	}
	if len(f.SystemPayloads) != 2 {
		t.Errorf("expected 2 system payloads, got %d", len(f.SystemPayloads))
	}
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	f.Publish(logic.Event{Type: logic.EventEnabled})
	f.Close()

	if !f.Closed {
		t.Error("expected Closed after Close")
	}
	if !f.IsConnected() {
		t.Error("expected IsConnected to follow Connected")
	}

	f.Reset()
	if f.Closed || f.IsConnected() || len(f.Events) != 0 || len(f.Payloads) != 0 {
		t.Error("Reset did not clear state")
	}
	if err := f.Publish(logic.Event{Type: logic.EventDisabled}); err != nil {
		t.Fatalf("publish after reset: %v", err)
	}
	if len(f.Events) != 1 {
		t.Errorf("expected 1 event after reset, got %d", len(f.Events))
	}
}
