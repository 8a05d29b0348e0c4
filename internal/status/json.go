package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pulse-sync/internal/controller"
	"github.com/sweeney/pulse-sync/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Session       string        `json:"session"`
	Enabled       bool          `json:"enabled"`
	Running       bool          `json:"running"`
	Armed         bool          `json:"armed"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	Params        ParamsJSON    `json:"params"`
	Channels      []ChannelJSON `json:"channels"`
	Counters      CountersJSON  `json:"counters"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Config        ConfigJSON    `json:"config"`
}

// ParamsJSON is the JSON representation of the accepted parameters.
type ParamsJSON struct {
	RateHz        float64 `json:"rate_hz"`
	AchievedHz    float64 `json:"achieved_hz"`
	ExposureUs    int     `json:"exposure_us"`
	DelayUs       [2]int  `json:"delay_us"`
	DelayOffsetUs int     `json:"delay_offset_us"`
}

// ChannelJSON is the JSON representation of one channel.
type ChannelJSON struct {
	ID       string `json:"id"`
	Active   bool   `json:"active"`
	Register int    `json:"register"`
	Waiting  bool   `json:"waiting"`
	Faults   int64  `json:"faults"`
}

// CountersJSON counts signal traffic since startup.
type CountersJSON struct {
	Cycles    int64 `json:"cycles"`
	Captures  int64 `json:"captures"`
	Exposures int64 `json:"exposures"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	RateSet     int `json:"rate_set"`
	ExposureSet int `json:"exposure_set"`
	DelaySet    int `json:"delay_set"`
	Enabled     int `json:"enabled"`
	Disabled    int `json:"disabled"`
	Rejected    int `json:"rejected"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker           string   `json:"broker"`
	HTTPAddr         string   `json:"http_addr"`
	StatusIntervalMs int64    `json:"status_interval_ms"`
	GPIOChip         string   `json:"gpio_chip"`
	Pins             PinsJSON `json:"pins"`
	Realtime         bool     `json:"realtime"`
	RTPriority       int      `json:"rt_priority,omitempty"`
	Simulated        bool     `json:"simulated,omitempty"`
}

// PinsJSON is the JSON representation of the output pins.
type PinsJSON struct {
	Heartbeat int    `json:"heartbeat"`
	Camera    int    `json:"camera"`
	Emitter0  [2]int `json:"emitter0"`
	Emitter1  [2]int `json:"emitter1"`
}

func buildInner(snap Snapshot) StatusInner {
	cs := snap.Sync
	inner := StatusInner{
		Session:       snap.Session,
		Enabled:       cs.Enabled(),
		Running:       cs.Running,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Params: ParamsJSON{
			RateHz:        cs.Params.RateHz,
			AchievedHz:    cs.Params.AchievedHz,
			ExposureUs:    cs.Params.ExposureUs,
			DelayUs:       cs.Params.DelayUs,
			DelayOffsetUs: cs.Params.DelayOffsetUs,
		},
		Channels: []ChannelJSON{},
		Counters: CountersJSON{
			Cycles:    cs.Cycles,
			Captures:  cs.Captures,
			Exposures: cs.Exposures,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			RateSet:     snap.Counts.RateSet,
			ExposureSet: snap.Counts.ExposureSet,
			DelaySet:    snap.Counts.DelaySet,
			Enabled:     snap.Counts.Enabled,
			Disabled:    snap.Counts.Disabled,
			Rejected:    snap.Counts.Rejected,
		},
		Config: ConfigJSON{
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
			StatusIntervalMs: snap.Config.StatusInterval.Milliseconds(),
			GPIOChip:         snap.Config.GPIOChip,
			Pins: PinsJSON{
				Heartbeat: snap.Config.Pins.Heartbeat,
				Camera:    snap.Config.Pins.Camera,
				Emitter0:  snap.Config.Pins.Emitter0,
				Emitter1:  snap.Config.Pins.Emitter1,
			},
			Realtime:   snap.Config.Realtime,
			RTPriority: snap.Config.RTPriority,
			Simulated:  snap.Config.Simulated,
		},
	}
	for _, ch := range cs.Channels {
		inner.Channels = append(inner.Channels, channelJSON(ch))
	}
	if w, ok := cs.Channel(logic.Window); ok {
		inner.Armed = w.Waiting
	}
	return inner
}

func channelJSON(ch controller.ChannelStatus) ChannelJSON {
	return ChannelJSON{
		ID:       string(ch.ID),
		Active:   ch.Active,
		Register: ch.Register,
		Waiting:  ch.Waiting,
		Faults:   ch.Faults,
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
