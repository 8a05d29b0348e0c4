package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/pulse-sync/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"pin": func(p int) string {
		if p < 0 {
			return "none"
		}
		return fmt.Sprintf("GPIO%d", p)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Pulse Sync</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.fault { color: red; font-weight: bold; }
</style>
</head>
<body>
<h1>Pulse Sync</h1>

<h2>Timing</h2>
<table>
<tr><th>State</th><td id="state" class="{{if .Sync.Enabled}}on{{else}}off{{end}}">{{if .Sync.Enabled}}ENABLED{{else}}DISABLED{{end}}{{if .Config.Simulated}} (simulated){{end}}</td></tr>
<tr><th>Rate</th><td>{{printf "%.4f" .Sync.Params.AchievedHz}} Hz (requested {{.Sync.Params.RateHz}} Hz)</td></tr>
<tr><th>Exposure</th><td>{{.Sync.Params.ExposureUs}} µs</td></tr>
<tr><th>Emitter 0 delay</th><td>{{index .Sync.Params.DelayUs 0}} µs</td></tr>
<tr><th>Emitter 1 delay</th><td>{{index .Sync.Params.DelayUs 1}} µs (offset {{.Sync.Params.DelayOffsetUs}} µs)</td></tr>
</table>

<h2>Channels</h2>
<table>
<tr><th>Channel</th><td>Register / State</td></tr>
{{range .Sync.Channels}}<tr><th>{{.ID}}</th><td class="{{if .Active}}on{{else}}off{{end}}">{{.Register}} {{if .Active}}{{if .Waiting}}waiting{{else}}running{{end}}{{else}}stopped{{end}}{{if .Faults}} <span class="fault">{{.Faults}} faults</span>{{end}}</td></tr>
{{end}}</table>

<h2>Counters</h2>
<table>
<tr><th>Cycles</th><td>{{.Sync.Cycles}}</td></tr>
<tr><th>Captures</th><td>{{.Sync.Captures}}</td></tr>
<tr><th>Exposures</th><td>{{.Sync.Exposures}}</td></tr>
<tr><th>Rejected commands</th><td>{{.Counts.Rejected}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Session</th><td>{{.Session}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>GPIO chip</th><td>{{.Config.GPIOChip}}</td></tr>
<tr><th>Camera</th><td>{{pin .Config.Pins.Camera}}</td></tr>
<tr><th>Emitter 0</th><td>{{pin (index .Config.Pins.Emitter0 0)}} / {{pin (index .Config.Pins.Emitter0 1)}}</td></tr>
<tr><th>Emitter 1</th><td>{{pin (index .Config.Pins.Emitter1 0)}} / {{pin (index .Config.Pins.Emitter1 1)}}</td></tr>
<tr><th>Heartbeat</th><td>{{pin .Config.Pins.Heartbeat}}</td></tr>
<tr><th>Realtime</th><td>{{if .Config.Realtime}}SCHED_FIFO {{.Config.RTPriority}}{{else}}off{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
