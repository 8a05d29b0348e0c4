package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/pulse-sync/internal/controller"
	"github.com/sweeney/pulse-sync/internal/status"
)

func newTestServer(t *testing.T, source Source) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Broker:   "tcp://192.168.1.200:1883",
		HTTPAddr: ":80",
		GPIOChip: "gpiochip0",
		Pins:     status.Pins{Heartbeat: -1, Camera: 17, Emitter0: [2]int{22, 23}, Emitter1: [2]int{24, 25}},
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, source)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func newController(t *testing.T) *controller.Controller {
	t.Helper()
	c, err := controller.New(controller.DefaultConfig(), controller.Outputs{}, nil)
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	return c
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	c := newController(t)
	ts, tr := newTestServer(t, c)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Enabled {
		t.Error("expected channels disabled before Enable")
	}
	if sj.Status.Params.ExposureUs != 30 {
		t.Errorf("Params.ExposureUs: got %d, want 30", sj.Status.Params.ExposureUs)
	}
	if len(sj.Status.Channels) != 4 {
		t.Fatalf("Channels: got %d, want 4", len(sj.Status.Channels))
	}
	if sj.Status.Channels[0].ID != "heartbeat" || sj.Status.Channels[0].Register != 66664 {
		t.Errorf("heartbeat channel: got %+v", sj.Status.Channels[0])
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("Config.Broker: got %q", sj.Status.Config.Broker)
	}
}

func TestJSONWithoutSource(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(controller.Snapshot{Cycles: 7})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Counters.Cycles != 7 {
		t.Errorf("Counters.Cycles: got %d, want 7", sj.Status.Counters.Cycles)
	}
	if len(sj.Status.Channels) != 0 {
		t.Errorf("Channels: got %d, want 0", len(sj.Status.Channels))
	}
}

func TestLiveChangesReflectedInResponse(t *testing.T) {
	c := newController(t)
	ts, _ := newTestServer(t, c)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Armed {
		t.Error("expected unarmed before Enable")
	}

	c.Enable()
	if _, err := c.SetExposure(50); err != nil {
		t.Fatalf("SetExposure: %v", err)
	}
	c.Advance(1000)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if !sj2.Status.Enabled || !sj2.Status.Armed {
		t.Errorf("expected enabled and armed: %+v", sj2.Status)
	}
	if sj2.Status.Params.ExposureUs != 50 {
		t.Errorf("Params.ExposureUs: got %d, want 50", sj2.Status.Params.ExposureUs)
	}
	if sj2.Status.Counters.Cycles != 1 || sj2.Status.Counters.Exposures != 2 {
		t.Errorf("Counters: got %+v, want 1 cycle and 2 exposures", sj2.Status.Counters)
	}
}

func TestHTMLEndpoint(t *testing.T) {
	c := newController(t)
	c.Enable()
	ts, _ := newTestServer(t, c)

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q, want text/html", path, ct)
		}
		page := string(body)
		for _, want := range []string{"ENABLED", "66664", "GPIO17", "window"} {
			if !strings.Contains(page, want) {
				t.Errorf("%s: page missing %q", path, want)
			}
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}
