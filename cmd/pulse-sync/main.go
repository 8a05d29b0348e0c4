// Command pulse-sync drives a camera exposure window and two pulsed emitters
// from a shared microsecond heartbeat, and publishes configuration changes to
// MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"

	"github.com/sweeney/pulse-sync/internal/clock"
	"github.com/sweeney/pulse-sync/internal/config"
	"github.com/sweeney/pulse-sync/internal/console"
	"github.com/sweeney/pulse-sync/internal/controller"
	"github.com/sweeney/pulse-sync/internal/gpio"
	"github.com/sweeney/pulse-sync/internal/logic"
	"github.com/sweeney/pulse-sync/internal/mqtt"
	"github.com/sweeney/pulse-sync/internal/rt"
	"github.com/sweeney/pulse-sync/internal/status"
	"github.com/sweeney/pulse-sync/internal/trace"
	"github.com/sweeney/pulse-sync/internal/web"
)

// options are the command-line settings that have no config file key.
type options struct {
	configPath string
	simulate   time.Duration
	traceFile  string
	profileDir string
	dumpConfig bool
	noConsole  bool
}

func newFlagSet(o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("pulse-sync", flag.ExitOnError)
	fs.StringVar(&o.configPath, "config", "", "Config file (default: search /etc/pulse-sync, ~/.pulse-sync, .)")
	fs.DurationVar(&o.simulate, "simulate", 0, "Run lock-step for this much tick time, print a timing report and exit")
	fs.StringVar(&o.traceFile, "trace", "", "With -simulate, write the tick trace to this .npy file")
	fs.StringVar(&o.profileDir, "profile", "", "Write a CPU profile to this directory")
	fs.BoolVar(&o.dumpConfig, "dump-config", false, "Print the effective config as YAML and exit")
	fs.BoolVar(&o.noConsole, "no-console", false, "Run without the interactive prompt")

	// Config overrides; see applyFlags.
	fs.String("broker", "", "MQTT broker address (empty to disable)")
	fs.String("http", "", "HTTP status address (empty to disable)")
	fs.Duration("status-interval", time.Minute, "MQTT status interval (0 to disable)")
	fs.String("log-file", "", "Rotated log file, written in addition to stderr")
	fs.String("gpio-chip", gpio.DefaultChip, "GPIO character device")
	fs.Bool("realtime", false, "Lock memory and run channel threads SCHED_FIFO")
	fs.Int("rt-priority", 50, "SCHED_FIFO priority for channel threads")
	return fs
}

// applyFlags overrides cfg with the flags given on the command line. Flags
// left at their defaults do not override the config file.
func applyFlags(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.(flag.Getter).Get()
		switch f.Name {
		case "broker":
			cfg.MQTT.Broker = v.(string)
		case "http":
			cfg.HTTP = v.(string)
		case "status-interval":
			cfg.StatusInterval = v.(time.Duration)
		case "log-file":
			cfg.Log.File = v.(string)
		case "gpio-chip":
			cfg.GPIO.Chip = v.(string)
		case "realtime":
			cfg.Realtime.Enabled = v.(bool)
		case "rt-priority":
			cfg.Realtime.Priority = v.(int)
		}
	})
}

func main() {
	var o options
	fs := newFlagSet(&o)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(o.configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyFlags(&cfg, fs)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, o options) error {
	if o.dumpConfig {
		data, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	var logFile io.Writer
	if cfg.Log.File != "" {
		lw := config.LogWriter(cfg.Log.File)
		defer lw.Close()
		logFile = lw
	}
	setLogOutput(os.Stderr, logFile)

	if o.profileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(o.profileDir), profile.NoShutdownHook).Stop()
	}

	if o.simulate > 0 {
		return simulate(cfg, o.simulate, o.traceFile, os.Stdout)
	}
	return serve(cfg, o, logFile)
}

// setLogOutput sends the log to term and, if non-nil, the rotated file.
func setLogOutput(term, file io.Writer) {
	if file == nil {
		log.SetOutput(term)
		return
	}
	log.SetOutput(io.MultiWriter(term, file))
}

// simulate drives the channels lock-step for d of tick time and reports the
// measured timing. It fails if the trace violates the handoff ordering.
func simulate(cfg config.Config, d time.Duration, traceFile string, w io.Writer) error {
	rec := trace.NewRecorder(trace.DefaultLimit)
	ctrl, err := controller.New(cfg.Controller(), controller.Outputs{}, rec.Observe)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	ctrl.Enable()
	ctrl.Advance(int64(d / clock.Tick))

	events := rec.Events()
	printReport(w, d, ctrl.Snapshot(), trace.Analyze(events), rec.Dropped())

	if traceFile != "" {
		if err := writeTrace(traceFile, events); err != nil {
			return err
		}
		log.Printf("trace: wrote %d events to %s", len(events), traceFile)
	}

	if err := trace.CheckOrder(events); err != nil {
		return fmt.Errorf("check ordering: %w", err)
	}
	return nil
}

func writeTrace(path string, events []logic.TickEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace: %w", err)
	}
	if err := trace.WriteNPY(f, events); err != nil {
		f.Close()
		return fmt.Errorf("write trace: %w", err)
	}
	return f.Close()
}

func printReport(w io.Writer, d time.Duration, snap controller.Snapshot, rep trace.Report, dropped int) {
	p := snap.Params
	hb, _ := snap.Channel(logic.Heartbeat)

	fmt.Fprintf(w, "simulated: %d ticks (%v)\n", snap.Tick, d)
	fmt.Fprintf(w, "rate:      requested %.4f hz, register %d, achieved %.5f hz, measured %.5f hz\n",
		p.RateHz, hb.Register, p.AchievedHz, rep.AchievedHz())
	fmt.Fprintf(w, "period:    %s\n", formatStats(rep.HeartbeatPeriod))
	for i := range rep.Delay {
		fmt.Fprintf(w, "emitter%d:  delay %s\n", i, formatStats(rep.Delay[i]))
		fmt.Fprintf(w, "           capture lead %s\n", formatStats(rep.CaptureLead[i]))
	}
	fmt.Fprintf(w, "exposure:  %s\n", formatStats(rep.Exposure))
	fmt.Fprintf(w, "counters:  %d cycles, %d captures, %d exposures\n", rep.Cycles, rep.Captures, rep.Exposures)
	if dropped > 0 {
		fmt.Fprintf(w, "trace:     %d events dropped past the recorder limit\n", dropped)
	}
}

func formatStats(s trace.Stats) string {
	if s.N == 0 {
		return "no samples"
	}
	return fmt.Sprintf("mean %.1f sd %.2f min %.0f max %.0f (n=%d)", s.Mean, s.StdDev, s.Min, s.Max, s.N)
}

// mqttClient is the publisher as the daemon uses it.
type mqttClient interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
}

// source provides the live controller state for status events.
type source interface {
	Snapshot() controller.Snapshot
}

func serve(cfg config.Config, o options, logFile io.Writer) error {
	outputs, closeOutputs, err := openOutputs(cfg)
	if err != nil {
		return err
	}
	defer closeOutputs()

	ctrl, err := controller.New(cfg.Controller(), outputs, nil)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	if cfg.Realtime.Enabled {
		if err := rt.Prepare(); err != nil {
			log.Printf("realtime: lock memory: %v", err)
		}
		if th, err := rt.CheckThrottling(); err != nil {
			log.Printf("realtime: %v", err)
		} else {
			log.Printf("realtime: rt throttling %s", th)
		}
		ctrl.SetThreadSetup(rt.ThreadSetup(cfg.Realtime.Priority))
	}

	// Initialize MQTT
	var pub mqttClient = mqtt.Discard{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{Broker: cfg.MQTT.Broker, ClientID: cfg.MQTT.ClientID})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		pub = p
	}
	defer pub.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg, outputs))
	ctrl.OnEvent(func(ev logic.Event) {
		tracker.RecordEvent(ev)
		if err := pub.Publish(ev); err != nil {
			log.Printf("publish error: %v", err)
		}
	})

	// Publish startup event with full status snapshot
	tracker.Update(ctrl.Snapshot())
	tracker.SetMQTTConnected(pub.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := pub.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, ctrl)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- ctrl.Run(ctx, clock.NewReal())
	}()
	ctrl.Enable()

	quit := make(chan string, 1)
	if !o.noConsole {
		con, err := console.New(ctrl)
		if err != nil {
			log.Printf("console: %v (continuing without prompt)", err)
		} else {
			defer con.Close()
			setLogOutput(con.Stdout(), logFile)
			defer setLogOutput(os.Stderr, logFile)
			go func() {
				if reason := con.Run(ctx); reason != "" {
					quit <- reason
				}
			}()
		}
	}

	log.Printf("started: rate=%.4fhz exposure=%dus delays=%d/%dus broker=%q status=%v",
		cfg.RateHz, cfg.ExposureUs, cfg.BaseDelayUs, cfg.BaseDelayUs+cfg.DelayOffsetUs, cfg.MQTT.Broker, cfg.StatusInterval)

	var tick <-chan time.Time
	if cfg.StatusInterval > 0 {
		ticker := time.NewTicker(cfg.StatusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(ctrl, pub, pub, tracker, time.Now, tick, sigCh, quit)
	cancel()
	if rerr := <-runDone; rerr != nil {
		log.Printf("controller: %v", rerr)
	}
	return err
}

// openOutputs opens each channel's output group. Groups with no connected
// pin are left nil.
func openOutputs(cfg config.Config) (controller.Outputs, func(), error) {
	var (
		out    controller.Outputs
		opened []gpio.Writer
	)
	closeAll := func() {
		for _, w := range opened {
			if err := w.Close(); err != nil {
				log.Printf("gpio close: %v", err)
			}
		}
	}

	groups := []struct {
		name string
		pins []int
		dst  *gpio.Writer
	}{
		{"heartbeat", []int{cfg.Pins.Heartbeat}, &out.Heartbeat},
		{"emitter0", cfg.Pins.Emitter0, &out.Emitter0},
		{"emitter1", cfg.Pins.Emitter1, &out.Emitter1},
		{"camera", []int{cfg.Pins.Camera}, &out.Window},
	}
	for _, g := range groups {
		w, err := gpio.Open(cfg.GPIO.Chip, g.pins)
		if err != nil {
			closeAll()
			return controller.Outputs{}, nil, fmt.Errorf("init gpio %s: %w", g.name, err)
		}
		if w == nil {
			continue
		}
		*g.dst = w
		opened = append(opened, w)
	}
	return out, closeAll, nil
}

func statusConfig(cfg config.Config, out controller.Outputs) status.Config {
	return status.Config{
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP,
		StatusInterval: cfg.StatusInterval,
		GPIOChip:       cfg.GPIO.Chip,
		Pins: status.Pins{
			Heartbeat: cfg.Pins.Heartbeat,
			Camera:    cfg.Pins.Camera,
			Emitter0:  pinPair(cfg.Pins.Emitter0),
			Emitter1:  pinPair(cfg.Pins.Emitter1),
		},
		Realtime:   cfg.Realtime.Enabled,
		RTPriority: cfg.Realtime.Priority,
		Simulated:  out == controller.Outputs{},
	}
}

func pinPair(pins []int) [2]int {
	p := [2]int{gpio.NoPin, gpio.NoPin}
	copy(p[:], pins)
	return p
}

func runLoop(src source, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, quit <-chan string) error {
	refresh := func() {
		tracker.Update(src.Snapshot())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	shutdown := func(reason string) {
		refresh()
		snap := tracker.Snapshot()
		event := mqtt.SystemEvent{
			Timestamp:  now(),
			Event:      "SHUTDOWN",
			Reason:     reason,
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
		}
		if err := publisher.PublishSystem(event); err != nil {
			log.Printf("failed to publish shutdown event: %v", err)
		} else {
			log.Printf("published shutdown event")
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			shutdown(signalName(s))
			return nil

		case reason := <-quit:
			log.Printf("console: %s, shutting down", reason)
			shutdown(reason)
			return nil

		case <-tick:
			refresh()
			snap := tracker.Snapshot()
			log.Printf("status: enabled=%v cycles=%d captures=%d exposures=%d",
				snap.Sync.Enabled(), snap.Sync.Cycles, snap.Sync.Captures, snap.Sync.Exposures)
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "STATUS",
				RawPayload: status.FormatStatusEvent(snap, "STATUS", ""),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("status publish error: %v", err)
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
