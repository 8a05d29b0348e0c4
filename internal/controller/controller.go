// Package controller owns the four timing channels and the two signals they
// synchronize through, and is the only path that changes channel state.
//
// Every setter validates its parameter first, then stops the affected
// channel, rewrites its tick register, re-arms its initial signal state and
// restarts it. A rejected parameter leaves the channel running with its
// previous configuration.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/pulse-sync/internal/channel"
	"github.com/sweeney/pulse-sync/internal/clock"
	"github.com/sweeney/pulse-sync/internal/gpio"
	"github.com/sweeney/pulse-sync/internal/logic"
	"github.com/sweeney/pulse-sync/internal/signal"
)

// ErrRunning is returned by Run when the channels are already running in
// their own goroutines.
var ErrRunning = errors.New("controller: already running")

// Config holds the startup parameters.
type Config struct {
	RateHz        float64
	ExposureUs    int
	BaseDelayUs   int // emitter 0 delay
	DelayOffsetUs int // emitter 1 delay is BaseDelayUs + DelayOffsetUs

	// MirrorHeartbeat drives the heartbeat output line with S_CYCLE.
	MirrorHeartbeat bool
}

// DefaultConfig returns the startup defaults: 15 Hz, 30 µs exposure,
// emitter delays of 100 µs and 400 µs.
func DefaultConfig() Config {
	return Config{
		RateHz:        logic.DefaultRateHz,
		ExposureUs:    logic.DefaultExposureUs,
		BaseDelayUs:   logic.DefaultBaseDelayUs,
		DelayOffsetUs: logic.DefaultDelayOffsetUs,
	}
}

// Outputs are the per-channel output groups. Any may be nil.
type Outputs struct {
	Heartbeat gpio.Writer // 1 line
	Emitter0  gpio.Writer // 2 lines: warm-up, fire
	Emitter1  gpio.Writer // 2 lines: warm-up, fire
	Window    gpio.Writer // 1 line
}

// Params are the last accepted physical parameters.
type Params struct {
	RateHz        float64
	AchievedHz    float64
	ExposureUs    int
	DelayUs       [2]int
	// BaseDelayUs is the configured emitter 0 delay that emitter 1's offset
	// is measured from. SetDelay(0, ...) does not move it.
	BaseDelayUs   int
	DelayOffsetUs int
}

// Controller is created once at startup and handed to the console, status
// and web layers.
type Controller struct {
	// Now stamps published events.
	Now func() time.Time

	mu        sync.Mutex
	cycle     *signal.Broadcast
	capture   *signal.Signal
	heartbeat *channel.Machine
	emitters  [2]*channel.Machine
	window    *channel.Machine
	params    Params
	tick      int64

	// set while Run drives the channels in their own goroutines
	clk clock.Clock
	ctx context.Context

	obs channel.Observer

	handlersMu sync.Mutex
	handlers   []func(logic.Event)

	cycles    atomic.Int64
	captures  atomic.Int64
	exposures atomic.Int64
}

// New validates cfg and builds the channels with their registers loaded.
// All channels start inactive; call Enable to start them. obs, if non-nil,
// receives every channel tick event.
func New(cfg Config, out Outputs, obs channel.Observer) (*Controller, error) {
	rateN, err := logic.RateToTicks(cfg.RateHz)
	if err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}
	exposureN, err := logic.ExposureToTicks(cfg.ExposureUs)
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	delay1, err := logic.OffsetToDelay(cfg.BaseDelayUs, cfg.DelayOffsetUs)
	if err != nil {
		return nil, fmt.Errorf("emitter1: %w", err)
	}
	delays := [2]int{cfg.BaseDelayUs, delay1}
	var delayN [2]int
	for i, d := range delays {
		if delayN[i], err = logic.DelayToTicks(d); err != nil {
			return nil, fmt.Errorf("emitter%d: %w", i, err)
		}
	}

	c := &Controller{
		Now:     time.Now,
		cycle:   signal.NewBroadcast(logic.SignalCycle, 2),
		capture: signal.New(logic.SignalCapture),
		obs:     obs,
		params: Params{
			RateHz:        cfg.RateHz,
			AchievedHz:    logic.AchievedRate(rateN),
			ExposureUs:    cfg.ExposureUs,
			DelayUs:       delays,
			BaseDelayUs:   cfg.BaseDelayUs,
			DelayOffsetUs: cfg.DelayOffsetUs,
		},
	}
	c.heartbeat = channel.New(logic.Heartbeat, channel.HeartbeatProgram(c.cycle, cfg.MirrorHeartbeat), out.Heartbeat, c.observe)
	c.emitters[0] = channel.New(logic.Emitter0, channel.EmitterProgram(c.cycle.Tap(0), c.capture), out.Emitter0, c.observe)
	c.emitters[1] = channel.New(logic.Emitter1, channel.EmitterProgram(c.cycle.Tap(1), c.capture), out.Emitter1, c.observe)
	c.window = channel.New(logic.Window, channel.WindowProgram(c.capture), out.Window, c.observe)

	loads := []struct {
		m *channel.Machine
		n int
	}{
		{c.window, exposureN},
		{c.emitters[0], delayN[0]},
		{c.emitters[1], delayN[1]},
		{c.heartbeat, rateN},
	}
	for _, l := range loads {
		if err := l.m.SetRegister(l.n); err != nil {
			return nil, fmt.Errorf("%s: %w", l.m.ID(), err)
		}
	}
	return c, nil
}

// OnEvent registers a handler for configuration events. Handlers run on the
// caller's goroutine after the change has been applied.
func (c *Controller) OnEvent(fn func(logic.Event)) {
	c.handlersMu.Lock()
	c.handlers = append(c.handlers, fn)
	c.handlersMu.Unlock()
}

// SetThreadSetup installs a hook run at the start of every channel goroutine,
// e.g. to pin it to a realtime OS thread. It applies to channels started
// after the call.
func (c *Controller) SetThreadSetup(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.machines() {
		m.SetThreadSetup(fn)
	}
}

// machines lists the channels in lock-step order.
func (c *Controller) machines() []*channel.Machine {
	return []*channel.Machine{c.heartbeat, c.emitters[0], c.emitters[1], c.window}
}

// SetRate sets the heartbeat rate and returns the achieved rate.
func (c *Controller) SetRate(rateHz float64) (float64, error) {
	n, err := logic.RateToTicks(rateHz)
	if err != nil {
		c.reject(logic.Heartbeat, rateHz, err)
		return 0, err
	}
	achieved := logic.AchievedRate(n)

	c.mu.Lock()
	c.reconfigure(c.heartbeat, n, c.cycle.Lower)
	c.params.RateHz = rateHz
	c.params.AchievedHz = achieved
	c.mu.Unlock()

	log.Printf("controller: rate set to %.4f hz (requested %v hz, register %d)", achieved, rateHz, n)
	c.publish(logic.Event{Type: logic.EventRateSet, Channel: logic.Heartbeat, Value: rateHz, Register: n, Achieved: achieved})
	return achieved, nil
}

// SetExposure sets the window width and returns the register.
func (c *Controller) SetExposure(exposureUs int) (int, error) {
	n, err := logic.ExposureToTicks(exposureUs)
	if err != nil {
		c.reject(logic.Window, float64(exposureUs), err)
		return 0, err
	}

	c.mu.Lock()
	// A capture left over from before the change must not open a window.
	c.reconfigure(c.window, n, c.capture.Lower)
	c.params.ExposureUs = exposureUs
	c.mu.Unlock()

	log.Printf("controller: exposure set to %d us (register %d)", exposureUs, n)
	c.publish(logic.Event{Type: logic.EventExposureSet, Channel: logic.Window, Value: float64(exposureUs), Register: n})
	return n, nil
}

// SetDelay sets emitter i's pre-delay and returns the register.
func (c *Controller) SetDelay(i int, delayUs int) (int, error) {
	if i < 0 || i >= len(c.emitters) {
		return 0, fmt.Errorf("emitter %d: %w", i, logic.ErrInvalidParameter)
	}
	id := c.emitters[i].ID()
	n, err := logic.DelayToTicks(delayUs)
	if err != nil {
		c.reject(id, float64(delayUs), err)
		return 0, err
	}

	c.mu.Lock()
	// The emitter's own S_CYCLE tap is left alone: a pending heartbeat edge
	// still fires this cycle, and clearing it cannot affect the other emitter.
	c.reconfigure(c.emitters[i], n, nil)
	c.params.DelayUs[i] = delayUs
	c.mu.Unlock()

	log.Printf("controller: %s delay set to %d us (register %d)", id, delayUs, n)
	c.publish(logic.Event{Type: logic.EventDelaySet, Channel: id, Value: float64(delayUs), Register: n})
	return n, nil
}

// SetEmitterOffset sets emitter 1's delay to the base delay plus offsetUs.
// Offsets below logic.MinDelayOffsetUs are rejected without touching state.
func (c *Controller) SetEmitterOffset(offsetUs int) (int, error) {
	c.mu.Lock()
	base := c.params.BaseDelayUs
	c.mu.Unlock()

	delay, err := logic.OffsetToDelay(base, offsetUs)
	if err != nil {
		c.reject(logic.Emitter1, float64(offsetUs), err)
		return 0, err
	}
	n, err := c.SetDelay(1, delay)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.params.DelayOffsetUs = offsetUs
	c.mu.Unlock()
	return n, nil
}

// reconfigure stops m, loads n, re-arms and restarts it. Outputs left high
// by an interrupted stage are driven low. Caller must hold mu.
func (c *Controller) reconfigure(m *channel.Machine, n int, rearm func()) {
	m.Deactivate()
	m.Quiesce()
	if err := m.SetRegister(n); err != nil {
		// n is validated and m is stopped; this is a programming error.
		panic(fmt.Sprintf("controller: load %s: %v", m.ID(), err))
	}
	if rearm != nil {
		rearm()
	}
	c.activate(m)
}

// activate starts m under whichever driver is current. Caller must hold mu.
func (c *Controller) activate(m *channel.Machine) {
	if c.clk != nil {
		m.Start(c.ctx, c.clk)
		return
	}
	m.Activate()
}

// Enable activates every channel, consumers before the heartbeat.
func (c *Controller) Enable() {
	c.mu.Lock()
	c.activate(c.window)
	c.activate(c.emitters[0])
	c.activate(c.emitters[1])
	c.activate(c.heartbeat)
	c.mu.Unlock()

	log.Printf("controller: enabled")
	c.publish(logic.Event{Type: logic.EventEnabled})
}

// Disable deactivates every channel, the heartbeat first, and drives all
// outputs low. Registers are kept.
func (c *Controller) Disable() {
	c.mu.Lock()
	c.deactivateAll()
	c.mu.Unlock()

	log.Printf("controller: disabled")
	c.publish(logic.Event{Type: logic.EventDisabled})
}

// deactivateAll stops every channel. Caller must hold mu.
func (c *Controller) deactivateAll() {
	for _, m := range c.machines() {
		m.Deactivate()
	}
	for _, m := range c.machines() {
		m.Quiesce()
	}
}

// Tick advances every active channel by one tick in fixed order: heartbeat,
// emitter 0, emitter 1, window. It does nothing to channels running in their
// own goroutines.
func (c *Controller) Tick() {
	c.mu.Lock()
	for _, m := range c.machines() {
		m.Step(c.tick)
	}
	c.tick++
	c.mu.Unlock()
}

// Advance calls Tick n times.
func (c *Controller) Advance(n int64) {
	for i := int64(0); i < n; i++ {
		c.Tick()
	}
}

// Run drives the active channels in their own goroutines, paced by clk,
// until ctx ends. Channels enabled or reconfigured while Run is active start
// their own goroutines too. All channels are stopped when Run returns.
func (c *Controller) Run(ctx context.Context, clk clock.Clock) error {
	c.mu.Lock()
	if c.clk != nil {
		c.mu.Unlock()
		return ErrRunning
	}
	c.clk, c.ctx = clk, ctx
	for _, m := range c.machines() {
		if m.Active() {
			m.Start(ctx, clk)
		}
	}
	c.mu.Unlock()

	<-ctx.Done()

	c.mu.Lock()
	c.deactivateAll()
	c.clk, c.ctx = nil, nil
	c.mu.Unlock()
	return nil
}

func (c *Controller) reject(id logic.ChannelID, value float64, err error) {
	log.Printf("controller: %s rejected %v: %v", id, value, err)
	c.publish(logic.Event{Type: logic.EventRejected, Channel: id, Value: value, Reason: err.Error()})
}

func (c *Controller) publish(ev logic.Event) {
	ev.Timestamp = c.Now()
	c.handlersMu.Lock()
	handlers := slices.Clone(c.handlers)
	c.handlersMu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// observe counts signal traffic and forwards to the external observer.
func (c *Controller) observe(ev logic.TickEvent) {
	switch {
	case ev.Kind == logic.KindRaise && ev.Signal == logic.SignalCycle:
		c.cycles.Add(1)
	case ev.Kind == logic.KindRaise && ev.Signal == logic.SignalCapture:
		c.captures.Add(1)
	case ev.Kind == logic.KindHigh && ev.Channel == logic.Window:
		c.exposures.Add(1)
	}
	if c.obs != nil {
		c.obs(ev)
	}
}
