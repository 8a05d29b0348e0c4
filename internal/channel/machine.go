package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/sweeney/pulse-sync/internal/clock"
	"github.com/sweeney/pulse-sync/internal/gpio"
	"github.com/sweeney/pulse-sync/internal/logic"
)

// ErrActive is returned when a register change is attempted on a running
// channel.
var ErrActive = errors.New("channel is active")

// Observer receives every stage action. It is called from the goroutine that
// advances the channel and must not block.
type Observer func(logic.TickEvent)

// Machine is one timing channel: a program, its tick register and its
// position in the program.
type Machine struct {
	id   logic.ChannelID
	prog []Stage
	out  gpio.Writer
	obs  Observer

	mu          sync.Mutex
	register    int
	active      bool
	pc          int
	entered     bool  // lock-step: the stage at pc has performed its action
	left        int64 // lock-step: ticks left in the stage at pc
	threadSetup func()

	cancel context.CancelFunc // set while a goroutine runs the machine
	done   chan struct{}

	faults atomic.Int64
}

// New creates an inactive Machine. out and obs may be nil.
func New(id logic.ChannelID, prog []Stage, out gpio.Writer, obs Observer) *Machine {
	return &Machine{
		id:   id,
		prog: prog,
		out:  out,
		obs:  obs,
	}
}

// ID returns the channel's identity.
func (m *Machine) ID() logic.ChannelID {
	return m.id
}

// Register returns the tick register.
func (m *Machine) Register() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.register
}

// SetRegister replaces the tick register and rewinds the machine to its first
// stage. The machine must be inactive.
func (m *Machine) SetRegister(n int) error {
	if n < 0 {
		return fmt.Errorf("register %d: %w", n, logic.ErrInvalidParameter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrActive
	}
	m.register = n
	m.pc = 0
	m.entered = false
	m.left = 0
	return nil
}

// Active reports whether the machine is advancing.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Waiting reports whether the machine is active and parked at a wait stage
// that has not yet been satisfied.
func (m *Machine) Waiting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active && !m.entered && m.prog[m.pc].Op == OpWait
}

// Faults returns how many output writes have failed.
func (m *Machine) Faults() int64 {
	return m.faults.Load()
}

// Activate lets the lock-step driver advance the machine.
func (m *Machine) Activate() {
	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
}

// Deactivate stops the machine, joining its goroutine if it has one. The
// program position is kept.
func (m *Machine) Deactivate() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.active = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Quiesce drives every output line the program uses low. Used after
// Deactivate so a stopped channel never leaves a laser or camera line
// asserted.
func (m *Machine) Quiesce() {
	if m.out == nil {
		return
	}
	seen := map[int]bool{}
	for _, st := range m.prog {
		line := -1
		switch {
		case st.Op == OpSet:
			line = st.Line
		case st.Mirror:
			line = LineHeartbeat
		}
		if line < 0 || seen[line] {
			continue
		}
		seen[line] = true
		if err := m.out.Set(line, false); err != nil {
			m.faults.Add(1)
			log.Printf("channel %s: quiesce line %d: %v", m.id, line, err)
		}
	}
}

// Step advances the machine by one tick. It does nothing while the machine
// is inactive, running in its own goroutine, or parked at an unsatisfied wait.
// Zero-length stages fall through to the next stage within the same tick.
func (m *Machine) Step(tick int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || m.cancel != nil {
		return
	}

	for range m.prog {
		st := m.prog[m.pc]
		if !m.entered {
			if st.Op == OpWait && !st.Wait.TryClear() {
				return
			}
			m.perform(st, tick)
			m.entered = true
			m.left = st.Ticks(m.register)
		}
		if m.left == 0 {
			m.advance()
			continue
		}
		m.left--
		if m.left == 0 {
			m.advance()
		}
		return
	}
}

// advance moves to the next stage. Caller must hold mu.
func (m *Machine) advance() {
	m.pc = (m.pc + 1) % len(m.prog)
	m.entered = false
	m.left = 0
}

// Start runs the machine in its own goroutine, pacing stages by clk, until
// Deactivate is called or ctx ends. It resumes at the current stage boundary.
func (m *Machine) Start(ctx context.Context, clk clock.Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	if m.entered {
		// Finish a stage interrupted under lock-step at its boundary.
		m.advance()
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	m.active = true
	go m.run(ctx, clk, done, m.threadSetup)
}

// SetThreadSetup installs a hook run at the start of every goroutine started
// by Start, before the first stage.
func (m *Machine) SetThreadSetup(fn func()) {
	m.mu.Lock()
	m.threadSetup = fn
	m.mu.Unlock()
}

// run is the goroutine body: perform a stage, then sleep until the tick on
// which the next one starts. Deadlines accumulate from stage lengths, so
// scheduling jitter does not drift the period. A wait resynchronizes the
// deadline to the wake time.
func (m *Machine) run(ctx context.Context, clk clock.Clock, done chan struct{}, setup func()) {
	defer close(done)
	if setup != nil {
		setup()
	}

	t := clk.Now()
	for {
		m.mu.Lock()
		st := m.prog[m.pc]
		reg := m.register
		m.mu.Unlock()

		if st.Op == OpWait {
			if err := st.Wait.WaitAndClear(ctx); err != nil {
				return
			}
			if now := clk.Now(); now > t {
				t = now
			}
		}
		m.perform(st, t)

		m.mu.Lock()
		m.pc = (m.pc + 1) % len(m.prog)
		m.mu.Unlock()

		t += st.Ticks(reg)
		if err := clk.SleepUntil(ctx, t); err != nil {
			return
		}
	}
}

// perform executes a stage's action on tick.
func (m *Machine) perform(st Stage, tick int64) {
	switch st.Op {
	case OpWait:
		m.emit(logic.TickEvent{Tick: tick, Kind: logic.KindWoke, Signal: st.Wait.Name()})
	case OpLower:
		st.Signal.Lower()
		m.emit(logic.TickEvent{Tick: tick, Kind: logic.KindLower, Signal: st.Signal.Name()})
		if st.Mirror {
			m.set(tick, LineHeartbeat, false)
		}
	case OpRaise:
		// Record before raising so an observer never sees the consumer's
		// wake ahead of the raise that caused it.
		m.emit(logic.TickEvent{Tick: tick, Kind: logic.KindRaise, Signal: st.Signal.Name()})
		st.Signal.Raise()
		if st.Mirror {
			m.set(tick, LineHeartbeat, true)
		}
	case OpSet:
		m.set(tick, st.Line, st.High)
	}
}

func (m *Machine) set(tick int64, line int, high bool) {
	if m.out != nil {
		if err := m.out.Set(line, high); err != nil {
			if m.faults.Add(1) == 1 {
				log.Printf("channel %s: output line %d: %v", m.id, line, err)
			}
		}
	}
	kind := logic.KindLow
	if high {
		kind = logic.KindHigh
	}
	m.emit(logic.TickEvent{Tick: tick, Kind: kind, Line: line})
}

func (m *Machine) emit(ev logic.TickEvent) {
	if m.obs == nil {
		return
	}
	ev.Channel = m.id
	m.obs(ev)
}
