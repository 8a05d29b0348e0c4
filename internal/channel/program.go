// Package channel runs the fixed stage programs of the four timing channels.
//
// A program is a short list of stages, each occupying a fixed number of ticks
// (the configurable countdown takes the channel's tick register). A Machine
// interprets its program either one tick at a time under a shared driver
// (Step) or in its own goroutine against a clock.Clock (Start/Stop). Both
// modes perform the same stage actions on the same tick boundaries.
package channel

import (
	"github.com/sweeney/pulse-sync/internal/logic"
	"github.com/sweeney/pulse-sync/internal/signal"
)

// Op is a stage's action.
type Op int

const (
	// OpWait blocks until Wait is raised, then lowers it. The consuming tick
	// counts as one.
	OpWait Op = iota
	// OpLower lowers Signal.
	OpLower
	// OpRaise raises Signal.
	OpRaise
	// OpSet drives output Line to High.
	OpSet
	// OpCountdown counts down the tick register.
	OpCountdown
	// OpDelay idles for Hold ticks.
	OpDelay
	// OpJump is an explicit loop branch back to the first stage.
	OpJump
)

func (o Op) String() string {
	switch o {
	case OpWait:
		return "wait"
	case OpLower:
		return "lower"
	case OpRaise:
		return "raise"
	case OpSet:
		return "set"
	case OpCountdown:
		return "countdown"
	case OpDelay:
		return "delay"
	case OpJump:
		return "jump"
	}
	return "unknown"
}

// Stage is one step of a channel program.
type Stage struct {
	Op     Op
	Wait   *signal.Signal // OpWait
	Signal signal.Raiser  // OpLower, OpRaise
	Mirror bool           // OpLower, OpRaise: also drive line 0 to the signal level
	Line   int            // OpSet
	High   bool           // OpSet
	Hold   int            // extra ticks after the action; OpDelay: the whole length
}

// Ticks returns how many ticks the stage occupies with the given register.
func (s Stage) Ticks(register int) int64 {
	switch s.Op {
	case OpCountdown:
		return int64(register)
	case OpDelay:
		return int64(s.Hold)
	}
	return 1 + int64(s.Hold)
}

// Output lines within each channel's group.
const (
	LineHeartbeat = 0
	LineWarmup    = 0
	LineFire      = 1
	LineExposure  = 0
)

// Emitter timing, in ticks.
const (
	// PulseWidth is the width of both the warm-up and the fire pulse.
	PulseWidth = 10
	// CaptureGap separates the warm-up falling edge from the capture raise.
	CaptureGap = 140
	// CaptureHold is how long the emitter idles after raising the capture.
	CaptureHold = 10
)

// HeartbeatProgram lowers and raises cycle, then counts down, so each period
// is exactly register + logic.HeartbeatOverhead ticks. With mirror set, line
// 0 follows the signal.
func HeartbeatProgram(cycle signal.Raiser, mirror bool) []Stage {
	return []Stage{
		{Op: OpLower, Signal: cycle, Mirror: mirror},
		{Op: OpRaise, Signal: cycle, Mirror: mirror},
		{Op: OpCountdown},
		{Op: OpJump},
	}
}

// EmitterProgram waits for a heartbeat edge on cycle, counts down the
// pre-delay, pulses the warm-up line, raises capture CaptureGap ticks after
// the warm-up ends and then pulses the fire line.
//
// With register = delay - logic.EmitterOverhead the warm-up rises exactly
// delay ticks after the wake tick.
func EmitterProgram(cycle *signal.Signal, capture signal.Raiser) []Stage {
	return []Stage{
		{Op: OpWait, Wait: cycle},
		{Op: OpCountdown},
		{Op: OpSet, Line: LineWarmup, High: true, Hold: PulseWidth - 1},
		{Op: OpSet, Line: LineWarmup, High: false},
		{Op: OpDelay, Hold: CaptureGap - 1},
		{Op: OpRaise, Signal: capture, Hold: CaptureHold},
		{Op: OpSet, Line: LineFire, High: true, Hold: PulseWidth - 1},
		{Op: OpSet, Line: LineFire, High: false},
	}
}

// WindowProgram waits for capture and holds the exposure line high for
// register + logic.WindowOverhead ticks.
func WindowProgram(capture *signal.Signal) []Stage {
	return []Stage{
		{Op: OpWait, Wait: capture},
		{Op: OpSet, Line: LineExposure, High: true, Hold: logic.WindowOverhead - 1},
		{Op: OpCountdown},
		{Op: OpSet, Line: LineExposure, High: false},
	}
}

// EmitterCycleTicks is how long an emitter is busy after waking, for a given
// delay. A heartbeat period shorter than this makes the emitter skip edges.
func EmitterCycleTicks(delayUs int) int64 {
	return int64(delayUs) + PulseWidth + 1 + (CaptureGap - 1) + (1 + CaptureHold) + PulseWidth + 1
}
