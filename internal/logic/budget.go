package logic

import (
	"errors"
	"fmt"
	"math"
)

// TickHz is the shared time base of every channel.
const TickHz = 1_000_000

// Fixed per-cycle overheads, in ticks, that the configurable countdown must
// leave room for.
const (
	// lower S_CYCLE, raise S_CYCLE, loop branch
	HeartbeatOverhead = 3
	// the wake tick
	EmitterOverhead = 1
	// output set, register load and loop exit
	WindowOverhead = 3
)

// Parameter limits.
const (
	MinExposureUs    = 4
	MinDelayUs       = 1
	MinDelayOffsetUs = 35

	// MaxRegister bounds a tick register to a 32-bit counter.
	MaxRegister = math.MaxInt32
)

// Startup defaults.
const (
	DefaultRateHz        = 15.0
	DefaultExposureUs    = 30
	DefaultBaseDelayUs   = 100
	DefaultDelayOffsetUs = 300
)

// ErrInvalidParameter is returned when a rate, exposure or delay is outside
// the range the channel can realize. It is always returned before any channel
// state is touched.
var ErrInvalidParameter = errors.New("invalid parameter")

// RateToTicks returns the heartbeat countdown for rateHz.
// The full heartbeat period is the countdown plus HeartbeatOverhead ticks.
func RateToTicks(rateHz float64) (int, error) {
	if math.IsNaN(rateHz) || math.IsInf(rateHz, 0) || rateHz <= 0 {
		return 0, fmt.Errorf("rate %v hz: %w", rateHz, ErrInvalidParameter)
	}
	n := math.Round(TickHz/rateHz) - HeartbeatOverhead
	if n < 0 {
		return 0, fmt.Errorf("rate %v hz above maximum %v hz: %w", rateHz, MaxRateHz(), ErrInvalidParameter)
	}
	if n > MaxRegister {
		return 0, fmt.Errorf("rate %v hz below minimum: %w", rateHz, ErrInvalidParameter)
	}
	return int(n), nil
}

// AchievedRate returns the rate the heartbeat actually runs at with countdown n.
func AchievedRate(n int) float64 {
	return TickHz / float64(n+HeartbeatOverhead)
}

// MaxRateHz is the fastest heartbeat: a zero countdown.
func MaxRateHz() float64 {
	return AchievedRate(0)
}

// ExposureToTicks returns the window countdown for exposureUs.
func ExposureToTicks(exposureUs int) (int, error) {
	if exposureUs < MinExposureUs {
		return 0, fmt.Errorf("exposure %d us below minimum %d us: %w", exposureUs, MinExposureUs, ErrInvalidParameter)
	}
	if exposureUs-WindowOverhead > MaxRegister {
		return 0, fmt.Errorf("exposure %d us too long: %w", exposureUs, ErrInvalidParameter)
	}
	return exposureUs - WindowOverhead, nil
}

// DelayToTicks returns the emitter pre-delay countdown for delayUs.
func DelayToTicks(delayUs int) (int, error) {
	if delayUs < MinDelayUs {
		return 0, fmt.Errorf("delay %d us below minimum %d us: %w", delayUs, MinDelayUs, ErrInvalidParameter)
	}
	if delayUs-EmitterOverhead > MaxRegister {
		return 0, fmt.Errorf("delay %d us too long: %w", delayUs, ErrInvalidParameter)
	}
	return delayUs - EmitterOverhead, nil
}

// OffsetToDelay returns the emitter 1 delay for an operator offset from the
// base delay. Offsets below MinDelayOffsetUs are rejected.
func OffsetToDelay(baseUs, offsetUs int) (int, error) {
	if offsetUs < MinDelayOffsetUs {
		return 0, fmt.Errorf("delay offset %d us cannot be <%d: %w", offsetUs, MinDelayOffsetUs, ErrInvalidParameter)
	}
	return baseUs + offsetUs, nil
}
