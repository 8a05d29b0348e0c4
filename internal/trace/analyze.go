package trace

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sweeney/pulse-sync/internal/logic"
)

// Stats summarizes a set of intervals, in ticks.
type Stats struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

func summarize(x []float64) Stats {
	if len(x) == 0 {
		return Stats{}
	}
	s := Stats{N: len(x), Min: floats.Min(x), Max: floats.Max(x)}
	if len(x) == 1 {
		s.Mean = x[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	return s
}

// Report is the measured timing of a trace.
type Report struct {
	Span int64 // ticks from first to last event

	// HeartbeatPeriod is the interval between S_CYCLE raises.
	HeartbeatPeriod Stats
	// Delay is an emitter's wake to warm-up rising edge.
	Delay [2]Stats
	// CaptureLead is an emitter's warm-up falling edge to its S_CAPTURE raise.
	CaptureLead [2]Stats
	// Exposure is the window's rising to falling edge.
	Exposure Stats

	Cycles    int
	Captures  int
	Exposures int
}

// AchievedHz converts the mean heartbeat period to a rate.
func (r Report) AchievedHz() float64 {
	if r.HeartbeatPeriod.Mean == 0 {
		return 0
	}
	return logic.TickHz / r.HeartbeatPeriod.Mean
}

// Analyze measures stage timing from events in observation order.
func Analyze(events []logic.TickEvent) Report {
	var (
		rep        Report
		periods    []float64
		exposures  []float64
		delays     [2][]float64
		leads      [2][]float64
		lastCycle  = int64(-1)
		wake       = [2]int64{-1, -1}
		warmupLow  = [2]int64{-1, -1}
		windowHigh = int64(-1)
	)
	if len(events) > 0 {
		rep.Span = events[len(events)-1].Tick - events[0].Tick
	}

	for _, ev := range events {
		e := emitterIndex(ev.Channel)
		switch {
		case ev.Kind == logic.KindRaise && ev.Signal == logic.SignalCycle:
			rep.Cycles++
			if lastCycle >= 0 {
				periods = append(periods, float64(ev.Tick-lastCycle))
			}
			lastCycle = ev.Tick

		case e >= 0 && ev.Kind == logic.KindWoke:
			wake[e] = ev.Tick

		case e >= 0 && ev.Kind == logic.KindHigh && ev.Line == 0 && wake[e] >= 0:
			delays[e] = append(delays[e], float64(ev.Tick-wake[e]))
			wake[e] = -1

		case e >= 0 && ev.Kind == logic.KindLow && ev.Line == 0:
			warmupLow[e] = ev.Tick

		case e >= 0 && ev.Kind == logic.KindRaise && ev.Signal == logic.SignalCapture:
			rep.Captures++
			if warmupLow[e] >= 0 {
				leads[e] = append(leads[e], float64(ev.Tick-warmupLow[e]))
				warmupLow[e] = -1
			}

		case ev.Channel == logic.Window && ev.Kind == logic.KindHigh:
			rep.Exposures++
			windowHigh = ev.Tick

		case ev.Channel == logic.Window && ev.Kind == logic.KindLow && windowHigh >= 0:
			exposures = append(exposures, float64(ev.Tick-windowHigh))
			windowHigh = -1
		}
	}

	rep.HeartbeatPeriod = summarize(periods)
	rep.Exposure = summarize(exposures)
	for i := range delays {
		rep.Delay[i] = summarize(delays[i])
		rep.CaptureLead[i] = summarize(leads[i])
	}
	return rep
}

func emitterIndex(id logic.ChannelID) int {
	switch id {
	case logic.Emitter0:
		return 0
	case logic.Emitter1:
		return 1
	}
	return -1
}
