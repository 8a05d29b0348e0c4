package trace

import (
	"errors"
	"fmt"

	"github.com/sweeney/pulse-sync/internal/logic"
)

// maxViolations caps how many problems CheckOrder reports.
const maxViolations = 10

// CheckOrder verifies the hand-off discipline over events in observation
// order:
//   - an emitter wakes on S_CYCLE only after a heartbeat raise it has not
//     already consumed;
//   - every S_CAPTURE raise by an emitter follows an S_CYCLE wake of that
//     emitter. A wake that never reaches its raise is allowed: a setter
//     rewinds the emitter to its wait stage;
//   - the window wakes on S_CAPTURE only after a raise it has not already
//     consumed.
//
// It returns nil when every hand-off is in order.
func CheckOrder(events []logic.TickEvent) error {
	var (
		errs       []error
		cycles     int
		seenCycle  = map[logic.ChannelID]int{}
		woke       = map[logic.ChannelID]bool{}
		capPending bool
	)
	fail := func(ev logic.TickEvent, format string, args ...any) {
		if len(errs) < maxViolations {
			errs = append(errs, fmt.Errorf("tick %d %s: %s", ev.Tick, ev.Channel, fmt.Sprintf(format, args...)))
		}
	}

	for _, ev := range events {
		switch {
		case ev.Kind == logic.KindRaise && ev.Signal == logic.SignalCycle:
			cycles++

		case ev.Kind == logic.KindWoke && ev.Signal == logic.SignalCycle:
			if seenCycle[ev.Channel] >= cycles {
				fail(ev, "woke on %s without a new raise", logic.SignalCycle)
			}
			seenCycle[ev.Channel] = cycles
			woke[ev.Channel] = true

		case ev.Kind == logic.KindRaise && ev.Signal == logic.SignalCapture:
			if !woke[ev.Channel] {
				fail(ev, "raised %s without waking on %s", logic.SignalCapture, logic.SignalCycle)
			}
			woke[ev.Channel] = false
			capPending = true

		case ev.Kind == logic.KindWoke && ev.Signal == logic.SignalCapture:
			if !capPending {
				fail(ev, "woke on %s without a raise", logic.SignalCapture)
			}
			capPending = false
		}
	}
	return errors.Join(errs...)
}
