package console

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sweeney/pulse-sync/internal/controller"
	"github.com/sweeney/pulse-sync/internal/logic"
)

// Controller is the part of *controller.Controller the console drives.
type Controller interface {
	Enable()
	Disable()
	SetRate(rateHz float64) (float64, error)
	SetExposure(exposureUs int) (int, error)
	SetEmitterOffset(offsetUs int) (int, error)
	Snapshot() controller.Snapshot
}

const helpText = `Commands:
  E        enable all channels
  D        disable all channels
  r<hz>    set heartbeat rate, e.g. r15
  e<us>    set exposure window, e.g. e30 (min %d)
  d<us>    set emitter 1 delay after emitter 0, e.g. d300 (min %d)
  s        show status
  h        show this help
  q        disable and quit
`

// PrintHelp writes the command summary.
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, helpText, logic.MinExposureUs, logic.MinDelayOffsetUs)
}

// Execute runs cmd against c and writes the operator-facing result to w.
// It reports whether the operator asked to quit; channels are already
// disabled when it does.
func Execute(w io.Writer, c Controller, cmd Command) (quit bool) {
	switch cmd.Op {
	case OpHelp:
		PrintHelp(w)
	case OpEnable:
		c.Enable()
		fmt.Fprintln(w, "enabled")
	case OpDisable:
		c.Disable()
		fmt.Fprintln(w, "disabled")
	case OpQuit:
		c.Disable()
		fmt.Fprintln(w, "quit")
		return true
	case OpStatus:
		PrintStatus(w, c.Snapshot())
	case OpRate:
		achieved, err := c.SetRate(cmd.Rate)
		if err != nil {
			fmt.Fprintf(w, "rate %v hz rejected: %v\n", cmd.Rate, err)
			return false
		}
		fmt.Fprintf(w, "rate: %.4f hz\n", achieved)
	case OpExposure:
		if _, err := c.SetExposure(cmd.Value); err != nil {
			fmt.Fprintf(w, "exposure %d us rejected: %v\n", cmd.Value, err)
			return false
		}
		fmt.Fprintf(w, "exposure: %d us\n", cmd.Value)
	case OpDelay:
		if cmd.Value < logic.MinDelayOffsetUs {
			fmt.Fprintf(w, "invalid delay: cannot be <%d\n", logic.MinDelayOffsetUs)
			return false
		}
		if _, err := c.SetEmitterOffset(cmd.Value); err != nil {
			fmt.Fprintf(w, "delay %d us rejected: %v\n", cmd.Value, err)
			return false
		}
		fmt.Fprintf(w, "delay: %d us\n", cmd.Value)
	}
	return false
}

// Line parses and executes one operator line. Empty lines do nothing.
func Line(w io.Writer, c Controller, line string) (quit bool) {
	if strings.TrimSpace(line) == "" {
		return false
	}
	cmd, err := Parse(line)
	if errors.Is(err, ErrParse) {
		fmt.Fprintf(w, "failed: %v\n", err)
		return false
	}
	if err != nil {
		fmt.Fprintf(w, "%v (h for help)\n", err)
		return false
	}
	return Execute(w, c, cmd)
}

// PrintStatus writes a human-readable controller snapshot.
func PrintStatus(w io.Writer, s controller.Snapshot) {
	state := "disabled"
	if s.Enabled() {
		state = "enabled"
	}
	if s.Running {
		state += ", running"
	}
	fmt.Fprintf(w, "state:    %s\n", state)
	fmt.Fprintf(w, "rate:     %.4f hz (requested %v hz)\n", s.Params.AchievedHz, s.Params.RateHz)
	fmt.Fprintf(w, "exposure: %d us\n", s.Params.ExposureUs)
	fmt.Fprintf(w, "delays:   %d us, %d us (offset %d us)\n", s.Params.DelayUs[0], s.Params.DelayUs[1], s.Params.DelayOffsetUs)
	for _, ch := range s.Channels {
		mode := "stopped"
		switch {
		case ch.Active && ch.Waiting:
			mode = "waiting"
		case ch.Active:
			mode = "running"
		}
		fmt.Fprintf(w, "  %-9s register %-10d %s", ch.ID, ch.Register, mode)
		if ch.Faults > 0 {
			fmt.Fprintf(w, " (%d output faults)", ch.Faults)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "counters: %d cycles, %d captures, %d exposures\n", s.Cycles, s.Captures, s.Exposures)
}
