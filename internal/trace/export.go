package trace

import (
	"fmt"
	"io"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/sweeney/pulse-sync/internal/logic"
)

// Matrix columns.
const (
	ColTick = iota
	ColChannel
	ColKind
	ColSignal
	ColLine
	numCols
)

var kinds = []logic.Kind{logic.KindWoke, logic.KindRaise, logic.KindLower, logic.KindHigh, logic.KindLow}

// Matrix lays events out one per row: tick, channel index (position in
// logic.Channels), kind index (WOKE, RAISE, LOWER, HIGH, LOW), signal
// (0 none, 1 S_CYCLE, 2 S_CAPTURE) and output line.
func Matrix(events []logic.TickEvent) *mat.Dense {
	if len(events) == 0 {
		return nil
	}
	m := mat.NewDense(len(events), numCols, nil)
	for i, ev := range events {
		m.Set(i, ColTick, float64(ev.Tick))
		m.Set(i, ColChannel, float64(indexOf(logic.Channels, ev.Channel)))
		m.Set(i, ColKind, float64(indexOf(kinds, ev.Kind)))
		m.Set(i, ColSignal, float64(signalIndex(ev.Signal)))
		m.Set(i, ColLine, float64(ev.Line))
	}
	return m
}

// WriteNPY writes the event matrix as a NumPy .npy array.
func WriteNPY(w io.Writer, events []logic.TickEvent) error {
	m := Matrix(events)
	if m == nil {
		return fmt.Errorf("write npy: no events")
	}
	if err := npyio.Write(w, m); err != nil {
		return fmt.Errorf("write npy: %w", err)
	}
	return nil
}

func signalIndex(name string) int {
	switch name {
	case logic.SignalCycle:
		return 1
	case logic.SignalCapture:
		return 2
	}
	return 0
}

func indexOf[T comparable](list []T, v T) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}
