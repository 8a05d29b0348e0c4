//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealWriter drives output lines on actual hardware using the Linux GPIO
// character device.
type RealWriter struct {
	lines  *gpiocdev.Lines
	pins   []int
	values []int
}

// NewRealWriter requests pins on chip as outputs, initially low.
func NewRealWriter(chip string, pins []int) (*RealWriter, error) {
	if len(pins) == 0 {
		return nil, fmt.Errorf("request lines on %s: no pins", chip)
	}
	values := make([]int, len(pins))
	lines, err := gpiocdev.RequestLines(chip, pins,
		gpiocdev.AsOutput(values...),
		gpiocdev.WithConsumer("pulse-sync"))
	if err != nil {
		return nil, fmt.Errorf("request pins %v on %s: %w", pins, chip, err)
	}

	return &RealWriter{
		lines:  lines,
		pins:   pins,
		values: values,
	}, nil
}

// Set drives one line of the group, leaving the others as they were.
func (w *RealWriter) Set(line int, high bool) error {
	if line < 0 || line >= len(w.values) {
		return fmt.Errorf("set line %d: group has %d lines", line, len(w.values))
	}
	v := 0
	if high {
		v = 1
	}
	w.values[line] = v
	if err := w.lines.SetValues(w.values); err != nil {
		return fmt.Errorf("set pin %d: %w", w.pins[line], err)
	}
	return nil
}

// Close drives every line low, then reconfigures the pins to input with
// pull-down (matching Pi boot defaults) before releasing them, so a laser or
// camera trigger is never left asserted.
func (w *RealWriter) Close() error {
	if w.lines == nil {
		return nil
	}
	var errs []error

	for i := range w.values {
		w.values[i] = 0
	}
	if err := w.lines.SetValues(w.values); err != nil {
		errs = append(errs, fmt.Errorf("drive pins %v low: %w", w.pins, err))
	}
	if err := w.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pins %v: %w", w.pins, err))
	}
	if err := w.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pins %v: %w", w.pins, err))
	}
	w.lines = nil

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
