// Package gpio drives channel output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Writer drives one channel's group of output lines.
type Writer interface {
	// Set drives a line, given as an index into the channel's group, high or
	// low.
	Set(line int, high bool) error

	// Close drives every line low and releases it.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinCamera         = 17
	DefaultPinEmitter0Warmup = 22
	DefaultPinEmitter0Fire   = 23
	DefaultPinEmitter1Warmup = 24
	DefaultPinEmitter1Fire   = 25

	// NoPin leaves a line unconnected.
	NoPin = -1
)

// DefaultChip is the Raspberry Pi header's GPIO controller.
const DefaultChip = "gpiochip0"

// Connected returns the pins that are not NoPin, preserving order.
func Connected(pins []int) []int {
	var out []int
	for _, p := range pins {
		if p != NoPin {
			out = append(out, p)
		}
	}
	return out
}

// Open returns a Writer for a channel's pins on chip. Lines whose pin is
// NoPin are accepted and ignored. It returns a nil Writer when no pin is
// connected.
func Open(chip string, pins []int) (Writer, error) {
	conn := Connected(pins)
	if len(conn) == 0 {
		return nil, nil
	}
	w, err := NewRealWriter(chip, conn)
	if err != nil {
		return nil, err
	}
	if len(conn) == len(pins) {
		return w, nil
	}
	return newSparse(w, pins), nil
}

// sparse maps a channel's line indices onto a Writer holding only the
// connected pins.
type sparse struct {
	w     Writer
	index []int // line -> index in w, or -1
}

func newSparse(w Writer, pins []int) *sparse {
	s := &sparse{w: w, index: make([]int, len(pins))}
	n := 0
	for i, p := range pins {
		if p == NoPin {
			s.index[i] = -1
			continue
		}
		s.index[i] = n
		n++
	}
	return s
}

func (s *sparse) Set(line int, high bool) error {
	if line < 0 || line >= len(s.index) {
		return fmt.Errorf("set line %d: group has %d lines", line, len(s.index))
	}
	if s.index[line] < 0 {
		return nil
	}
	return s.w.Set(s.index[line], high)
}

func (s *sparse) Close() error {
	return s.w.Close()
}
