package gpio

import (
	"fmt"
	"sync"
)

// FakeWriter is a test double that records every line change.
// It is safe for concurrent use.
type FakeWriter struct {
	mu sync.Mutex

	samples []Sample // every Set call, in order

	levels []bool

	// SetError, if set, will be returned by Set.
	SetError error

	closed bool
}

// Sample represents a single line change.
type Sample struct {
	Line int
	High bool
}

// NewFakeWriter creates a FakeWriter for a group of n lines.
func NewFakeWriter(n int) *FakeWriter {
	return &FakeWriter{levels: make([]bool, n)}
}

// Set records the change.
func (f *FakeWriter) Set(line int, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	if line < 0 || line >= len(f.levels) {
		return fmt.Errorf("set line %d: group has %d lines", line, len(f.levels))
	}
	f.levels[line] = high
	f.samples = append(f.samples, Sample{Line: line, High: high})
	return nil
}

// Close drives every line low and marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.levels {
		f.levels[i] = false
	}
	f.closed = true
	return nil
}

// Samples returns a copy of the recorded changes.
func (f *FakeWriter) Samples() []Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sample(nil), f.samples...)
}

// Level returns the current level of line.
func (f *FakeWriter) Level(line int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[line]
}

// Closed reports whether Close was called.
func (f *FakeWriter) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded changes and levels.
func (f *FakeWriter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = nil
	for i := range f.levels {
		f.levels[i] = false
	}
	f.closed = false
	f.SetError = nil
}
