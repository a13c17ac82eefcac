package pin

import (
	"sync"
	"time"
)

// Edge is one recorded value change.
type Edge struct {
	At    time.Time
	Value int
}

// FakeLine is a test double that records every value written.
type FakeLine struct {
	mu     sync.Mutex
	edges  []Edge
	value  int
	writes int
	closed bool

	// SetError, if set, will be returned by SetValue.
	SetError error
}

// NewFakeLine creates a FakeLine, initially low.
func NewFakeLine() *FakeLine {
	return &FakeLine{}
}

// SetValue records value. Only changes are recorded as edges.
func (f *FakeLine) SetValue(value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	if value != 0 {
		value = 1
	}
	f.writes++
	if value != f.value || len(f.edges) == 0 {
		f.edges = append(f.edges, Edge{At: time.Now(), Value: value})
	}
	f.value = value
	return nil
}

// Value returns the current value.
func (f *FakeLine) Value() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Edges returns the recorded value changes.
func (f *FakeLine) Edges() []Edge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Edge(nil), f.edges...)
}

// Writes returns the number of successful SetValue calls.
func (f *FakeLine) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Close marks the line as closed and drives it low.
func (f *FakeLine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.value = 0
	return nil
}

// Closed reports whether Close was called.
func (f *FakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
