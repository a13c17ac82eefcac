package adc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/itohio/vivarium/pkg/sample"
)

// Ensure Script implements Converter.
var _ Converter = (*Script)(nil)

// Step is one scripted conversion result.
type Step struct {
	Value sample.Raw
	Err   error
}

// Value returns a successful step.
func Value(v sample.Raw) Step {
	return Step{Value: v}
}

// Fail returns a failing step.
func Fail(err error) Step {
	return Step{Err: err}
}

// Script is a test double that returns scripted results per channel.
// Each Read consumes the next step of its channel; once exhausted the last
// step repeats. It also records how many reads overlapped, so tests can
// check that access was serialized.
type Script struct {
	// Latency, if set, is spent inside every Read.
	Latency time.Duration

	mu          sync.Mutex
	steps       map[Channel][]Step
	index       map[Channel]int
	reads       []Channel
	inFlight    int
	maxInFlight int
	closed      bool
}

// NewScript creates an empty Script.
func NewScript() *Script {
	return &Script{
		steps: make(map[Channel][]Step),
		index: make(map[Channel]int),
	}
}

// Push appends steps to a channel's script.
func (s *Script) Push(ch Channel, steps ...Step) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[ch] = append(s.steps[ch], steps...)
	return s
}

// Read returns the next scripted step for ch.
func (s *Script) Read(ctx context.Context, ch Channel) (sample.Raw, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.reads = append(s.reads, ch)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.Latency > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.Latency):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	steps := s.steps[ch]
	if len(steps) == 0 {
		return 0, errors.New("no steps configured")
	}

	step := steps[s.index[ch]]
	if s.index[ch] < len(steps)-1 {
		s.index[ch]++
	}
	return step.Value, step.Err
}

// Reads returns the channels read so far, in order.
func (s *Script) Reads() []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Channel(nil), s.reads...)
}

// MaxInFlight returns the highest number of overlapping reads observed.
func (s *Script) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// Closed reports whether Close was called.
func (s *Script) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close marks the script as closed.
func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
