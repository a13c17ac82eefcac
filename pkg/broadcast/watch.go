// Package broadcast provides a latest-value, multi-reader publish cell.
//
// A Watch holds only the most recently sent value and a version counter.
// Sending never blocks and never queues: it overwrites the slot and bumps the
// version. Each Receiver keeps its own cursor and blocks until a value newer
// than the one it last observed exists, so a slow reader skips intermediate
// values but never holds back the sender or other readers.
package broadcast

import (
	"context"
	"sync"
)

// Error is a broadcast error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrReceiverLimit is returned when a Watch already has all its receivers.
	ErrReceiverLimit = Error("broadcast: receiver limit reached")
)

// Watch is a single-slot broadcast cell with a bounded number of receivers.
type Watch[T any] struct {
	mu        sync.Mutex
	value     T
	version   uint64        // 0 means nothing sent yet
	changed   chan struct{} // closed and replaced on every Send
	receivers int
	limit     int
}

// New creates a Watch that allows at most limit receivers.
// A limit < 1 is treated as 1.
func New[T any](limit int) *Watch[T] {
	if limit < 1 {
		limit = 1
	}
	return &Watch[T]{
		changed: make(chan struct{}),
		limit:   limit,
	}
}

// Send publishes v, replacing any previous value. It never blocks.
func (w *Watch[T]) Send(v T) {
	w.mu.Lock()
	w.value = v
	w.version++
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()
}

// Peek returns the current value and version without waiting.
// ok is false if nothing has been sent yet.
func (w *Watch[T]) Peek() (v T, version uint64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value, w.version, w.version > 0
}

// Version returns the number of values sent so far.
func (w *Watch[T]) Version() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.version
}

// Receiver registers a new receiver. It fails with ErrReceiverLimit once the
// Watch has limit receivers. Receivers are never unregistered.
func (w *Watch[T]) Receiver() (*Receiver[T], error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.receivers >= w.limit {
		return nil, ErrReceiverLimit
	}
	w.receivers++
	return &Receiver[T]{w: w}, nil
}

// Receivers returns the number of registered receivers.
func (w *Watch[T]) Receivers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.receivers
}

// Limit returns the maximum number of receivers.
func (w *Watch[T]) Limit() int {
	return w.limit
}

// Receiver reads from a Watch with an independent cursor.
// A Receiver must be used by one goroutine at a time.
type Receiver[T any] struct {
	w    *Watch[T]
	seen uint64
}

// Get blocks until a value newer than the last one this receiver observed
// has been sent, then returns it. The first call returns the latest value as
// soon as anything has been sent. Get returns ctx.Err() if ctx ends first.
func (r *Receiver[T]) Get(ctx context.Context) (T, error) {
	for {
		r.w.mu.Lock()
		if r.w.version > r.seen {
			v := r.w.value
			r.seen = r.w.version
			r.w.mu.Unlock()
			return v, nil
		}
		changed := r.w.changed
		r.w.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryGet returns the latest value if it is newer than the last one observed,
// without blocking.
func (r *Receiver[T]) TryGet() (T, bool) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if r.w.version > r.seen {
		r.seen = r.w.version
		return r.w.value, true
	}
	var zero T
	return zero, false
}

// Seen returns the version this receiver last observed.
func (r *Receiver[T]) Seen() uint64 {
	return r.seen
}
