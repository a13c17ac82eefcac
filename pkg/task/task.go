// Package task supervises the long-running goroutines of the controller.
//
// Tasks start in dependency order: Go returns only once the new task has
// signalled ready (or has already finished, or the ready timeout expired), so
// a consumer started after its producer always finds it running.
package task

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultReadyTimeout bounds how long Go waits for a task to become ready.
const DefaultReadyTimeout = 5 * time.Second

// Error is a task supervisor error.
type Error string

func (e Error) Error() string {
	return string(e)
}

// ErrNotReady is returned when a task did not signal ready in time.
const ErrNotReady = Error("task: not ready before timeout")

// Func is a task body. It must call ready once it is able to serve (it may
// be called more than once) and return when ctx is cancelled. Returning nil
// after cancellation is a clean stop.
type Func func(ctx context.Context, ready func()) error

// Group runs tasks on a shared context. A critical task failing cancels the
// context for every task; a non-critical failure is logged and the other
// tasks keep running.
type Group struct {
	eg           *errgroup.Group
	ctx          context.Context
	readyTimeout time.Duration

	mu     sync.Mutex
	states map[string]State
}

// State is the lifecycle of one task.
type State struct {
	Name     string
	Critical bool
	Ready    bool
	Done     bool
	Err      error
}

// New creates a Group. The returned context is cancelled when a critical task
// fails or the parent ends.
func New(ctx context.Context, readyTimeout time.Duration) (*Group, context.Context) {
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}
	eg, gctx := errgroup.WithContext(ctx)
	return &Group{
		eg:           eg,
		ctx:          gctx,
		readyTimeout: readyTimeout,
		states:       make(map[string]State),
	}, gctx
}

// Go starts fn and waits until it is ready.
// It returns an error if the task failed before becoming ready or did not
// become ready within the timeout; the task itself keeps running in the
// latter case.
func (g *Group) Go(name string, critical bool, fn Func) error {
	readyCh := make(chan struct{})
	doneCh := make(chan error, 1)
	var once sync.Once

	ready := func() {
		once.Do(func() {
			g.update(name, func(s *State) { s.Ready = true })
			close(readyCh)
		})
	}

	g.update(name, func(s *State) { *s = State{Name: name, Critical: critical} })

	g.eg.Go(func() error {
		err := fn(g.ctx, ready)
		g.update(name, func(s *State) {
			s.Done = true
			s.Err = err
		})
		doneCh <- err

		if err == nil {
			log.Printf("task %s: stopped", name)
			return nil
		}
		if critical {
			log.Printf("task %s: failed: %v", name, err)
			return fmt.Errorf("task %s: %w", name, err)
		}
		log.Printf("task %s: failed (non-critical): %v", name, err)
		return nil
	})

	timer := time.NewTimer(g.readyTimeout)
	defer timer.Stop()

	select {
	case <-readyCh:
		log.Printf("task %s: ready", name)
		return nil
	case err := <-doneCh:
		if err != nil {
			return fmt.Errorf("task %s: %w", name, err)
		}
		return nil
	case <-g.ctx.Done():
		return g.ctx.Err()
	case <-timer.C:
		return fmt.Errorf("task %s: %w", name, ErrNotReady)
	}
}

// Wait blocks until every task has returned and reports the first critical failure.
func (g *Group) Wait() error {
	return g.eg.Wait()
}

// States returns a snapshot of every task's state.
func (g *Group) States() map[string]State {
	g.mu.Lock()
	defer g.mu.Unlock()
	states := make(map[string]State, len(g.states))
	for k, v := range g.states {
		states[k] = v
	}
	return states
}

func (g *Group) update(name string, fn func(s *State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.states[name]
	fn(&s)
	g.states[name] = s
}
