package adc

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/itohio/vivarium/pkg/sample"
)

// Peripheral is the shared handle to the single converter.
// At most one Guard exists at any time; Acquire suspends until the current
// holder releases. It is not reentrant: a goroutine holding a Guard must not
// call Acquire again.
type Peripheral struct {
	conv Converter
	sem  *semaphore.Weighted
}

// NewPeripheral wraps conv.
func NewPeripheral(conv Converter) *Peripheral {
	return &Peripheral{
		conv: conv,
		sem:  semaphore.NewWeighted(1),
	}
}

// Acquire waits for exclusive access. It returns ctx.Err() if ctx ends first.
func (p *Peripheral) Acquire(ctx context.Context) (*Guard, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &Guard{p: p}, nil
}

// Do runs fn with exclusive access and releases it afterwards, whatever fn returns.
func (p *Peripheral) Do(ctx context.Context, fn func(g *Guard) error) error {
	g, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer g.Release()
	return fn(g)
}

// Close closes the underlying converter.
func (p *Peripheral) Close() error {
	return p.conv.Close()
}

// Guard is exclusive access to the converter. Reads issued through a Guard
// run sequentially. Release must be called exactly once; extra calls are no-ops.
type Guard struct {
	p        *Peripheral
	once     sync.Once
	released bool
}

// Read converts one sample on ch. Failures are returned as-is and never retried.
func (g *Guard) Read(ctx context.Context, ch Channel) (sample.Raw, error) {
	if g.released {
		return 0, ErrReleased
	}
	if !ch.Valid() {
		return 0, fmt.Errorf("read %s: %w", ch, ErrInvalidChannel)
	}

	v, err := g.p.conv.Read(ctx, ch)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", ch, err)
	}
	if v > sample.MaxRaw {
		return 0, fmt.Errorf("read %s: %d: %w", ch, v, ErrOutOfRange)
	}
	return v, nil
}

// Release gives up exclusive access.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.released = true
		g.p.sem.Release(1)
	})
}
