package actuator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itohio/vivarium/pkg/acquire"
	"github.com/itohio/vivarium/pkg/broadcast"
	"github.com/itohio/vivarium/pkg/pin"
)

// Demo levels, alternated every period.
var demoLevels = []uint8{100, 50}

// Demo alternates the output between fully on and 50%. It does not follow
// the sensor readings; it only drops to 0% while a fault is active.
type Demo struct {
	out    DutyCycler
	period time.Duration
	faults *broadcast.Receiver[acquire.Fault]

	faulted bool
}

// NewDemo creates the demo. faults may be nil.
func NewDemo(out DutyCycler, period time.Duration, faults *broadcast.Watch[acquire.Fault]) (*Demo, error) {
	d := &Demo{
		out:    out,
		period: period,
	}
	if faults != nil {
		rx, err := faults.Receiver()
		if err != nil {
			return nil, fmt.Errorf("actuator demo: %w", err)
		}
		d.faults = rx
	}
	return d, nil
}

// Run cycles the output until ctx is cancelled, then leaves it at 0%.
func (d *Demo) Run(ctx context.Context, ready func()) error {
	defer d.out.SetDutyPercent(0)
	if ready != nil {
		ready()
	}

	step := 0
	for {
		duty := demoLevels[step%len(demoLevels)]
		if d.faulted {
			duty = 0
		}
		if err := d.out.SetDutyPercent(duty); err != nil {
			return fmt.Errorf("actuator demo: %w", err)
		}

		changed, err := d.wait(ctx)
		if err != nil {
			return nil
		}
		if !changed {
			step++
		}
	}
}

// wait sleeps one period. It returns early with changed set when the fault
// state flips.
func (d *Demo) wait(ctx context.Context) (changed bool, err error) {
	if d.faults == nil {
		if !sleep(ctx, d.period) {
			return false, ctx.Err()
		}
		return false, nil
	}

	deadline := time.Now().Add(d.period)
	for {
		wctx, cancel := context.WithDeadline(ctx, deadline)
		f, err := d.faults.Get(wctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return false, nil
			}
			return false, err
		}

		if f.Active != d.faulted {
			d.faulted = f.Active
			if f.Active {
				log.Printf("actuator: safe state: %s", f)
			} else {
				log.Printf("actuator: fault cleared, resuming")
			}
			return true, nil
		}
	}
}

// Heartbeat toggles an LED to show the controller is alive.
type Heartbeat struct {
	line     pin.Line
	interval time.Duration
}

// NewHeartbeat creates a heartbeat on line.
func NewHeartbeat(line pin.Line, interval time.Duration) *Heartbeat {
	return &Heartbeat{line: line, interval: interval}
}

// Run toggles the LED every interval until ctx is cancelled, then turns it off.
func (h *Heartbeat) Run(ctx context.Context, ready func()) error {
	defer h.line.SetValue(0)
	if ready != nil {
		ready()
	}

	level := 0
	for {
		level ^= 1
		if err := h.line.SetValue(level); err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
		if !sleep(ctx, h.interval) {
			return nil
		}
	}
}
