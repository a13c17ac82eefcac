// Package acquire runs the sampling loop that owns the shared converter.
package acquire

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/itohio/vivarium/pkg/adc"
	"github.com/itohio/vivarium/pkg/broadcast"
	"github.com/itohio/vivarium/pkg/config"
	"github.com/itohio/vivarium/pkg/sample"
)

// Fault reports whether the actuator must hold its safe state.
type Fault struct {
	Active   bool
	Reason   string
	TempC    float32 // Last good die temperature, if any
	Failures int     // Consecutive unreadable cycles
}

func (f Fault) String() string {
	if !f.Active {
		return "ok"
	}
	return fmt.Sprintf("%s (%.2f C, %d failures)", f.Reason, f.TempC, f.Failures)
}

// Result is the outcome of one acquisition cycle.
type Result struct {
	Calibration    sample.Raw // Smoothed calibration reading, valid if CalibrationErr == nil
	CalibrationErr error
	Temperature    sample.Raw // Raw die temperature sample, valid if TemperatureErr == nil
	TemperatureC   float32
	TemperatureErr error
}

// Task is the acquisition loop. It is the only writer of its Watches.
type Task struct {
	periph *adc.Peripheral
	ring   *sample.Ring

	calibrationCh adc.Channel
	temperatureCh adc.Channel
	interval      time.Duration
	scale         sample.Scale
	sensor        sample.DieSensor
	maxSafeC      float32
	maxFailures   int

	calibrationTx *broadcast.Watch[sample.Raw]
	temperatureTx *broadcast.Watch[sample.Raw]
	faultTx       *broadcast.Watch[Fault]

	failures int
	fault    Fault
}

// Option configures a Task.
type Option func(*Task)

// WithFaults publishes fault transitions on w.
func WithFaults(w *broadcast.Watch[Fault]) Option {
	return func(t *Task) {
		t.faultTx = w
	}
}

// New creates the acquisition task. The calibration ring is created here and
// never leaves the task.
func New(cfg *config.Config, periph *adc.Peripheral, calibrationTx, temperatureTx *broadcast.Watch[sample.Raw], opts ...Option) *Task {
	t := &Task{
		periph:        periph,
		ring:          sample.NewRing(cfg.Sampling.Window, sample.Raw(cfg.Sampling.Seed)),
		calibrationCh: adc.Channel(cfg.Sampling.CalibrationChannel),
		temperatureCh: adc.Channel(cfg.Sampling.TemperatureChannel),
		interval:      cfg.Sampling.Interval,
		scale:         cfg.Scale(),
		sensor:        cfg.DieSensor(),
		maxSafeC:      cfg.Temperature.MaxSafeC,
		maxFailures:   cfg.Temperature.MaxFailures,
		calibrationTx: calibrationTx,
		temperatureTx: temperatureTx,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run signals ready and then runs cycles until ctx is cancelled.
// The converter is released before every sleep.
func (t *Task) Run(ctx context.Context, ready func()) error {
	if ready != nil {
		ready()
	}

	for {
		if _, err := t.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(t.interval):
		}
	}
}

// Cycle runs one iteration: both reads under one hold of the converter,
// calibration first. A failed read is logged and its metric is not published.
// The returned error is non-nil only if the converter could not be acquired.
func (t *Task) Cycle(ctx context.Context) (Result, error) {
	var res Result

	err := t.periph.Do(ctx, func(g *adc.Guard) error {
		raw, err := g.Read(ctx, t.calibrationCh)
		if err != nil {
			res.CalibrationErr = err
			log.Printf("acquire: calibration read failed: %v", err)
		} else {
			t.ring.Write(raw)
			res.Calibration = t.ring.Average()
			t.calibrationTx.Send(res.Calibration)
		}

		raw, err = g.Read(ctx, t.temperatureCh)
		if err != nil {
			res.TemperatureErr = err
			log.Printf("acquire: temperature read failed: %v", err)
		} else {
			res.Temperature = raw
			res.TemperatureC = sample.Temperature(raw, t.scale, t.sensor)
			t.temperatureTx.Send(raw)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	// Reads aborted by shutdown say nothing about the sensor.
	if ctx.Err() == nil {
		t.updateFault(res)
	}
	return res, nil
}

// Fault returns the current fault state.
func (t *Task) Fault() Fault {
	return t.fault
}

// Ring returns a copy of the calibration ring contents, oldest first.
func (t *Task) Ring() []sample.Raw {
	return t.ring.Values()
}

// updateFault tracks die temperature health and publishes transitions.
func (t *Task) updateFault(res Result) {
	next := t.fault

	switch {
	case res.TemperatureErr != nil:
		t.failures++
		next.Failures = t.failures
		if t.maxFailures > 0 && t.failures >= t.maxFailures {
			next.Active = true
			next.Reason = "die temperature unreadable"
		}
	case t.maxSafeC > 0 && res.TemperatureC > t.maxSafeC:
		t.failures = 0
		next = Fault{Active: true, Reason: "die over temperature", TempC: res.TemperatureC}
	default:
		t.failures = 0
		next = Fault{TempC: res.TemperatureC}
	}

	changed := next.Active != t.fault.Active || next.Reason != t.fault.Reason
	t.fault = next
	if !changed {
		return
	}

	if next.Active {
		log.Printf("acquire: fault: %s", next)
	} else {
		log.Printf("acquire: fault cleared at %.2f C", next.TempC)
	}
	if t.faultTx != nil {
		t.faultTx.Send(next)
	}
}
