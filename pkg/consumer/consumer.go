// Package consumer holds the tasks that observe published readings.
//
// Each consumer subscribes once at construction, then loops: wait for the
// next unseen value of every subscription, convert, report, sleep. Consumers
// never write to shared state.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itohio/vivarium/pkg/broadcast"
	"github.com/itohio/vivarium/pkg/config"
	"github.com/itohio/vivarium/pkg/display"
	"github.com/itohio/vivarium/pkg/sample"
)

// Report is called with every observation. Nil reports are logged.
type Report func(name string, value float32)

// loop runs step every interval until ctx ends. A cancelled context is a
// clean exit.
func loop(ctx context.Context, interval time.Duration, ready func(), step func(ctx context.Context) error) error {
	if ready != nil {
		ready()
	}
	for {
		if err := step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// CalibrationLogger reports the rescaled calibration reading.
type CalibrationLogger struct {
	rx       *broadcast.Receiver[sample.Raw]
	rescale  sample.Rescale
	interval time.Duration
	report   Report
}

// NewCalibrationLogger subscribes to the calibration channel.
func NewCalibrationLogger(cfg *config.Config, calibration *broadcast.Watch[sample.Raw], report Report) (*CalibrationLogger, error) {
	rx, err := calibration.Receiver()
	if err != nil {
		return nil, fmt.Errorf("calibration logger: %w", err)
	}
	return &CalibrationLogger{
		rx:       rx,
		rescale:  cfg.Rescale(),
		interval: cfg.Consumers.Interval,
		report:   report,
	}, nil
}

// Run observes the calibration channel until ctx is cancelled.
func (c *CalibrationLogger) Run(ctx context.Context, ready func()) error {
	return loop(ctx, c.interval, ready, func(ctx context.Context) error {
		raw, err := c.rx.Get(ctx)
		if err != nil {
			return err
		}
		scaled := c.rescale.Apply(raw)
		if c.report != nil {
			c.report("calibration", scaled)
		} else {
			log.Printf("consumer: calibration %.4f (raw avg %d)", scaled, raw)
		}
		return nil
	})
}

// TemperatureLogger reports the die temperature in Celsius.
// The raw sample is converted here, not by the producer.
type TemperatureLogger struct {
	rx       *broadcast.Receiver[sample.Raw]
	scale    sample.Scale
	sensor   sample.DieSensor
	interval time.Duration
	report   Report
}

// NewTemperatureLogger subscribes to the temperature channel.
func NewTemperatureLogger(cfg *config.Config, temperature *broadcast.Watch[sample.Raw], report Report) (*TemperatureLogger, error) {
	rx, err := temperature.Receiver()
	if err != nil {
		return nil, fmt.Errorf("temperature logger: %w", err)
	}
	return &TemperatureLogger{
		rx:       rx,
		scale:    cfg.Scale(),
		sensor:   cfg.DieSensor(),
		interval: cfg.Consumers.Interval,
		report:   report,
	}, nil
}

// Run observes the temperature channel until ctx is cancelled.
func (c *TemperatureLogger) Run(ctx context.Context, ready func()) error {
	return loop(ctx, c.interval, ready, func(ctx context.Context) error {
		raw, err := c.rx.Get(ctx)
		if err != nil {
			return err
		}
		tempC := sample.Temperature(raw, c.scale, c.sensor)
		if c.report != nil {
			c.report("die_temperature", tempC)
		} else {
			log.Printf("consumer: die temperature %.2f C (raw %d)", tempC, raw)
		}
		return nil
	})
}

// Shower renders one frame of readings.
type Shower interface {
	Init(ctx context.Context) error
	Show(r display.Readings) error
}

// Display feeds the status screen from both channels.
type Display struct {
	temperature *broadcast.Receiver[sample.Raw]
	calibration *broadcast.Receiver[sample.Raw]
	screen      Shower
	scale       sample.Scale
	sensor      sample.DieSensor
	rescale     sample.Rescale
	interval    time.Duration
}

// NewDisplay subscribes to both channels.
func NewDisplay(cfg *config.Config, calibration, temperature *broadcast.Watch[sample.Raw], screen Shower) (*Display, error) {
	trx, err := temperature.Receiver()
	if err != nil {
		return nil, fmt.Errorf("display: temperature: %w", err)
	}
	crx, err := calibration.Receiver()
	if err != nil {
		return nil, fmt.Errorf("display: calibration: %w", err)
	}
	return &Display{
		temperature: trx,
		calibration: crx,
		screen:      screen,
		scale:       cfg.Scale(),
		sensor:      cfg.DieSensor(),
		rescale:     cfg.Rescale(),
		interval:    cfg.Consumers.Interval,
	}, nil
}

// Run initializes the screen and then refreshes it until ctx is cancelled.
// An init failure ends this task only. A failed frame is logged and skipped.
func (d *Display) Run(ctx context.Context, ready func()) error {
	if err := d.screen.Init(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	return loop(ctx, d.interval, ready, func(ctx context.Context) error {
		r, err := d.next(ctx)
		if err != nil {
			return err
		}
		if err := d.screen.Show(r); err != nil {
			log.Printf("display: refresh failed: %v", err)
		}
		return nil
	})
}

// next waits for a new temperature and then a new calibration reading.
func (d *Display) next(ctx context.Context) (display.Readings, error) {
	tempRaw, err := d.temperature.Get(ctx)
	if err != nil {
		return display.Readings{}, err
	}
	calRaw, err := d.calibration.Get(ctx)
	if err != nil {
		return display.Readings{}, err
	}
	return display.Readings{
		DieC:      sample.Truncate2(sample.Temperature(tempRaw, d.scale, d.sensor)),
		Reference: sample.Truncate2(d.rescale.Apply(calRaw)),
	}, nil
}
