// Package actuator drives the vivarium outputs: the duty-cycle demo and the
// heartbeat LED.
package actuator

import (
	"context"
	"fmt"
	"time"

	"github.com/itohio/vivarium/pkg/broadcast"
	"github.com/itohio/vivarium/pkg/pin"
)

// DutyCycler sets the output level of a PWM channel.
type DutyCycler interface {
	SetDutyPercent(percent uint8) error
}

// ErrDutyRange is returned for a duty cycle above 100%.
const ErrDutyRange = Error("actuator: duty cycle above 100%")

// Error is an actuator error.
type Error string

func (e Error) Error() string {
	return string(e)
}

// SoftPWM is a software PWM on a digital line. Fully on and fully off hold
// the line steady without toggling.
type SoftPWM struct {
	line   pin.Line
	period time.Duration
	duty   *broadcast.Watch[uint8]
}

var _ DutyCycler = (*SoftPWM)(nil)

// NewSoftPWM creates a software PWM at frequencyHz, initially off.
func NewSoftPWM(line pin.Line, frequencyHz float64) *SoftPWM {
	if frequencyHz <= 0 {
		frequencyHz = 100
	}
	p := &SoftPWM{
		line:   line,
		period: time.Duration(float64(time.Second) / frequencyHz),
		duty:   broadcast.New[uint8](1),
	}
	p.duty.Send(0)
	return p
}

// SetDutyPercent sets the duty cycle. It never blocks.
func (p *SoftPWM) SetDutyPercent(percent uint8) error {
	if percent > 100 {
		return fmt.Errorf("%d: %w", percent, ErrDutyRange)
	}
	p.duty.Send(percent)
	return nil
}

// Duty returns the current duty cycle.
func (p *SoftPWM) Duty() uint8 {
	v, _, _ := p.duty.Peek()
	return v
}

// Run generates the waveform until ctx is cancelled, then drives the line low.
func (p *SoftPWM) Run(ctx context.Context, ready func()) error {
	rx, err := p.duty.Receiver()
	if err != nil {
		return fmt.Errorf("soft pwm: %w", err)
	}
	defer p.line.SetValue(0)

	duty, err := rx.Get(ctx)
	if err != nil {
		return nil
	}
	if ready != nil {
		ready()
	}

	for {
		switch duty {
		case 0, 100:
			level := 0
			if duty == 100 {
				level = 1
			}
			if err := p.line.SetValue(level); err != nil {
				return fmt.Errorf("soft pwm: %w", err)
			}
			// Steady level until the duty cycle changes.
			if duty, err = rx.Get(ctx); err != nil {
				return nil
			}
			continue
		}

		on := p.period * time.Duration(duty) / 100
		if err := p.line.SetValue(1); err != nil {
			return fmt.Errorf("soft pwm: %w", err)
		}
		if !sleep(ctx, on) {
			return nil
		}
		if err := p.line.SetValue(0); err != nil {
			return fmt.Errorf("soft pwm: %w", err)
		}
		if !sleep(ctx, p.period-on) {
			return nil
		}

		if v, ok := rx.TryGet(); ok {
			duty = v
		}
	}
}

// sleep waits d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
