//go:build tinygo

package main

import (
	"machine"

	"github.com/itohio/vivarium/pkg/actuator"
	"github.com/itohio/vivarium/pkg/pin"
)

// pwmPeripheral abstracts over TinyGo's unexported PWM group type.
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

var _ actuator.DutyCycler = (*pwmOutput)(nil)

// pwmOutput is a hardware PWM channel.
type pwmOutput struct {
	pwm     pwmPeripheral
	channel uint8
}

func newPWMOutput(pwm pwmPeripheral, p machine.Pin, periodNS uint64) (*pwmOutput, error) {
	if err := pwm.Configure(machine.PWMConfig{Period: periodNS}); err != nil {
		return nil, err
	}
	ch, err := pwm.Channel(p)
	if err != nil {
		return nil, err
	}
	pwm.Set(ch, 0)
	return &pwmOutput{pwm: pwm, channel: ch}, nil
}

func (o *pwmOutput) SetDutyPercent(percent uint8) error {
	if percent > 100 {
		return actuator.ErrDutyRange
	}
	o.pwm.Set(o.channel, o.pwm.Top()*uint32(percent)/100)
	return nil
}

var _ pin.Line = ledLine{}

// ledLine is a GPIO output.
type ledLine struct {
	p machine.Pin
}

func newLEDLine(p machine.Pin) ledLine {
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	return ledLine{p: p}
}

func (l ledLine) SetValue(value int) error {
	l.p.Set(value != 0)
	return nil
}

func (l ledLine) Close() error {
	l.p.Low()
	return nil
}
