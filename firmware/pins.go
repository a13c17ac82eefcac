//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// Analog inputs: ADC0 is the reference input, the die sensor has no pin.
	PIN_REFERENCE_ADC = machine.ADC0

	// Duty-cycle demo output (PWM slice 1, channel A)
	PIN_ACTUATOR = machine.GP2

	// Status display, I2C0 on the default pins
	DISPLAY_I2C_FREQUENCY = 400 * machine.KHz
	DISPLAY_ADDRESS       = 0x3C
	DISPLAY_WIDTH         = 128
	DISPLAY_HEIGHT        = 64

	// Actuator PWM carrier
	ACTUATOR_PERIOD_NS = uint64(time.Second / 1000)

	// Heartbeat
	PIN_LED = machine.LED

	WATCHDOG_TIMEOUT_MS = 5000
)
