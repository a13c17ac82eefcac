// Package adc provides exclusive access to the single analog-to-digital converter.
//
// Every channel read goes through a Peripheral, which serializes callers with
// an asynchronous mutex. Converter implementations talk to the hardware
// (simulated, a serial ADC bridge, or the MCU's own ADC in firmware builds).
package adc

import (
	"context"
	"fmt"

	"github.com/itohio/vivarium/pkg/sample"
)

// Channel identifies a converter input.
type Channel uint8

// RP2040 channel layout: ADC0-ADC3 are pins 26-29, ADC4 is the die temperature sensor.
const (
	ChannelReference Channel = 0
	ChannelDieTemp   Channel = 4

	maxChannel = ChannelDieTemp
)

func (c Channel) String() string {
	if c == ChannelDieTemp {
		return "die-temp"
	}
	return fmt.Sprintf("adc%d", uint8(c))
}

// Valid reports whether c exists on the converter.
func (c Channel) Valid() bool {
	return c <= maxChannel
}

// Error is an ADC error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrBusy           = Error("adc: converter busy")
	ErrTimeout        = Error("adc: conversion timeout")
	ErrInvalidChannel = Error("adc: invalid channel")
	ErrOutOfRange     = Error("adc: sample out of range")
	ErrReleased       = Error("adc: access already released")
	ErrClosed         = Error("adc: converter closed")
)

// Converter performs one conversion on a channel.
// Implementations are not required to be safe for concurrent use;
// Peripheral guarantees one read at a time.
type Converter interface {
	Read(ctx context.Context, ch Channel) (sample.Raw, error)
	Close() error
}
