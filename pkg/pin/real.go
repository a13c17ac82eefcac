//go:build linux && !tinygo

package pin

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLine drives an output line through the Linux GPIO character device.
type RealLine struct {
	line *gpiocdev.Line
}

// NewRealLine requests offset on chip (e.g. "gpiochip0") as an output, initially low.
func NewRealLine(chip string, offset int) (*RealLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("vivarium"))
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, offset, err)
	}
	return &RealLine{line: line}, nil
}

// SetValue drives the line.
func (r *RealLine) SetValue(value int) error {
	if value != 0 {
		value = 1
	}
	if err := r.line.SetValue(value); err != nil {
		return fmt.Errorf("set line %d: %w", r.line.Offset(), err)
	}
	return nil
}

// Close drives the line low and releases it, leaving the load off.
func (r *RealLine) Close() error {
	var errs []error
	if err := r.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("drive low: %w", err))
	}
	if err := r.line.Reconfigure(gpiocdev.AsInput); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure: %w", err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
