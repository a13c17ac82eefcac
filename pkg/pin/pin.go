// Package pin provides digital output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package pin

// Line is a single digital output.
type Line interface {
	// SetValue drives the line: 0 is low, anything else is high.
	SetValue(value int) error

	// Close releases the line.
	Close() error
}
