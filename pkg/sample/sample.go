package sample

import (
	"github.com/chewxy/math32"
)

// Raw is a single 12-bit analog-to-digital conversion result (0-4095).
type Raw uint16

const (
	// MaxRaw is the largest value a 12-bit converter produces.
	MaxRaw Raw = 4095

	// CalibrationSeed is the first entry of a fresh calibration ring.
	// It sits one step below full scale so the averaged reading starts high
	// and settles as real samples arrive.
	CalibrationSeed Raw = 4094
)

// Scale converts raw converter steps to volts.
type Scale struct {
	VRef  float32 // Reference voltage (V)
	Steps float32 // Number of converter steps (4096 for 12-bit)
}

// DefaultScale is the RP2040 ADC: 3.3V reference, 12-bit.
var DefaultScale = Scale{VRef: 3.3, Steps: 4096}

// Voltage converts a raw sample to volts.
func (s Scale) Voltage(raw Raw) float32 {
	return float32(raw) * s.VRef / s.Steps
}

// DieSensor is the linear transfer function of the on-die temperature sensor.
// T = ReferenceC - (V - ReferenceV) / Slope
type DieSensor struct {
	ReferenceC float32 // Temperature at the reference voltage (°C)
	ReferenceV float32 // Sensor voltage at ReferenceC (V)
	Slope      float32 // Volts per °C
}

// DefaultDieSensor uses the RP2040 datasheet constants.
var DefaultDieSensor = DieSensor{ReferenceC: 27.0, ReferenceV: 0.706, Slope: 0.001721}

// Celsius converts a sensor voltage to degrees Celsius.
func (d DieSensor) Celsius(voltage float32) float32 {
	return d.ReferenceC - (voltage-d.ReferenceV)/d.Slope
}

// Temperature converts a raw die-temperature sample to degrees Celsius.
func Temperature(raw Raw, scale Scale, sensor DieSensor) float32 {
	return sensor.Celsius(scale.Voltage(raw))
}

// DieRaw is the inverse of Temperature: the raw sample the sensor produces at
// tempC, rounded and clamped to the converter range.
func DieRaw(tempC float32, scale Scale, sensor DieSensor) Raw {
	voltage := sensor.ReferenceV - (tempC-sensor.ReferenceC)*sensor.Slope
	steps := math32.Round(voltage / scale.VRef * scale.Steps)
	switch {
	case steps < 0:
		return 0
	case steps > float32(MaxRaw):
		return MaxRaw
	}
	return Raw(steps)
}

// Rescale is the linear rescale applied to the averaged calibration reading.
// scaled = (raw + Offset) / Divisor
type Rescale struct {
	Offset  float32
	Divisor float32
}

// DefaultRescale maps the calibration average onto (raw+1)/128.
var DefaultRescale = Rescale{Offset: 1, Divisor: 128}

// Apply rescales a raw reading.
func (r Rescale) Apply(raw Raw) float32 {
	return (float32(raw) + r.Offset) / r.Divisor
}

// Truncate2 truncates v to two decimal places.
func Truncate2(v float32) float32 {
	return math32.Trunc(v*100) / 100
}
