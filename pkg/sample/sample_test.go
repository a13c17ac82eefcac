package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleVoltage(t *testing.T) {
	tests := []struct {
		name  string
		raw   Raw
		scale Scale
		want  float32
	}{
		{
			name:  "zero",
			raw:   0,
			scale: DefaultScale,
			want:  0.0,
		},
		{
			name:  "full scale",
			raw:   MaxRaw,
			scale: DefaultScale,
			want:  3.2992, // 4095 * 3.3 / 4096
		},
		{
			name:  "half scale",
			raw:   2048,
			scale: DefaultScale,
			want:  1.65,
		},
		{
			name:  "die sensor sample",
			raw:   745,
			scale: DefaultScale,
			want:  0.6002,
		},
		{
			name:  "different reference",
			raw:   2048,
			scale: Scale{VRef: 5.0, Steps: 4096},
			want:  2.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.scale.Voltage(tt.raw)
			assert.InDelta(t, tt.want, got, 0.0005, "Voltage(%d) = %f, want %f", tt.raw, got, tt.want)
		})
	}
}

func TestTemperature(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
		want float32
	}{
		{
			name: "hot die",
			raw:  745,
			want: 88.46, // 27 - (0.60022 - 0.706) / 0.001721
		},
		{
			name: "reference point",
			raw:  876, // 876 * 3.3 / 4096 = 0.70576 V
			want: 27.14,
		},
		{
			name: "zero reading",
			raw:  0,
			want: 437.22, // 27 + 0.706 / 0.001721
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Temperature(tt.raw, DefaultScale, DefaultDieSensor)
			assert.InDelta(t, tt.want, got, 0.05, "Temperature(%d) = %f, want %f", tt.raw, got, tt.want)
		})
	}
}

func TestRescaleApply(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
		want float32
	}{
		{name: "unity", raw: 127, want: 1.0},
		{name: "zero", raw: 0, want: 1.0 / 128.0},
		{name: "full scale", raw: MaxRaw, want: 32.0},
		{name: "seed", raw: CalibrationSeed, want: 4095.0 / 128.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DefaultRescale.Apply(tt.raw), 0.0001)
		})
	}
}

func TestTruncate2(t *testing.T) {
	assert.InDelta(t, 88.46, Truncate2(88.4679), 0.0001)
	assert.InDelta(t, 1.0, Truncate2(1.0), 0.0001)
	assert.InDelta(t, 31.99, Truncate2(31.9999), 0.0001)
	assert.InDelta(t, -3.14, Truncate2(-3.14159), 0.0001)
}

func TestDieRaw(t *testing.T) {
	tests := []struct {
		name  string
		tempC float32
		want  Raw
	}{
		{name: "reference point", tempC: 27, want: 876},
		{name: "hot", tempC: 60, want: 806},
		{name: "far below range clamps high", tempC: -2000, want: MaxRaw},
		{name: "far above range clamps to zero", tempC: 1000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DieRaw(tt.tempC, DefaultScale, DefaultDieSensor)
			assert.Equal(t, tt.want, got)
			if got != 0 && got != MaxRaw {
				assert.InDelta(t, tt.tempC, Temperature(got, DefaultScale, DefaultDieSensor), 0.5)
			}
		})
	}
}
