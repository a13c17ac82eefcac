package adc

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/itohio/vivarium/pkg/config"
	"github.com/itohio/vivarium/pkg/sample"
)

// Ensure Mock implements Converter.
var _ Converter = (*Mock)(nil)

// Mock simulates the board's converter for development without hardware.
type Mock struct {
	cfg    *config.MockConfig
	scale  sample.Scale
	sensor sample.DieSensor

	mu        sync.Mutex
	startTime time.Time
	reads     int
	closed    bool
}

// NewMock creates a simulated converter. The scale and sensor are used to turn
// the configured die temperature back into a raw sample.
func NewMock(cfg *config.MockConfig, scale sample.Scale, sensor sample.DieSensor) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			ReferenceRaw: 2048,
			Noise:        8,
			DieTempC:     27.0,
			Latency:      2 * time.Millisecond,
		}
	}

	return &Mock{
		cfg:       cfg,
		scale:     scale,
		sensor:    sensor,
		startTime: time.Now(),
	}
}

// Read simulates one conversion.
func (m *Mock) Read(ctx context.Context, ch Channel) (sample.Raw, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	m.reads++
	n := m.reads
	elapsed := time.Since(m.startTime)
	m.mu.Unlock()

	if !ch.Valid() {
		return 0, ErrInvalidChannel
	}

	if m.cfg.Latency > 0 {
		timer := time.NewTimer(m.cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	if m.cfg.FailEvery > 0 && n%m.cfg.FailEvery == 0 {
		return 0, ErrTimeout
	}

	t := elapsed.Seconds()
	noise := (math.Sin(t*7.1) + math.Cos(t*3.3)) * m.cfg.Noise * 0.5

	if ch == ChannelDieTemp {
		return m.dieTemperature(noise * 0.1), nil
	}

	// Inputs other than the reference sit at fractions of it.
	level := float64(m.cfg.ReferenceRaw) / float64(uint8(ch)+1)
	return clamp(level + noise), nil
}

// Reads returns the number of conversions attempted.
func (m *Mock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Close stops the simulated converter.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// dieTemperature inverts the sensor transfer function for the configured temperature.
func (m *Mock) dieTemperature(jitterC float64) sample.Raw {
	return sample.DieRaw(m.cfg.DieTempC+float32(jitterC), m.scale, m.sensor)
}

func clamp(v float64) sample.Raw {
	if v < 0 {
		return 0
	}
	if v > float64(sample.MaxRaw) {
		return sample.MaxRaw
	}
	return sample.Raw(v + 0.5)
}
