package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vivarium/pkg/sample"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, time.Second, cfg.Sampling.Interval)
	assert.Equal(t, 16, cfg.Sampling.Window)
	assert.Equal(t, uint16(4094), cfg.Sampling.Seed)
	assert.Equal(t, uint8(0), cfg.Sampling.CalibrationChannel)
	assert.Equal(t, uint8(4), cfg.Sampling.TemperatureChannel)
	assert.Equal(t, float32(3.3), cfg.ADC.VRef)
	assert.Equal(t, float32(4096), cfg.ADC.Steps)
	assert.Equal(t, float32(27.0), cfg.Temperature.ReferenceC)
	assert.Equal(t, float32(0.706), cfg.Temperature.ReferenceV)
	assert.Equal(t, float32(0.001721), cfg.Temperature.Slope)
	assert.Equal(t, 3, cfg.Consumers.CalibrationReceivers)
	assert.Equal(t, 2, cfg.Consumers.TemperatureReceivers)
	assert.Equal(t, time.Second, cfg.Consumers.Interval)
	assert.Equal(t, 2*time.Second, cfg.Display.StartDelay)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, 16, cfg.Sampling.Window)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
sampling:
  interval: 250ms
  window: 8
  seed: 2048
  calibration_channel: 1
  temperature_channel: 4

adc:
  vref: 3.0
  steps: 4096

temperature:
  max_safe_c: 60
  max_failures: 3

consumers:
  interval: 2s
  calibration_receivers: 4

display:
  enabled: false
  start_delay: 0s

serial:
  port: "/dev/ttyUSB1"
  baud_rate: 57600
  timeout: 1s

mock:
  reference_raw: 1000
  fail_every: 3
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 250*time.Millisecond, cfg.Sampling.Interval)
	assert.Equal(t, 8, cfg.Sampling.Window)
	assert.Equal(t, uint16(2048), cfg.Sampling.Seed)
	assert.Equal(t, uint8(1), cfg.Sampling.CalibrationChannel)
	assert.Equal(t, float32(3.0), cfg.ADC.VRef)
	assert.Equal(t, float32(60), cfg.Temperature.MaxSafeC)
	assert.Equal(t, 3, cfg.Temperature.MaxFailures)
	assert.Equal(t, 2*time.Second, cfg.Consumers.Interval)
	assert.Equal(t, 4, cfg.Consumers.CalibrationReceivers)
	assert.False(t, cfg.Display.Enabled)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.Equal(t, time.Second, cfg.Serial.Timeout)
	assert.Equal(t, uint16(1000), cfg.Mock.ReferenceRaw)
	assert.Equal(t, 3, cfg.Mock.FailEvery)

	// Untouched sections keep defaults
	assert.Equal(t, float32(0.001721), cfg.Temperature.Slope)
	assert.Equal(t, 2, cfg.Consumers.TemperatureReceivers)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
sampling:
  window: 0
  interval: 0s
serial:
  port: "/dev/ttyACM1"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Port)

	// Should use defaults for missing and zero fields
	assert.Equal(t, 16, cfg.Sampling.Window)
	assert.Equal(t, time.Second, cfg.Sampling.Interval)
	assert.Equal(t, float32(3.3), cfg.ADC.VRef)
	assert.Equal(t, 5*time.Second, cfg.Startup.ReadyTimeout)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Sampling.Window = 32

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 32, loaded.Sampling.Window)
	assert.Equal(t, cfg.Sampling.Interval, loaded.Sampling.Interval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero interval", mutate: func(c *Config) { c.Sampling.Interval = 0 }},
		{name: "negative window", mutate: func(c *Config) { c.Sampling.Window = -1 }},
		{name: "window too large", mutate: func(c *Config) { c.Sampling.Window = 4097 }},
		{name: "seed out of range", mutate: func(c *Config) { c.Sampling.Seed = 4096 }},
		{name: "same channels", mutate: func(c *Config) { c.Sampling.CalibrationChannel = 4 }},
		{name: "zero steps", mutate: func(c *Config) { c.ADC.Steps = 0 }},
		{name: "zero slope", mutate: func(c *Config) { c.Temperature.Slope = 0 }},
		{name: "no receivers", mutate: func(c *Config) { c.Consumers.TemperatureReceivers = 0 }},
		{name: "zero divisor", mutate: func(c *Config) { c.Consumers.ScaleDivisor = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()

	assert.Equal(t, sample.DefaultScale, cfg.Scale())
	assert.Equal(t, sample.DefaultDieSensor, cfg.DieSensor())
	assert.Equal(t, sample.DefaultRescale, cfg.Rescale())
}
