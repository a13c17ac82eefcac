package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/vivarium/pkg/sample"
)

// Config represents the application configuration.
type Config struct {
	Sampling    SamplingConfig    `yaml:"sampling"`
	ADC         ADCConfig         `yaml:"adc"`
	Temperature TemperatureConfig `yaml:"temperature"`
	Consumers   ConsumersConfig   `yaml:"consumers"`
	Display     DisplayConfig     `yaml:"display"`
	Actuator    ActuatorConfig    `yaml:"actuator"`
	LED         LEDConfig         `yaml:"led"`
	Serial      SerialConfig      `yaml:"serial"`
	Mock        MockConfig        `yaml:"mock"`
	Startup     StartupConfig     `yaml:"startup"`
}

// SamplingConfig contains acquisition loop parameters.
type SamplingConfig struct {
	Interval           time.Duration `yaml:"interval"`            // Delay between acquisition cycles
	Window             int           `yaml:"window"`              // Smoothing ring capacity
	Seed               uint16        `yaml:"seed"`                // First entry of the smoothing ring
	CalibrationChannel uint8         `yaml:"calibration_channel"` // Reference input (ADC0)
	TemperatureChannel uint8         `yaml:"temperature_channel"` // Die temperature sensor (ADC4)
}

// ADCConfig contains converter-to-voltage constants.
type ADCConfig struct {
	VRef  float32 `yaml:"vref"`  // Reference voltage (V)
	Steps float32 `yaml:"steps"` // Converter steps (4096 for 12-bit)
}

// TemperatureConfig contains the die sensor transfer function and safety limits.
type TemperatureConfig struct {
	ReferenceC  float32 `yaml:"reference_c"`  // Temperature at ReferenceV (°C)
	ReferenceV  float32 `yaml:"reference_v"`  // Sensor voltage at ReferenceC (V)
	Slope       float32 `yaml:"slope"`        // V/°C
	MaxSafeC    float32 `yaml:"max_safe_c"`   // Above this the actuator is forced to its safe state
	MaxFailures int     `yaml:"max_failures"` // Consecutive unreadable cycles before the safe state
}

// ConsumersConfig contains consumer task parameters.
type ConsumersConfig struct {
	Interval             time.Duration `yaml:"interval"`              // Delay between observations
	CalibrationReceivers int           `yaml:"calibration_receivers"` // Receiver bound of the calibration channel
	TemperatureReceivers int           `yaml:"temperature_receivers"` // Receiver bound of the temperature channel
	ScaleOffset          float32       `yaml:"scale_offset"`          // scaled = (raw + offset) / divisor
	ScaleDivisor         float32       `yaml:"scale_divisor"`
}

// DisplayConfig contains status display parameters.
type DisplayConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Width      int16         `yaml:"width"`
	Height     int16         `yaml:"height"`
	StartDelay time.Duration `yaml:"start_delay"` // Wait before display init (cold boot)
}

// ActuatorConfig contains the duty-cycle demo parameters.
type ActuatorConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Period      time.Duration `yaml:"period"`       // Time spent at each duty level
	FrequencyHz float64       `yaml:"frequency_hz"` // Software PWM frequency
	Chip        string        `yaml:"chip"`         // GPIO chip (Linux)
	Pin         int           `yaml:"pin"`
}

// LEDConfig contains the heartbeat LED parameters.
type LEDConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Chip     string        `yaml:"chip"`
	Pin      int           `yaml:"pin"`
}

// SerialConfig contains serial ADC bridge configuration.
type SerialConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	Timeout  time.Duration `yaml:"timeout"` // Per-conversion reply timeout
}

// MockConfig contains simulated converter configuration.
type MockConfig struct {
	ReferenceRaw uint16        `yaml:"reference_raw"` // Center of the simulated reference input
	Noise        float64       `yaml:"noise"`         // Noise amplitude (steps)
	DieTempC     float32       `yaml:"die_temp_c"`    // Simulated die temperature
	FailEvery    int           `yaml:"fail_every"`    // Every Nth conversion times out (0 = never)
	Latency      time.Duration `yaml:"latency"`       // Simulated conversion time
}

// StartupConfig contains task startup parameters.
type StartupConfig struct {
	ReadyTimeout time.Duration `yaml:"ready_timeout"` // Max wait for a task to report ready
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Sampling: SamplingConfig{
			Interval:           time.Second,
			Window:             16,
			Seed:               4094,
			CalibrationChannel: 0,
			TemperatureChannel: 4,
		},
		ADC: ADCConfig{
			VRef:  3.3,
			Steps: 4096,
		},
		Temperature: TemperatureConfig{
			ReferenceC:  27.0,
			ReferenceV:  0.706,
			Slope:       0.001721,
			MaxSafeC:    75.0, // RP2040 rated junction limit
			MaxFailures: 5,
		},
		Consumers: ConsumersConfig{
			Interval:             time.Second,
			CalibrationReceivers: 3,
			TemperatureReceivers: 2,
			ScaleOffset:          1,
			ScaleDivisor:         128,
		},
		Display: DisplayConfig{
			Enabled:    true,
			Width:      128,
			Height:     64,
			StartDelay: 2 * time.Second,
		},
		Actuator: ActuatorConfig{
			Enabled:     true,
			Period:      time.Second,
			FrequencyHz: 100,
			Chip:        "gpiochip0",
			Pin:         2,
		},
		LED: LEDConfig{
			Enabled:  true,
			Interval: time.Second,
			Chip:     "gpiochip0",
			Pin:      25,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
			Timeout:  500 * time.Millisecond,
		},
		Mock: MockConfig{
			ReferenceRaw: 2048,
			Noise:        8,
			DieTempC:     27.0,
			FailEvery:    0,
			Latency:      2 * time.Millisecond,
		},
		Startup: StartupConfig{
			ReadyTimeout: 5 * time.Second,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that have no usable default and would break the pipeline.
// It does not mutate the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Sampling.Interval <= 0 {
		errs = append(errs, errors.New("sampling.interval must be > 0"))
	}
	if c.Sampling.Window < 1 || c.Sampling.Window > sample.MaxWindow {
		errs = append(errs, fmt.Errorf("sampling.window must be in 1..%d", sample.MaxWindow))
	}
	if c.Sampling.Seed > 4095 {
		errs = append(errs, fmt.Errorf("sampling.seed %d exceeds 12-bit range", c.Sampling.Seed))
	}
	if c.Sampling.CalibrationChannel == c.Sampling.TemperatureChannel {
		errs = append(errs, errors.New("sampling: calibration and temperature channels must differ"))
	}
	if c.ADC.Steps <= 0 {
		errs = append(errs, errors.New("adc.steps must be > 0"))
	}
	if c.Temperature.Slope == 0 {
		errs = append(errs, errors.New("temperature.slope must not be 0"))
	}
	if c.Consumers.CalibrationReceivers < 1 || c.Consumers.TemperatureReceivers < 1 {
		errs = append(errs, errors.New("consumers: receiver bounds must be >= 1"))
	}
	if c.Consumers.ScaleDivisor == 0 {
		errs = append(errs, errors.New("consumers.scale_divisor must not be 0"))
	}

	return errors.Join(errs...)
}

// Scale returns the converter-to-voltage scale.
func (c *Config) Scale() sample.Scale {
	return sample.Scale{VRef: c.ADC.VRef, Steps: c.ADC.Steps}
}

// DieSensor returns the die temperature sensor transfer function.
func (c *Config) DieSensor() sample.DieSensor {
	return sample.DieSensor{
		ReferenceC: c.Temperature.ReferenceC,
		ReferenceV: c.Temperature.ReferenceV,
		Slope:      c.Temperature.Slope,
	}
}

// Rescale returns the calibration rescale applied by consumers.
func (c *Config) Rescale() sample.Rescale {
	return sample.Rescale{Offset: c.Consumers.ScaleOffset, Divisor: c.Consumers.ScaleDivisor}
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Sampling.Interval == 0 {
		c.Sampling.Interval = def.Sampling.Interval
	}
	if c.Sampling.Window == 0 {
		c.Sampling.Window = def.Sampling.Window
	}

	if c.ADC.VRef == 0 {
		c.ADC.VRef = def.ADC.VRef
	}
	if c.ADC.Steps == 0 {
		c.ADC.Steps = def.ADC.Steps
	}

	if c.Temperature.ReferenceC == 0 {
		c.Temperature.ReferenceC = def.Temperature.ReferenceC
	}
	if c.Temperature.ReferenceV == 0 {
		c.Temperature.ReferenceV = def.Temperature.ReferenceV
	}
	if c.Temperature.Slope == 0 {
		c.Temperature.Slope = def.Temperature.Slope
	}
	if c.Temperature.MaxSafeC == 0 {
		c.Temperature.MaxSafeC = def.Temperature.MaxSafeC
	}
	if c.Temperature.MaxFailures == 0 {
		c.Temperature.MaxFailures = def.Temperature.MaxFailures
	}

	if c.Consumers.Interval == 0 {
		c.Consumers.Interval = def.Consumers.Interval
	}
	if c.Consumers.CalibrationReceivers == 0 {
		c.Consumers.CalibrationReceivers = def.Consumers.CalibrationReceivers
	}
	if c.Consumers.TemperatureReceivers == 0 {
		c.Consumers.TemperatureReceivers = def.Consumers.TemperatureReceivers
	}
	if c.Consumers.ScaleDivisor == 0 {
		c.Consumers.ScaleDivisor = def.Consumers.ScaleDivisor
	}

	if c.Display.Width == 0 {
		c.Display.Width = def.Display.Width
	}
	if c.Display.Height == 0 {
		c.Display.Height = def.Display.Height
	}

	if c.Actuator.Period == 0 {
		c.Actuator.Period = def.Actuator.Period
	}
	if c.Actuator.FrequencyHz == 0 {
		c.Actuator.FrequencyHz = def.Actuator.FrequencyHz
	}
	if c.Actuator.Chip == "" {
		c.Actuator.Chip = def.Actuator.Chip
	}

	if c.LED.Interval == 0 {
		c.LED.Interval = def.LED.Interval
	}
	if c.LED.Chip == "" {
		c.LED.Chip = def.LED.Chip
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.Timeout == 0 {
		c.Serial.Timeout = def.Serial.Timeout
	}

	if c.Startup.ReadyTimeout == 0 {
		c.Startup.ReadyTimeout = def.Startup.ReadyTimeout
	}
}
