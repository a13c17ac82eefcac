package main

import (
	"context"
	"fmt"
	"log"

	"github.com/itohio/vivarium/pkg/acquire"
	"github.com/itohio/vivarium/pkg/actuator"
	"github.com/itohio/vivarium/pkg/adc"
	"github.com/itohio/vivarium/pkg/broadcast"
	"github.com/itohio/vivarium/pkg/config"
	"github.com/itohio/vivarium/pkg/consumer"
	"github.com/itohio/vivarium/pkg/display"
	"github.com/itohio/vivarium/pkg/pin"
	"github.com/itohio/vivarium/pkg/sample"
	"github.com/itohio/vivarium/pkg/task"
)

// faultReceivers: actuator demo and the window status line.
const faultReceivers = 2

// pipeline owns everything the tasks share. It is built once and passed by
// reference; nothing here is a package-level singleton.
type pipeline struct {
	cfg  *config.Config
	opts options

	periph      *adc.Peripheral
	calibration *broadcast.Watch[sample.Raw]
	temperature *broadcast.Watch[sample.Raw]
	faults      *broadcast.Watch[acquire.Fault]
	fb          *display.Framebuffer
	lines       []pin.Line

	group  *task.Group
	cancel context.CancelFunc
}

func newPipeline(cfg *config.Config, opts options) (*pipeline, error) {
	conv, err := openConverter(cfg, opts.mock)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		cfg:         cfg,
		opts:        opts,
		periph:      adc.NewPeripheral(conv),
		calibration: broadcast.New[sample.Raw](cfg.Consumers.CalibrationReceivers),
		temperature: broadcast.New[sample.Raw](cfg.Consumers.TemperatureReceivers),
		faults:      broadcast.New[acquire.Fault](faultReceivers),
		fb:          display.NewFramebuffer(cfg.Display.Width, cfg.Display.Height),
	}, nil
}

// Start launches the tasks in dependency order: producer first, then the
// consumers, then the outputs. Only the acquisition task is critical.
func (p *pipeline) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)
	p.group, _ = task.New(ctx, p.cfg.Startup.ReadyTimeout)

	if err := p.start(); err != nil {
		p.cancel()
		p.group.Wait()
		return err
	}
	return nil
}

func (p *pipeline) start() error {
	cfg := p.cfg

	if cfg.LED.Enabled {
		if line, err := p.openLine(cfg.LED.Chip, cfg.LED.Pin); err != nil {
			log.Printf("heartbeat disabled: %v", err)
		} else {
			p.goTask("heartbeat", false, actuator.NewHeartbeat(line, cfg.LED.Interval).Run)
		}
	}

	acq := acquire.New(cfg, p.periph, p.calibration, p.temperature, acquire.WithFaults(p.faults))
	if err := p.group.Go("acquire", true, acq.Run); err != nil {
		return err
	}

	cl, err := consumer.NewCalibrationLogger(cfg, p.calibration, nil)
	if err != nil {
		return err
	}
	p.goTask("calibration", false, cl.Run)

	tl, err := consumer.NewTemperatureLogger(cfg, p.temperature, nil)
	if err != nil {
		return err
	}
	p.goTask("temperature", false, tl.Run)

	if cfg.Display.Enabled {
		screen := display.NewScreen(p.fb, display.WithStartDelay(cfg.Display.StartDelay))
		d, err := consumer.NewDisplay(cfg, p.calibration, p.temperature, screen)
		if err != nil {
			return err
		}
		p.goTask("display", false, d.Run)
	}

	if cfg.Actuator.Enabled {
		line, err := p.openLine(cfg.Actuator.Chip, cfg.Actuator.Pin)
		if err != nil {
			log.Printf("actuator disabled: %v", err)
			return nil
		}
		pwm := actuator.NewSoftPWM(line, cfg.Actuator.FrequencyHz)
		demo, err := actuator.NewDemo(pwm, cfg.Actuator.Period, p.faults)
		if err != nil {
			return err
		}
		p.goTask("pwm", false, pwm.Run)
		p.goTask("demo", false, demo.Run)
	}

	return nil
}

// goTask starts a task whose startup failure must not stop the others.
func (p *pipeline) goTask(name string, critical bool, fn task.Func) {
	if err := p.group.Go(name, critical, fn); err != nil {
		log.Printf("%v", err)
	}
}

// Wait blocks until all tasks have stopped.
func (p *pipeline) Wait() error {
	return p.group.Wait()
}

// Stop cancels every task.
func (p *pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Close releases the converter and the output lines. Call after Wait.
func (p *pipeline) Close() {
	for _, line := range p.lines {
		if err := line.Close(); err != nil {
			log.Printf("close line: %v", err)
		}
	}
	if err := p.periph.Close(); err != nil {
		log.Printf("close converter: %v", err)
	}
}

func (p *pipeline) openLine(chip string, offset int) (pin.Line, error) {
	var (
		line pin.Line
		err  error
	)
	if p.opts.mock {
		line = pin.NewFakeLine()
	} else {
		line, err = pin.NewRealLine(chip, offset)
		if err != nil {
			return nil, err
		}
	}
	p.lines = append(p.lines, line)
	return line, nil
}

func openConverter(cfg *config.Config, mock bool) (adc.Converter, error) {
	if mock {
		log.Printf("Using simulated converter")
		return adc.NewMock(&cfg.Mock, cfg.Scale(), cfg.DieSensor()), nil
	}

	s := adc.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Serial.Timeout)
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Serial.Port, err)
	}
	log.Printf("Connected to serial port: %s", cfg.Serial.Port)
	return s, nil
}
