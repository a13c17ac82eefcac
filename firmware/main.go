//go:build tinygo

//go:generate tinygo flash -target=pico

// Command firmware runs the vivarium pipeline on the RP2040 board itself:
// the on-chip ADC, an SSD1306 status display, a hardware PWM demo output and
// the LED heartbeat. The converter is also served over USB serial, so the
// host daemon can use the board as its serial ADC bridge.
package main

import (
	"context"
	"log"
	"machine"
	"time"

	"tinygo.org/x/drivers/ssd1306"

	"github.com/itohio/vivarium/pkg/acquire"
	"github.com/itohio/vivarium/pkg/actuator"
	"github.com/itohio/vivarium/pkg/adc"
	"github.com/itohio/vivarium/pkg/broadcast"
	"github.com/itohio/vivarium/pkg/config"
	"github.com/itohio/vivarium/pkg/consumer"
	"github.com/itohio/vivarium/pkg/display"
	"github.com/itohio/vivarium/pkg/sample"
	"github.com/itohio/vivarium/pkg/task"
)

func main() {
	cfg := config.Default()

	conv, err := newBoardADC()
	if err != nil {
		halt("adc", err)
	}
	periph := adc.NewPeripheral(conv)
	calibration := broadcast.New[sample.Raw](cfg.Consumers.CalibrationReceivers)
	temperature := broadcast.New[sample.Raw](cfg.Consumers.TemperatureReceivers)
	faults := broadcast.New[acquire.Fault](1)

	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: WATCHDOG_TIMEOUT_MS})
	machine.Watchdog.Start()

	group, _ := task.New(context.Background(), cfg.Startup.ReadyTimeout)
	goTask := func(name string, critical bool, fn task.Func) {
		if err := group.Go(name, critical, fn); err != nil {
			log.Printf("%v", err)
		}
	}

	goTask("heartbeat", false, actuator.NewHeartbeat(newLEDLine(PIN_LED), cfg.LED.Interval).Run)

	acq := acquire.New(cfg, periph, calibration, temperature, acquire.WithFaults(faults))
	if err := group.Go("acquire", true, acq.Run); err != nil {
		halt("acquire", err)
	}
	goTask("watchdog", false, watchdogTask(calibration, cfg.Sampling.Interval))
	goTask("bridge", false, func(ctx context.Context, ready func()) error {
		return adc.NewBridge(periph).Serve(ctx, usbSerial{port: machine.Serial}, ready)
	})

	if cl, err := consumer.NewCalibrationLogger(cfg, calibration, nil); err == nil {
		goTask("calibration", false, cl.Run)
	} else {
		log.Printf("calibration logger: %v", err)
	}
	if tl, err := consumer.NewTemperatureLogger(cfg, temperature, nil); err == nil {
		goTask("temperature", false, tl.Run)
	} else {
		log.Printf("temperature logger: %v", err)
	}

	machine.I2C0.Configure(machine.I2CConfig{Frequency: DISPLAY_I2C_FREQUENCY})
	oled := ssd1306.NewI2C(machine.I2C0)
	screen := display.NewScreen(&oled,
		display.WithStartDelay(cfg.Display.StartDelay),
		display.WithInit(func() error {
			oled.Configure(ssd1306.Config{
				Width:    DISPLAY_WIDTH,
				Height:   DISPLAY_HEIGHT,
				Address:  DISPLAY_ADDRESS,
				VccState: ssd1306.SWITCHCAPVCC,
			})
			oled.ClearDisplay()
			return nil
		}),
	)
	if d, err := consumer.NewDisplay(cfg, calibration, temperature, screen); err == nil {
		goTask("display", false, d.Run)
	} else {
		log.Printf("display: %v", err)
	}

	if out, err := newPWMOutput(machine.PWM1, PIN_ACTUATOR, ACTUATOR_PERIOD_NS); err != nil {
		log.Printf("actuator disabled: %v", err)
	} else if demo, err := actuator.NewDemo(out, cfg.Actuator.Period, faults); err != nil {
		log.Printf("actuator disabled: %v", err)
	} else {
		goTask("demo", false, demo.Run)
	}

	// Only a critical failure ends up here. The watchdog stops being fed and
	// resets the board.
	halt("stopped", group.Wait())
}

// watchdogTask feeds the watchdog while calibration readings keep arriving.
// A stalled acquisition loop resets the board.
func watchdogTask(calibration *broadcast.Watch[sample.Raw], interval time.Duration) task.Func {
	return func(ctx context.Context, ready func()) error {
		ready()
		last := calibration.Version()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
			if v := calibration.Version(); v != last {
				last = v
				machine.Watchdog.Update()
			}
		}
	}
}

func halt(what string, err error) {
	for {
		log.Printf("%s: %v", what, err)
		time.Sleep(time.Second)
	}
}
