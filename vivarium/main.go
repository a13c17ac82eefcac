// Command vivarium runs the sensor pipeline on a host: a converter (simulated
// or behind a serial ADC bridge), the acquisition loop, the consumers and the
// outputs. With -gui the status screen is mirrored in a desktop window.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/vivarium/pkg/adc"
	"github.com/itohio/vivarium/pkg/config"
)

func main() {
	var (
		portFlag      = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag    = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag      = flag.Bool("mock", false, "Use simulated converter and outputs instead of hardware")
		guiFlag       = flag.Bool("gui", false, "Show the status screen in a window")
		listPortsFlag = flag.Bool("list-ports", false, "List serial ports and exit")
		noDisplayFlag = flag.Bool("no-display", false, "Disable the status screen (overrides config)")
	)
	flag.Parse()

	if *listPortsFlag {
		if err := listPorts(); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *noDisplayFlag {
		cfg.Display.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		configPath: *configFlag,
		mock:       *mockFlag,
	}
	if *guiFlag {
		err = runGUI(ctx, cfg, opts)
	} else {
		err = run(ctx, cfg, opts)
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// options are the command line choices that are not part of the configuration.
type options struct {
	configPath string
	mock       bool
}

// run builds the pipeline and blocks until ctx is cancelled or a critical task fails.
func run(ctx context.Context, cfg *config.Config, opts options) error {
	p, err := newPipeline(cfg, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	return serve(ctx, p, nil)
}

// serve starts p and waits for it to stop. onStart, if set, runs once every
// task is up.
func serve(ctx context.Context, p *pipeline, onStart func(p *pipeline)) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	if onStart != nil {
		onStart(p)
	}

	log.Printf("started: interval=%v window=%d mock=%v", p.cfg.Sampling.Interval, p.cfg.Sampling.Window, p.opts.mock)
	err := p.Wait()
	log.Printf("stopped")
	return err
}

func listPorts() error {
	ports, err := adc.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, port := range ports {
		fmt.Println(port.Name)
	}
	return nil
}
