package main

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/vivarium/pkg/acquire"
	"github.com/itohio/vivarium/pkg/broadcast"
	"github.com/itohio/vivarium/pkg/config"
	"github.com/itohio/vivarium/pkg/display"
)

// appState holds the window state. cfg is the editable copy behind the
// settings dialog; the running pipeline keeps its own.
type appState struct {
	cfg    *config.Config
	opts   options
	window fyne.Window
}

// runGUI runs the pipeline behind a window mirroring the status screen.
// Closing the window stops the pipeline; a stopped pipeline closes the window.
func runGUI(ctx context.Context, cfg *config.Config, opts options) error {
	p, err := newPipeline(cfg, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Create Fyne application
	application := app.NewWithID("com.itohio.vivarium")

	// Create main window
	window := application.NewWindow("Smart Vivarium")
	window.Resize(fyne.NewSize(640, 400))
	window.CenterOnScreen()
	window.SetOnClosed(cancel)

	editable := *cfg
	state := &appState{
		cfg:    &editable,
		opts:   opts,
		window: window,
	}

	panel := display.NewPanel(p.fb)
	window.SetContent(container.NewBorder(createToolbar(state), nil, nil, nil, panel))

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, p, func(p *pipeline) {
			p.goTask("status", false, statusTask(p.faults, panel))
		})
		fyne.Do(application.Quit)
	}()

	window.ShowAndRun()
	cancel()
	return <-errCh
}

// createToolbar creates the toolbar with the converter source and the Settings button.
func createToolbar(state *appState) fyne.CanvasObject {
	source := "Serial: " + state.cfg.Serial.Port
	if state.opts.mock {
		source = "Simulated converter"
	}

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	return container.NewBorder(nil, nil, container.NewHBox(settingsBtn), nil, widget.NewLabel(source))
}

// statusTask mirrors fault transitions on the panel status line.
func statusTask(faults *broadcast.Watch[acquire.Fault], panel *display.PanelWidget) func(ctx context.Context, ready func()) error {
	rx, err := faults.Receiver()
	return func(ctx context.Context, ready func()) error {
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		panel.SetStatus("running", false)
		ready()

		for {
			f, err := rx.Get(ctx)
			if err != nil {
				return nil
			}
			if f.Active {
				panel.SetStatus("SAFE STATE: "+f.String(), true)
			} else {
				panel.SetStatus(fmt.Sprintf("running (%.2f C)", f.TempC), false)
			}
		}
	}
}
