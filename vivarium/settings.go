package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/vivarium/pkg/adc"
	"github.com/itohio/vivarium/pkg/config"
)

// showSettingsDialog displays a settings dialog with tabs for the configuration
// options that make sense to edit at the bench. The running pipeline keeps its
// configuration; saved changes apply on the next start.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createSamplingTab(state),
		createSafetyTab(state),
		createDisplayTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(520, 360))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(520, 360))
	d.Show()
}

// saveSettings applies edit to a copy of the editable configuration and keeps
// and saves it if the result is valid.
func saveSettings(state *appState, edit func(cfg *config.Config)) {
	next := *state.cfg
	edit(&next)

	if err := next.Validate(); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if err := next.Save(state.opts.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return
	}
	*state.cfg = next
	dialog.ShowInformation("Settings", "Saved. Restart to apply.", state.window)
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := adc.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // display name -> port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	timeoutEntry := widget.NewEntry()
	timeoutEntry.SetText(state.cfg.Serial.Timeout.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
			{Text: "Reply Timeout", Widget: timeoutEntry},
		},
		OnSubmit: func() {
			saveSettings(state, func(cfg *config.Config) {
				if portSelect.Selected != "" {
					port := portMap[portSelect.Selected]
					if port == "" {
						port = portSelect.Selected
					}
					cfg.Serial.Port = port
				}
				if baud, err := strconv.Atoi(baudEntry.Text); err == nil {
					cfg.Serial.BaudRate = baud
				}
				if d, err := time.ParseDuration(timeoutEntry.Text); err == nil {
					cfg.Serial.Timeout = d
				}
			})
		},
	}

	return container.NewTabItem("Serial", form)
}

// createSamplingTab creates the Sampling configuration tab.
func createSamplingTab(state *appState) *container.TabItem {
	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(state.cfg.Sampling.Interval.String())

	windowEntry := widget.NewEntry()
	windowEntry.SetText(strconv.Itoa(state.cfg.Sampling.Window))

	consumerEntry := widget.NewEntry()
	consumerEntry.SetText(state.cfg.Consumers.Interval.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Acquisition Interval", Widget: intervalEntry},
			{Text: "Smoothing Window", Widget: windowEntry},
			{Text: "Consumer Interval", Widget: consumerEntry},
		},
		OnSubmit: func() {
			saveSettings(state, func(cfg *config.Config) {
				if d, err := time.ParseDuration(intervalEntry.Text); err == nil {
					cfg.Sampling.Interval = d
				}
				if w, err := strconv.Atoi(windowEntry.Text); err == nil {
					cfg.Sampling.Window = w
				}
				if d, err := time.ParseDuration(consumerEntry.Text); err == nil {
					cfg.Consumers.Interval = d
				}
			})
		},
	}

	return container.NewTabItem("Sampling", form)
}

// createSafetyTab creates the Safety configuration tab.
func createSafetyTab(state *appState) *container.TabItem {
	maxTempEntry := widget.NewEntry()
	maxTempEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Temperature.MaxSafeC))

	maxFailuresEntry := widget.NewEntry()
	maxFailuresEntry.SetText(strconv.Itoa(state.cfg.Temperature.MaxFailures))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Max Die Temperature (°C)", Widget: maxTempEntry},
			{Text: "Max Consecutive Failures", Widget: maxFailuresEntry},
		},
		OnSubmit: func() {
			saveSettings(state, func(cfg *config.Config) {
				if t, err := strconv.ParseFloat(maxTempEntry.Text, 32); err == nil {
					cfg.Temperature.MaxSafeC = float32(t)
				}
				if n, err := strconv.Atoi(maxFailuresEntry.Text); err == nil {
					cfg.Temperature.MaxFailures = n
				}
			})
		},
	}

	return container.NewTabItem("Safety", form)
}

// createDisplayTab creates the Display configuration tab.
func createDisplayTab(state *appState) *container.TabItem {
	enabledCheck := widget.NewCheck("", nil)
	enabledCheck.SetChecked(state.cfg.Display.Enabled)

	delayEntry := widget.NewEntry()
	delayEntry.SetText(state.cfg.Display.StartDelay.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Enabled", Widget: enabledCheck},
			{Text: "Start Delay", Widget: delayEntry},
		},
		OnSubmit: func() {
			saveSettings(state, func(cfg *config.Config) {
				cfg.Display.Enabled = enabledCheck.Checked
				if d, err := time.ParseDuration(delayEntry.Text); err == nil {
					cfg.Display.StartDelay = d
				}
			})
		},
	}

	return container.NewTabItem("Display", form)
}

// createMockTab creates the simulated converter configuration tab.
func createMockTab(state *appState) *container.TabItem {
	referenceEntry := widget.NewEntry()
	referenceEntry.SetText(strconv.Itoa(int(state.cfg.Mock.ReferenceRaw)))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.Noise))

	dieTempEntry := widget.NewEntry()
	dieTempEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.DieTempC))

	failEveryEntry := widget.NewEntry()
	failEveryEntry.SetText(strconv.Itoa(state.cfg.Mock.FailEvery))

	latencyEntry := widget.NewEntry()
	latencyEntry.SetText(state.cfg.Mock.Latency.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Reference (steps)", Widget: referenceEntry},
			{Text: "Noise (steps)", Widget: noiseEntry},
			{Text: "Die Temperature (°C)", Widget: dieTempEntry},
			{Text: "Fail Every (0=never)", Widget: failEveryEntry},
			{Text: "Latency", Widget: latencyEntry},
		},
		OnSubmit: func() {
			saveSettings(state, func(cfg *config.Config) {
				if r, err := strconv.ParseUint(referenceEntry.Text, 10, 16); err == nil {
					cfg.Mock.ReferenceRaw = uint16(r)
				}
				if n, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil {
					cfg.Mock.Noise = n
				}
				if t, err := strconv.ParseFloat(dieTempEntry.Text, 32); err == nil {
					cfg.Mock.DieTempC = float32(t)
				}
				if n, err := strconv.Atoi(failEveryEntry.Text); err == nil {
					cfg.Mock.FailEvery = n
				}
				if d, err := time.ParseDuration(latencyEntry.Text); err == nil {
					cfg.Mock.Latency = d
				}
			})
		},
	}

	return container.NewTabItem("Mock", form)
}
