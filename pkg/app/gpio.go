package app

import (
	"fmt"

	"github.com/womat/debug"

	"v543/pkg/lamp"
	"v543/pkg/port"
	"v543/pkg/raspberry"
	"v543/pkg/shiftreg"
	"v543/pkg/v543"
)

// initGpio opens the gpio driver, requests the instrument lines and the lamps
// and wires the acquisition. With the emulated driver a simulated instrument
// is connected to the lines.
func (app *App) initGpio() (err error) {
	cfg := app.config.Gpio

	if app.chip, err = raspberry.Open(cfg.Driver, cfg.Chip); err != nil {
		return err
	}

	if emu, ok := app.chip.(*raspberry.EmuChip); ok {
		app.simulator = v543.NewSimulator(emu.Line(cfg.Ready), emu.Line(cfg.Load), emu.Line(cfg.Clock), emu.Line(cfg.Data))
		app.simulator.SetFrame(app.config.Emulator.Frame)
		debug.InfoLog.Printf("using emulated V543, frame %08X", app.config.Emulator.Frame)
	}

	load, err := app.chip.NewOutput(cfg.Load, port.High)
	if err != nil {
		return fmt.Errorf("could not request load line %d: %w", cfg.Load, err)
	}
	clock, err := app.chip.NewOutput(cfg.Clock, port.High)
	if err != nil {
		return fmt.Errorf("could not request clock line %d: %w", cfg.Clock, err)
	}
	data, err := app.chip.NewInput(cfg.Data, cfg.Terminator)
	if err != nil {
		return fmt.Errorf("could not request data line %d: %w", cfg.Data, err)
	}

	ledReady, err := app.chip.NewOutput(cfg.LedReady, port.Low)
	if err != nil {
		return fmt.Errorf("could not request ready lamp %d: %w", cfg.LedReady, err)
	}
	ledSCPI, err := app.chip.NewOutput(cfg.LedSCPI, port.Low)
	if err != nil {
		return fmt.Errorf("could not request scpi lamp %d: %w", cfg.LedSCPI, err)
	}
	app.ledReady = lamp.New("ready", ledReady)
	app.ledSCPI = lamp.New("scpi", ledSCPI)

	if app.events, err = app.chip.WatchRising(cfg.Ready, cfg.Terminator); err != nil {
		return fmt.Errorf("could not watch data ready line %d: %w", cfg.Ready, err)
	}

	app.acquisition = v543.NewAcquisition(shiftreg.New(load, clock, data), app.meter, app.ledReady)
	debug.InfoLog.Printf("%s gpio driver ready: ready=%d load=%d clock=%d data=%d", cfg.Driver, cfg.Ready, cfg.Load, cfg.Clock, cfg.Data)
	return nil
}
