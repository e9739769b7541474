package app

import (
	"context"
	"errors"

	"github.com/womat/debug"

	"v543/pkg/scpi"
)

// initSCPI creates the command interpreter and listens on the SCPI port.
func (app *App) initSCPI() error {
	cfg := app.config.SCPI

	rev, err := scpi.ParseRevision(cfg.Revision)
	if err != nil {
		return err
	}

	app.interpreter = scpi.New(app.meter,
		scpi.WithRevision(rev),
		scpi.WithIdentity(app.config.Identity),
		scpi.WithLamp(app.ledSCPI),
	)

	app.scpi, err = scpi.NewServer(cfg.Listen, app.interpreter,
		scpi.WithOneShot(rev.OneShot()),
		scpi.WithMaxLine(cfg.MaxLine),
		scpi.WithReadTimeout(cfg.Timeout),
	)
	if err != nil {
		return err
	}

	debug.InfoLog.Printf("SCPI revision %s, %d commands", rev, len(app.interpreter.Commands()))
	return nil
}

// serveSCPI serves SCPI sessions until ctx is done.
// An exit request of a client stops the application.
func (app *App) serveSCPI(ctx context.Context) error {
	err := app.scpi.Serve(ctx)
	switch {
	case errors.Is(err, scpi.ErrServerClosed):
		return nil
	case errors.Is(err, scpi.ErrExitRequested):
		debug.InfoLog.Print("SCPI client requested exit")
		return err
	default:
		return err
	}
}
