package app

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandleData returns the most recent reading of the instrument.
// output example:
//  {"TimeStamp":"2022-04-02T10:00:00Z","Mode":4,"ModeLabel":"DC","Range":1,"RangeLabel":"1V",
//   "Polarity":1,"Display":"00001","Raw":"01120001","Value":-0.0001,"Unit":"V"}
func (app *App) HandleData() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request data")

		return ctx.JSON(newReadingData(app.meter.Reading()))
	}
}

// scpiWait limits the wait of a web request for the SCPI server.
var scpiWait = 2 * time.Second

// HandleSCPI answers the SCPI command of the query parameter cmd,
// e.g. /scpi?cmd=:measure:voltage:dc?
// The command waits for the running SCPI session, if the session isn't ended
// within scpiWait the request fails with 503.
func (app *App) HandleSCPI() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		cmd := ctx.Query("cmd")
		debug.InfoLog.Printf("web request scpi %q", cmd)

		c, cancel := context.WithTimeout(context.Background(), scpiWait)
		defer cancel()

		resp, err := app.scpi.Do(c, cmd)
		switch {
		case err != nil:
			debug.DebugLog.Printf("web request scpi %q: %v", cmd, err)
			return ctx.SendStatus(fiber.StatusServiceUnavailable)
		case resp.Exit:
			// the exit command is reserved to the SCPI port
			return ctx.SendStatus(fiber.StatusForbidden)
		}
		return ctx.SendString(resp.Text)
	}
}
