package app

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/womat/debug"
	"golang.org/x/sync/errgroup"

	"v543/pkg/app/config"
	"v543/pkg/lamp"
	"v543/pkg/mqtt"
	"v543/pkg/port"
	"v543/pkg/raspberry"
	"v543/pkg/scpi"
	"v543/pkg/v543"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:4000/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// chip is the gpio driver of the instrument lines
	chip raspberry.Chip
	// events are the data ready edges of the instrument
	events <-chan port.Event
	// simulator emulates the instrument, only with the emulated gpio driver
	simulator *v543.Simulator

	// meter holds the most recent reading
	meter       *v543.Meter
	acquisition *v543.Acquisition
	ledReady    *lamp.Lamp
	ledSCPI     *lamp.Lamp

	interpreter *scpi.Interpreter
	scpi        *scpi.Server

	// registry holds the prometheus metrics of the gateway
	registry *prometheus.Registry

	start  time.Time
	cancel context.CancelFunc
	group  *errgroup.Group

	// restart signals application restart
	restart chan struct{}
	// shutdown signals application shutdown
	shutdown     chan struct{}
	shutdownOnce sync.Once
	closeOnce    sync.Once
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    config,
		urlParsed: u,

		web:      fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:     mqtt.New(config.MQTT.ClientID),
		meter:    v543.NewMeter(),
		registry: prometheus.NewRegistry(),

		start:    time.Now(),
		restart:  make(chan struct{}),
		shutdown: make(chan struct{}),
	}, err
}

// Run starts the application.
// The services run in the background until Close, a failing service or an exit
// request of a SCPI client closes the Shutdown channel.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.group, ctx = errgroup.WithContext(ctx)

	go app.mqtt.Service()
	go app.runWebServer()

	app.group.Go(func() error { return app.acquisition.Run(ctx, app.events) })
	app.group.Go(func() error { return app.serveSCPI(ctx) })
	app.group.Go(func() error { return app.publish(ctx) })
	if app.simulator != nil {
		app.group.Go(func() error { return app.simulator.Run(ctx, app.config.Emulator.Interval) })
	}

	go func() {
		if err := app.group.Wait(); err != nil {
			debug.ErrorLog.Printf("stopping app: %v", err)
		}
		app.signalShutdown()
	}()

	return nil
}

// init initializes the application.
func (app *App) init() (err error) {
	if err = app.initGpio(); err != nil {
		debug.ErrorLog.Printf("can't open gpio: %v", err)
		return err
	}

	if err = app.initSCPI(); err != nil {
		debug.ErrorLog.Printf("can't start scpi server: %v", err)
		return err
	}

	if err = app.mqtt.Connect(app.config.MQTT.Connection); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	if err = app.initMetrics(); err != nil {
		debug.ErrorLog.Printf("can't register metrics %v", err)
		return err
	}

	// initDefaultRoutes should be always called last because it may access things like app.meter
	// which must be initialized before
	app.initDefaultRoutes()

	return nil
}

func (app *App) signalShutdown() {
	app.shutdownOnce.Do(func() { close(app.shutdown) })
}

// Restart returns the read only restart channel.
// Restart is used to be able to react on application restart. (see cmd/v543)
func (app *App) Restart() <-chan struct{} {
	return app.restart
}

// Shutdown returns the read only shutdown channel.
// Shutdown is used to be able to react on application shutdown. (see cmd/v543)
func (app *App) Shutdown() <-chan struct{} {
	return app.shutdown
}

// Close stops the services and releases the gpio lines.
// Only the first call has an effect.
func (app *App) Close() error {
	app.closeOnce.Do(app.close)
	return nil
}

func (app *App) close() {
	if app.cancel != nil {
		app.cancel()
	}
	if app.scpi != nil {
		_ = app.scpi.Close()
	}
	if app.group != nil {
		if err := app.group.Wait(); err != nil && !errors.Is(err, scpi.ErrExitRequested) {
			debug.DebugLog.Printf("service stopped with %v", err)
		}
	}
	if app.web != nil {
		_ = app.web.Shutdown()
	}
	if app.mqtt != nil {
		_ = app.mqtt.Close()
	}
	if app.chip != nil {
		_ = app.chip.Close()
	}
}
