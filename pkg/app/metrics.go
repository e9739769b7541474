package app

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"github.com/womat/debug"
)

const namespace = "v543"

// initMetrics registers the counters of the gateway and the current reading.
// The values are collected on every scrape, nothing is pushed.
func (app *App) initMetrics() error {
	counter := func(name, help string, f func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return float64(f()) })
	}
	gauge := func(name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, f)
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		counter("acquisitions_total", "Number of frames read from the instrument.", app.acquisition.Count),
		counter("acquisition_errors_total", "Number of failed frame transfers.", app.acquisition.Errors),
		counter("scpi_sessions_total", "Number of served SCPI sessions.", app.scpi.Sessions),
		counter("scpi_commands_total", "Number of answered SCPI command lines.", app.interpreter.Handled),
		counter("scpi_unknown_commands_total", "Number of SCPI command lines answered with error.", app.interpreter.Unknown),
		counter("mqtt_published_total", "Number of readings published to the mqtt broker.", app.mqtt.Published),
		gauge("mode", "Mode code of the most recent reading.", func() float64 { return float64(app.meter.Reading().Mode) }),
		gauge("range", "Range code of the most recent reading.", func() float64 { return float64(app.meter.Reading().Range) }),
		gauge("value", "Most recent measured value in V or Ohm.", func() float64 {
			v, _ := app.meter.Reading().Value()
			return v
		}),
		gauge("reading_timestamp_seconds", "Time of the most recent reading.", func() float64 {
			t := app.meter.Reading().Time
			if t.IsZero() {
				return 0
			}
			return float64(t.UnixNano()) / 1e9
		}),
	} {
		if err := app.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// HandleMetrics exposes the prometheus registry.
func (app *App) HandleMetrics() fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	return func(ctx *fiber.Ctx) error {
		debug.TraceLog.Print("web request metrics")

		h(ctx.Context())
		return nil
	}
}
