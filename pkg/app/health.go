package app

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// HandleHealth returns data about the health of myself and of the acquisition.
// output example:
//  {"NumGoroutines":11,"HeapAllocated":"332 MB","SysMemory":"360 MB","Version":"1.0.00+20221001",
//   "Uptime":"3 hours ago","Acquisitions":1024,"AcquisitionErrors":0,"LastReading":"2 seconds ago"}
func (app *App) HandleHealth() fiber.Handler {
	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		lastReading := "never"
		if r := app.meter.Reading(); !r.Time.IsZero() {
			lastReading = humanize.Time(r.Time)
		}

		healthData := struct {
			NumGoroutines      int
			NumCPU             int
			HeapAllocatedBytes uint64
			HeapAllocated      string
			SysMemoryBytes     uint64
			SysMemory          string
			Version            string
			ProgLang           string
			HostName           string
			Time               string
			Uptime             string
			Acquisitions       uint64
			AcquisitionErrors  uint64
			LastReading        string
			SCPISessions       uint64
			SCPICommands       uint64
			MQTTConnected      bool
		}{
			NumGoroutines:      runtime.NumGoroutine(),
			NumCPU:             runtime.NumCPU(),
			HeapAllocatedBytes: m.Alloc,
			HeapAllocated:      humanize.Bytes(m.Alloc),
			SysMemoryBytes:     m.Sys,
			SysMemory:          humanize.Bytes(m.Sys),
			ProgLang:           runtime.Version(),
			Version:            VERSION,
			HostName:           host,
			Time:               time.Now().Format(time.RFC3339),
			Uptime:             humanize.Time(app.start),
			Acquisitions:       app.acquisition.Count(),
			AcquisitionErrors:  app.acquisition.Errors(),
			LastReading:        lastReading,
			SCPISessions:       app.scpi.Sessions(),
			SCPICommands:       app.scpi.Commands(),
			MQTTConnected:      app.mqtt.Connected(),
		}
		ctx.Status(http.StatusOK)
		return ctx.JSON(healthData)
	}
}
