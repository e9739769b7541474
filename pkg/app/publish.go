package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/womat/debug"

	"v543/pkg/mqtt"
	"v543/pkg/v543"
)

// readingData is the json representation of a reading (web service and mqtt).
type readingData struct {
	TimeStamp  time.Time
	Mode       uint8
	ModeLabel  string
	Range      uint8
	RangeLabel string
	Polarity   uint8
	Display    string
	Raw        string
	Value      float64
	Unit       string
}

func newReadingData(r v543.Reading) readingData {
	d := readingData{
		TimeStamp:  r.Time,
		Mode:       uint8(r.Mode),
		ModeLabel:  r.Mode.String(),
		Range:      uint8(r.Range),
		RangeLabel: "error",
		Polarity:   uint8(r.Polarity),
		Display:    fmt.Sprintf("%05X", r.Display),
		Raw:        fmt.Sprintf("%08X", r.Raw),
	}

	switch {
	case r.Mode.Voltage():
		d.RangeLabel = r.VoltageRange().Label
	case r.Mode == v543.ModeResistance:
		d.RangeLabel = r.ResistanceRange().Label
	}
	d.Value, d.Unit = r.Value()
	return d
}

// publish sends the readings to the mqtt broker.
// A reading is sent if the mqtt interval is exceeded or the mode or range has changed.
func (app *App) publish(ctx context.Context) error {
	if app.config.MQTT.Connection == "" {
		debug.InfoLog.Print("no mqtt broker configured, readings aren't published")
		return nil
	}

	c := app.meter.Subscribe()
	defer app.meter.Unsubscribe(c)

	var last v543.Reading
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-c:
			if !changed(last, r, app.config.MQTT.Interval) {
				continue
			}
			last = r
			app.sendMQTT(app.config.MQTT.Topic, newReadingData(r))
		}
	}
}

// changed reports whether r has to be published after last.
func changed(last, r v543.Reading, interval time.Duration) bool {
	return last.Time.IsZero() ||
		r.Mode != last.Mode ||
		r.Range != last.Range ||
		r.Time.Sub(last.Time) >= interval
}

// sendMQTT sends the message struct to the mqtt broker.
func (app *App) sendMQTT(topic string, message interface{}) {
	debug.TraceLog.Printf("prepare mqtt message %v %v", topic, message)

	b, err := json.MarshalIndent(message, "", "  ")
	if err != nil {
		debug.ErrorLog.Printf("sendMQTT marshal: %v", err)
		return
	}

	app.mqtt.C <- mqtt.Message{
		Qos:      0,
		Retained: true,
		Topic:    topic,
		Payload:  b,
	}
}
