package v543

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/womat/debug"
	"v543/pkg/lamp"
	"v543/pkg/port"
)

// FrameReader transfers one raw frame from the instrument.
type FrameReader interface {
	Read() (uint32, error)
}

// Acquisition reads a frame each time the instrument signals data ready
// and publishes the decoded reading to the meter.
type Acquisition struct {
	reg   FrameReader
	meter *Meter
	ready *lamp.Lamp

	count  uint64
	errors uint64
}

// NewAcquisition initials the acquisition, the ready lamp may be nil.
func NewAcquisition(reg FrameReader, meter *Meter, ready *lamp.Lamp) *Acquisition {
	return &Acquisition{reg: reg, meter: meter, ready: ready}
}

// OnDataReady transfers, decodes and publishes one frame and toggles the ready lamp.
// A failing transfer keeps the previous reading.
func (a *Acquisition) OnDataReady() {
	defer a.ready.Toggle()

	raw, err := a.reg.Read()
	if err != nil {
		atomic.AddUint64(&a.errors, 1)
		debug.ErrorLog.Printf("could not read V543 frame: %v", err)
		return
	}

	r := Decode(raw)
	r.Time = time.Now()
	a.meter.Publish(r)
	atomic.AddUint64(&a.count, 1)

	debug.TraceLog.Printf("frame %08X: mode=%v range=%d polarity=%d display=%05X", r.Raw, r.Mode, r.Range, r.Polarity, r.Display)
}

// Run waits for data ready edges and acquires a frame for each rising edge.
// It returns when ctx is done or the edge channel is closed.
func (a *Acquisition) Run(ctx context.Context, events <-chan port.Event) error {
	debug.InfoLog.Print("acquisition started")
	defer debug.InfoLog.Print("acquisition stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, open := <-events:
			if !open {
				return nil
			}
			if evt.Type != port.RisingEdge {
				continue
			}
			a.OnDataReady()
		}
	}
}

// Count returns the number of published readings.
func (a *Acquisition) Count() uint64 {
	return atomic.LoadUint64(&a.count)
}

// Errors returns the number of failed transfers.
func (a *Acquisition) Errors() uint64 {
	return atomic.LoadUint64(&a.errors)
}
