package v543

import (
	"context"
	"sync"
	"time"

	"github.com/womat/debug"
	"v543/pkg/port"
	"v543/pkg/raspberry"
)

// Simulator emulates the display register of a V543 on emulated gpio lines.
// It latches the frame on the rising edge of load and shifts it out, most
// significant bit first, on every rising edge of clock.
type Simulator struct {
	ready *raspberry.EmuLine

	mu    sync.Mutex
	frame uint32
	shift uint32
	load  int
	clock int
}

// NewSimulator connects a simulated instrument to the emulated lines.
func NewSimulator(ready, load, clock, data *raspberry.EmuLine) *Simulator {
	s := &Simulator{ready: ready, load: -1, clock: -1}

	load.OnChange(s.onLoad)
	clock.OnChange(s.onClock)
	data.Source(s.data)
	return s
}

// SetFrame sets the frame latched by the next load pulse.
func (s *Simulator) SetFrame(frame uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
}

// Frame returns the frame latched by the next load pulse.
func (s *Simulator) Frame() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Trigger signals data ready, it reports false if the previous edge wasn't consumed.
func (s *Simulator) Trigger() bool {
	return s.ready.EmuEdge()
}

// Run triggers data ready with the given interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	debug.InfoLog.Printf("V543 simulator started, frame %08X every %v", s.Frame(), interval)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if !s.Trigger() {
				debug.TraceLog.Print("simulator: data ready edge not consumed")
			}
		}
	}
}

func (s *Simulator) onLoad(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.load == port.Low && v == port.High {
		s.shift = s.frame
	}
	s.load = v
}

func (s *Simulator) onClock(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clock == port.Low && v == port.High {
		s.shift <<= 1
	}
	s.clock = v
}

func (s *Simulator) data() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.shift>>31) & 1
}
