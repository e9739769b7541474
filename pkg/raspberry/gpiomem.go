package raspberry

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/gpio"
	"github.com/womat/debug"
	"v543/pkg/port"
)

// MemChip drives the raspberry gpio through the memory mapped gpio range.
// It is the fastest driver for the bit banged shift register transfer.
type MemChip struct {
	start time.Time

	mu      sync.Mutex
	pins    map[int]*gpio.Pin
	watched []*gpio.Pin
	events  []chan port.Event
}

// MemPin is a single pin of the memory mapped gpio range.
type MemPin struct {
	pin *gpio.Pin
}

// OpenGpiomem maps the GPIO memory range from /dev/gpiomem.
func OpenGpiomem() (*MemChip, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("could not open gpiomem: %w", err)
	}
	return &MemChip{start: time.Now(), pins: map[int]*gpio.Pin{}}, nil
}

// newPin creates a new pin object.
// The pin number provided is the BCM GPIO number.
func (c *MemChip) newPin(p int) (*gpio.Pin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pins[p]; ok {
		return nil, fmt.Errorf("%w: %v", ErrPinUsed, p)
	}

	pin := gpio.NewPin(p)
	c.pins[p] = pin
	return pin, nil
}

func setPull(pin *gpio.Pin, terminator string) error {
	switch terminator {
	case PullUp:
		pin.PullUp()
	case PullDown:
		pin.PullDown()
	case PullNone, "":
		pin.PullNone()
	default:
		return fmt.Errorf("%w: terminator %q", ErrInvalidParam, terminator)
	}
	return nil
}

// NewInput sets the pin as input.
func (c *MemChip) NewInput(p int, terminator string) (Input, error) {
	pin, err := c.newPin(p)
	if err != nil {
		return nil, err
	}

	pin.Input()
	if err = setPull(pin, terminator); err != nil {
		return nil, err
	}
	return &MemPin{pin: pin}, nil
}

// NewOutput sets the pin as output and drives value.
func (c *MemChip) NewOutput(p int, value int) (Output, error) {
	pin, err := c.newPin(p)
	if err != nil {
		return nil, err
	}

	pin.Output()
	out := &MemPin{pin: pin}
	_ = out.SetValue(value)
	return out, nil
}

// WatchRising watches the pin for rising edges.
// There can only be one watcher on the pin at a time.
func (c *MemChip) WatchRising(p int, terminator string) (<-chan port.Event, error) {
	pin, err := c.newPin(p)
	if err != nil {
		return nil, err
	}

	pin.Input()
	if err = setPull(pin, terminator); err != nil {
		return nil, err
	}

	ch := make(chan port.Event, 1)
	handler := func(g *gpio.Pin) {
		evt := port.Event{Offset: g.Pin(), Timestamp: time.Since(c.start), Type: port.RisingEdge}
		if !send(ch, evt) {
			debug.TraceLog.Printf("gpio %v: previous edge not consumed, edge dropped", g.Pin())
		}
	}

	if err = pin.Watch(gpio.EdgeRising, handler); err != nil {
		return nil, fmt.Errorf("could not watch pin %v: %w", p, err)
	}

	c.mu.Lock()
	c.watched = append(c.watched, pin)
	c.events = append(c.events, ch)
	c.mu.Unlock()
	return ch, nil
}

// Close removes the interrupt handlers and unmaps GPIO memory.
func (c *MemChip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, pin := range c.watched {
		pin.Unwatch()
	}
	c.watched = nil

	for _, ch := range c.events {
		close(ch)
	}
	c.events = nil
	c.pins = map[int]*gpio.Pin{}

	return gpio.Close()
}

// Value reads the pin state (high/low).
func (p *MemPin) Value() (int, error) {
	if p.pin.Read() {
		return port.High, nil
	}
	return port.Low, nil
}

// SetValue drives the pin high (value != 0) or low.
func (p *MemPin) SetValue(value int) error {
	if value == port.Low {
		p.pin.Low()
		return nil
	}
	p.pin.High()
	return nil
}
