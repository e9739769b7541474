package raspberry

import (
	"fmt"
	"sync"

	"github.com/warthog618/gpiod"
	"github.com/womat/debug"
	"v543/pkg/port"
)

// GpiodChip represents a single GPIO chip that controls a set of lines.
type GpiodChip struct {
	gpiodChip *gpiod.Chip

	mu     sync.Mutex
	lines  map[int]*gpiod.Line
	events []chan port.Event
}

// OpenGpiod opens a GPIO character device, e.g. gpiochip0.
func OpenGpiod(name string) (*GpiodChip, error) {
	c, err := gpiod.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("could not open gpio chip %q: %w", name, err)
	}
	return &GpiodChip{gpiodChip: c, lines: map[int]*gpiod.Line{}}, nil
}

func biasOption(terminator string) (gpiod.LineReqOption, error) {
	switch terminator {
	case PullUp:
		return gpiod.WithPullUp, nil
	case PullDown:
		return gpiod.WithPullDown, nil
	case PullNone, "":
		return gpiod.WithBiasDisabled, nil
	default:
		return nil, fmt.Errorf("%w: terminator %q", ErrInvalidParam, terminator)
	}
}

func (c *GpiodChip) request(gpio int, options ...gpiod.LineReqOption) (*gpiod.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lines[gpio]; ok {
		return nil, fmt.Errorf("%w: %v", ErrPinUsed, gpio)
	}

	l, err := c.gpiodChip.RequestLine(gpio, options...)
	if err != nil {
		return nil, fmt.Errorf("could not request line %v: %w", gpio, err)
	}

	c.lines[gpio] = l
	return l, nil
}

// NewInput requests control of a single input line.
func (c *GpiodChip) NewInput(gpio int, terminator string) (Input, error) {
	bias, err := biasOption(terminator)
	if err != nil {
		return nil, err
	}
	return c.request(gpio, gpiod.AsInput, bias)
}

// NewOutput requests control of a single output line.
func (c *GpiodChip) NewOutput(gpio int, value int) (Output, error) {
	return c.request(gpio, gpiod.AsOutput(value))
}

// WatchRising watches the line for rising edges.
// The gpiod event handler runs in the watcher goroutine of gpiod, so the edge is
// handed over to channel C and the handler returns immediately.
func (c *GpiodChip) WatchRising(gpio int, terminator string) (<-chan port.Event, error) {
	bias, err := biasOption(terminator)
	if err != nil {
		return nil, err
	}

	ch := make(chan port.Event, 1)
	handler := func(evt gpiod.LineEvent) {
		if evt.Type != gpiod.LineEventRisingEdge {
			return
		}
		if !send(ch, port.Event{Offset: evt.Offset, Timestamp: evt.Timestamp, Type: port.RisingEdge}) {
			debug.TraceLog.Printf("gpio %v: previous edge not consumed, edge dropped", evt.Offset)
		}
	}

	if _, err = c.request(gpio, gpiod.AsInput, bias, gpiod.WithRisingEdge, gpiod.WithEventHandler(handler)); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.events = append(c.events, ch)
	c.mu.Unlock()
	return ch, nil
}

// Close releases all lines and the chip.
//
// Closing a line includes waiting for any running event handler to return.
// As a consequence the Close must not be called from the context of the event
// handler - the Close should be called from a different goroutine.
func (c *GpiodChip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for gpio, l := range c.lines {
		if err := l.Close(); err != nil {
			debug.ErrorLog.Printf("could not close line %v: %v", gpio, err)
		}
	}
	c.lines = map[int]*gpiod.Line{}

	for _, ch := range c.events {
		close(ch)
	}
	c.events = nil

	return c.gpiodChip.Close()
}
