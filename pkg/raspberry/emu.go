package raspberry

import (
	"fmt"
	"sync"
	"time"

	"v543/pkg/port"
)

// EmuChip is a software gpio chip.
// Its lines keep their driven level and can be connected to an emulated device
// with OnChange (outputs) and Source (inputs).
type EmuChip struct {
	start time.Time

	mu        sync.Mutex
	lines     map[int]*EmuLine
	requested map[int]bool
}

// EmuLine is a single line of an emulated chip.
type EmuLine struct {
	gpio int

	mu       sync.Mutex
	value    int
	onChange func(int)
	source   func() int
	c        chan port.Event
	start    time.Time
}

// NewEmuChip creates an emulated chip.
func NewEmuChip() *EmuChip {
	return &EmuChip{
		start:     time.Now(),
		lines:     map[int]*EmuLine{},
		requested: map[int]bool{},
	}
}

// Line returns the emulated line of the gpio, it is created on first use.
func (c *EmuChip) Line(gpio int) *EmuLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.lines[gpio]
	if !ok {
		l = &EmuLine{gpio: gpio, start: c.start}
		c.lines[gpio] = l
	}
	return l
}

func (c *EmuChip) request(gpio int) (*EmuLine, error) {
	c.mu.Lock()
	used := c.requested[gpio]
	c.requested[gpio] = true
	c.mu.Unlock()

	if used {
		return nil, fmt.Errorf("%w: %v", ErrPinUsed, gpio)
	}
	return c.Line(gpio), nil
}

func checkTerminator(terminator string) error {
	switch terminator {
	case PullUp, PullDown, PullNone, "":
		return nil
	default:
		return fmt.Errorf("%w: terminator %q", ErrInvalidParam, terminator)
	}
}

// NewInput requests the emulated line as input.
func (c *EmuChip) NewInput(gpio int, terminator string) (Input, error) {
	if err := checkTerminator(terminator); err != nil {
		return nil, err
	}
	return c.request(gpio)
}

// NewOutput requests the emulated line as output.
func (c *EmuChip) NewOutput(gpio int, value int) (Output, error) {
	l, err := c.request(gpio)
	if err != nil {
		return nil, err
	}
	return l, l.SetValue(value)
}

// WatchRising requests the emulated line as edge source, see EmuEdge.
func (c *EmuChip) WatchRising(gpio int, terminator string) (<-chan port.Event, error) {
	if err := checkTerminator(terminator); err != nil {
		return nil, err
	}

	l, err := c.request(gpio)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.c = make(chan port.Event, 1)
	return l.c, nil
}

// Close closes the edge channels of all watched lines.
func (c *EmuChip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range c.lines {
		l.mu.Lock()
		if l.c != nil {
			close(l.c)
			l.c = nil
		}
		l.mu.Unlock()
	}
	c.requested = map[int]bool{}
	return nil
}

// Pin returns the gpio number that this line represents.
func (l *EmuLine) Pin() int {
	return l.gpio
}

// Value returns the level of the line, read from the source if one is connected.
func (l *EmuLine) Value() (int, error) {
	l.mu.Lock()
	source := l.source
	v := l.value
	l.mu.Unlock()

	if source != nil {
		return source(), nil
	}
	return v, nil
}

// SetValue drives the line and notifies the connected device.
func (l *EmuLine) SetValue(v int) error {
	if v != port.Low {
		v = port.High
	}

	l.mu.Lock()
	l.value = v
	onChange := l.onChange
	l.mu.Unlock()

	if onChange != nil {
		onChange(v)
	}
	return nil
}

// OnChange connects f to the line, f is called with every driven level.
func (l *EmuLine) OnChange(f func(int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = f
}

// Source connects f to the line, Value returns the result of f.
func (l *EmuLine) Source(f func() int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.source = f
}

// EmuEdge emulates a rising edge on a watched line.
// It reports false if the line isn't watched or the previous edge isn't consumed.
func (l *EmuLine) EmuEdge() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.c == nil {
		return false
	}
	return send(l.c, port.Event{Offset: l.gpio, Timestamp: time.Since(l.start), Type: port.RisingEdge})
}
