// Package raspberry holds the gpio drivers to talk to the V543 shift register.
//
// Three drivers are available:
//  * gpiod:    the gpio character device (/dev/gpiochipN)
//  * gpiomem:  the memory mapped gpio range of the raspberry (/dev/gpiomem)
//  * emulated: software lines, used for tests and for running without a raspberry
package raspberry

import (
	"errors"
	"fmt"

	"v543/pkg/port"
)

var (
	ErrInvalidParam = fmt.Errorf("invalid parameters")
	ErrPinUsed      = errors.New("pin already used")
)

// Supported driver names.
const (
	DriverGpiod    = "gpiod"
	DriverGpiomem  = "gpiomem"
	DriverEmulated = "emulated"
)

// Supported line terminators (bias).
const (
	PullUp   = "pullup"
	PullDown = "pulldown"
	PullNone = "none"
)

// Input is a line which can be sampled.
type Input interface {
	Value() (int, error)
}

// Output is a line which can be driven.
type Output interface {
	SetValue(int) error
}

// Chip is implemented by the gpio drivers.
type Chip interface {
	// NewInput requests a line as input with the given terminator (pullup|pulldown|none).
	NewInput(gpio int, terminator string) (Input, error)
	// NewOutput requests a line as output and drives the initial value.
	NewOutput(gpio int, value int) (Output, error)
	// WatchRising requests a line as input and sends every rising edge to the returned channel.
	// Edges are dropped while the previous edge is not yet consumed.
	WatchRising(gpio int, terminator string) (<-chan port.Event, error)
	// Close releases all requested lines and the chip.
	Close() error
}

// Open opens the chip of the given driver.
// The chip name is only used by the gpiod driver, e.g. gpiochip0.
func Open(driver, chip string) (Chip, error) {
	switch driver {
	case DriverGpiod:
		return OpenGpiod(chip)
	case DriverGpiomem:
		return OpenGpiomem()
	case DriverEmulated:
		return NewEmuChip(), nil
	default:
		return nil, fmt.Errorf("%w: unknown gpio driver %q", ErrInvalidParam, driver)
	}
}

// send forwards an edge without blocking the interrupt context.
func send(c chan port.Event, evt port.Event) bool {
	select {
	case c <- evt:
		return true
	default:
		return false
	}
}
