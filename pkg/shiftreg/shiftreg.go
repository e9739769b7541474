// Package shiftreg reads the display register of the V543 over three gpio lines.
package shiftreg

import (
	"fmt"

	"v543/pkg/port"
	"v543/pkg/raspberry"
)

const (
	// Bits is the number of clock pulses of one transfer.
	Bits = 32
	// Mask keeps the significant bits of a transfer.
	Mask = 0x03FFFFFF
)

// Reader is the handler of the shift register transfer.
type Reader struct {
	load  raspberry.Output
	clock raspberry.Output
	data  raspberry.Input
}

// New initials a new shift register reader.
func New(load, clock raspberry.Output, data raspberry.Input) *Reader {
	return &Reader{load: load, clock: clock, data: data}
}

// Read transfers one frame:
//  * a low-high pulse on load latches the display into the shift register
//  * 32 clock pulses shift the register out, the data line is sampled before
//    each rising clock edge, most significant bit first
// There is no handshake, if the instrument isn't ready the bits are garbage.
func (r *Reader) Read() (uint32, error) {
	var frame uint32

	if err := r.load.SetValue(port.Low); err != nil {
		return 0, fmt.Errorf("could not pulse load line: %w", err)
	}
	if err := r.load.SetValue(port.High); err != nil {
		return 0, fmt.Errorf("could not pulse load line: %w", err)
	}
	if err := r.clock.SetValue(port.Low); err != nil {
		return 0, fmt.Errorf("could not drive clock line: %w", err)
	}

	for n := Bits - 1; n >= 0; n-- {
		v, err := r.data.Value()
		if err != nil {
			return 0, fmt.Errorf("could not sample data bit %d: %w", n, err)
		}
		if v != port.Low {
			frame |= 1 << uint(n)
		}

		if err = r.clock.SetValue(port.High); err != nil {
			return 0, fmt.Errorf("could not drive clock line: %w", err)
		}
		if err = r.clock.SetValue(port.Low); err != nil {
			return 0, fmt.Errorf("could not drive clock line: %w", err)
		}
	}

	return frame & Mask, nil
}
