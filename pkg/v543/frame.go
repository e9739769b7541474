// Package v543 decodes the display register of the Meratronik V543 multimeter
// and keeps the most recent reading.
package v543

import (
	"fmt"
	"strconv"
	"time"
)

// Bit layout of a frame.
const (
	// FrameMask keeps the 26 significant bits of the shift register.
	FrameMask = 0x03FFFFFF
	// DisplayMask keeps the 17 display bits (five digits).
	DisplayMask = 0x1FFFF

	modeShift     = 22
	polarityShift = 20
	rangeShift    = 17
)

// Mode is the measuring function of the instrument (3 bits).
type Mode uint8

const (
	ModeResistance Mode = 1
	ModeAC         Mode = 2
	ModeDC         Mode = 4
)

// String returns the label of the mode, undefined modes are "error".
func (m Mode) String() string {
	switch m {
	case ModeResistance:
		return "R"
	case ModeAC:
		return "AC"
	case ModeDC:
		return "DC"
	default:
		return "error"
	}
}

// Voltage reports whether the mode measures a voltage.
func (m Mode) Voltage() bool {
	return m == ModeAC || m == ModeDC
}

// Range is the 3 bit range code, its meaning depends on the mode.
type Range uint8

// Polarity is the 2 bit sign field, only meaningful in DC mode.
type Polarity uint8

// Negative is the polarity code of a negative DC voltage.
const Negative Polarity = 1

// Reading is one decoded frame. A reading is replaced as a whole, never updated.
type Reading struct {
	// Time is the time of the acquisition, zero for a decoded frame.
	Time     time.Time
	Mode     Mode
	Range    Range
	Polarity Polarity
	// Display holds the raw display bits (low 17 bits of the frame).
	Display uint32
	// Digits is the decimal value of the display, see DisplayDigits.
	Digits uint32
	// Raw is the masked frame.
	Raw uint32
}

// Decode converts a raw shift register frame to a reading.
// Mode and range codes are not validated.
func Decode(raw uint32) Reading {
	raw &= FrameMask
	return Reading{
		Mode:     Mode((raw >> modeShift) & 0x7),
		Range:    Range((raw >> rangeShift) & 0x7),
		Polarity: Polarity((raw >> polarityShift) & 0x3),
		Display:  raw & DisplayMask,
		Digits:   DisplayDigits(raw),
		Raw:      raw,
	}
}

// DisplayDigits returns the value of the five display digits.
// The instrument encodes each digit as a nibble, so the display bits are
// formatted as five hex digits and the text is read back as a decimal number.
// As the firmware does it with atoi, the number ends at the first non decimal
// digit: 1A234 is 1 and A1234 is 0.
func DisplayDigits(raw uint32) uint32 {
	s := fmt.Sprintf("%05X", raw&DisplayMask)

	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0
	}

	v, err := strconv.ParseUint(s[:n], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// Negative reports whether the reading is a negative DC voltage.
func (r Reading) Negative() bool {
	return r.Mode == ModeDC && r.Polarity == Negative
}

// VoltageRange returns the voltage range entry of the reading.
func (r Reading) VoltageRange() RangeEntry {
	return VoltageRange(r.Range)
}

// ResistanceRange returns the resistance range entry of the reading.
func (r Reading) ResistanceRange() RangeEntry {
	return ResistanceRange(r.Range)
}

// Voltage returns the signed voltage of the display in V.
// The value is meaningless if the mode isn't AC or DC.
func (r Reading) Voltage() float64 {
	v := float64(r.Digits) / r.VoltageRange().Scale
	if r.Negative() {
		return -v
	}
	return v
}

// Resistance returns the resistance of the display in Ω.
// The value is meaningless if the mode isn't R.
func (r Reading) Resistance() float64 {
	return float64(r.Digits) / r.ResistanceRange().Scale
}

// Value returns the measured value and its unit according to the mode.
func (r Reading) Value() (float64, string) {
	switch {
	case r.Mode.Voltage():
		return r.Voltage(), "V"
	case r.Mode == ModeResistance:
		return r.Resistance(), "Ω"
	default:
		return 0, ""
	}
}
