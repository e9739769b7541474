package shiftreg

import (
	"errors"
	"fmt"
	"testing"

	"v543/pkg/port"
	"v543/pkg/raspberry"
)

// register emulates a parallel-in serial-out shift register on emulated lines.
type register struct {
	display  uint32
	shift    uint32
	load     int
	clock    int
	loads    int
	clocks   int
	sequence []string
}

func newRegister(chip *raspberry.EmuChip, display uint32) *register {
	r := &register{display: display, load: -1, clock: -1}
	chip.Line(27).OnChange(func(v int) {
		r.sequence = append(r.sequence, fmt.Sprintf("load=%d", v))
		if r.load == port.Low && v == port.High {
			r.shift = r.display
			r.loads++
		}
		r.load = v
	})
	chip.Line(18).OnChange(func(v int) {
		if r.clock == port.Low && v == port.High {
			r.shift <<= 1
			r.clocks++
		}
		r.clock = v
	})
	chip.Line(22).Source(func() int { return int(r.shift>>31) & 1 })
	return r
}

func newReader(t *testing.T, chip *raspberry.EmuChip) *Reader {
	t.Helper()

	load, err := chip.NewOutput(27, port.High)
	if err != nil {
		t.Fatalf("could not request load line: %+v", err)
	}
	clock, err := chip.NewOutput(18, port.High)
	if err != nil {
		t.Fatalf("could not request clock line: %+v", err)
	}
	data, err := chip.NewInput(22, raspberry.PullNone)
	if err != nil {
		t.Fatalf("could not request data line: %+v", err)
	}
	return New(load, clock, data)
}

func TestRead(t *testing.T) {
	for _, tc := range []struct {
		display uint32
		want    uint32
	}{
		{0x00000000, 0x00000000},
		{0x00123ABC, 0x00123ABC},
		{0x01120001, 0x01120001},
		{0xFFFFFFFF, 0x03FFFFFF},
		{0x80000001, 0x00000001},
		{0x03FFFFFF, 0x03FFFFFF},
	} {
		t.Run(fmt.Sprintf("0x%08X", tc.display), func(t *testing.T) {
			chip := raspberry.NewEmuChip()
			reg := newRegister(chip, tc.display)
			r := newReader(t, chip)

			got, err := r.Read()
			if err != nil {
				t.Fatalf("could not read frame: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("got=0x%08X, want=0x%08X", got, tc.want)
			}
			if reg.loads != 1 {
				t.Fatalf("got %d load pulses, want 1", reg.loads)
			}
			if reg.clocks != Bits {
				t.Fatalf("got %d clock pulses, want %d", reg.clocks, Bits)
			}
		})
	}
}

func TestReadLoadStrobe(t *testing.T) {
	chip := raspberry.NewEmuChip()
	reg := newRegister(chip, 0)
	r := newReader(t, chip)
	reg.sequence = nil

	if _, err := r.Read(); err != nil {
		t.Fatalf("could not read frame: %+v", err)
	}

	if got, want := fmt.Sprint(reg.sequence), "[load=0 load=1]"; got != want {
		t.Fatalf("got=%s, want=%s", got, want)
	}
}

type failingInput struct{ err error }

func (in failingInput) Value() (int, error) { return 0, in.err }

func TestReadFailure(t *testing.T) {
	chip := raspberry.NewEmuChip()
	load, _ := chip.NewOutput(27, port.High)
	clock, _ := chip.NewOutput(18, port.High)

	errIO := errors.New("line gone")
	r := New(load, clock, failingInput{err: errIO})

	_, err := r.Read()
	if !errors.Is(err, errIO) {
		t.Fatalf("got=%v, want=%v", err, errIO)
	}
}
