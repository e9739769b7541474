package scpi

import (
	"fmt"
	"testing"

	"v543/pkg/lamp"
	"v543/pkg/port"
	"v543/pkg/raspberry"
	"v543/pkg/v543"
)

type frame uint32

func (f frame) Reading() v543.Reading { return v543.Decode(uint32(f)) }

func TestHandleLXI(t *testing.T) {
	for _, tc := range []struct {
		raw  frame
		cmd  string
		want string
	}{
		{0x01120001, "*idn?", "Meratronik,V543,01473,666-tasza-2018\n"},
		{0x01120001, ":measure:voltage:dc?", "-1.000000E-04\n"},
		{0x01120001, ":measure:voltage:ac?", "-1.000000E-04\n"},
		{0x01120001, ":measure:resistance?", "error: wrong mode\n"},
		{0x01120001, ":meter:mode?", "4|DC\n"},
		{0x01120001, ":sense:function?", "4|DC\n"},
		{0x01120001, ":meter:v:range?", "1.000000E+00|1|1V\n"},
		{0x01080000, ":meter:v:range?", "1.000000E-01|4|100mV\n"},
		{0x01120001, ":sense:voltage:dc:range?", "1.000000E+00|1|1V\n"},
		{0x01120001, ":meter:display?", "-00001\n"},
		{0x01120001, ":meter:raw?", "01120001\n"},
		{0x01020001, ":measure:voltage:dc?", "+1.000000E-04\n"},
		{0x01020001, ":system:display?", "+00001\n"},
		{0x00812345, ":measure:voltage:ac?", "1.234500E+02\n"},
		{0x00812345, ":measure:display?", "~12345\n"},
		{0x00812345, ":sense:voltage:ac:range?", "1.000000E+02|0|100V\n"},
		{0x00812345, ":sense:mode?", "2|AC\n"},
		{0x00469999, ":measure:resistance?", "9.999000E+00\n"},
		{0x00469999, ":measure:voltage:dc?", "error: wrong mode\n"},
		{0x00469999, ":meter:r:range?", "1.000000E+04|3|10kΩ\n"},
		{0x00469999, ":sense:resistance:range?", "1.000000E+04|3|10kΩ\n"},
		{0x00469999, ":meter:display?", " 09999\n"},
		{0x00123ABC, ":measure:raw?", "00123ABC\n"},
		{0x00123ABC, ":system:raw?", "00123ABC\n"},
		{0x00123ABC, ":meter:mode?", "0|error\n"},
		{0x00123ABC, ":measure:voltage:dc?", "error: wrong mode\n"},
		{0x00123ABC, ":measure:resistance?", "error: wrong mode\n"},
		{0x00CC0000, ":meter:v:range?", "0.000000E+00|6|error\n"},
		{0x00123ABC, ":syst:err?", "0,\"No error\"\n"},
		{0x00123ABC, "syst:err?", "0,\"No error\"\n"},
		{0x00123ABC, ":system:error?", "0,\"No error\"\n"},
		{0x00123ABC, ":debug:exit", "error\n"},
		{0x00123ABC, "", "error\n"},
		{0x00123ABC, "*idn", "error\n"},
		{0x00123ABC, ":measure:raw? extra", "error\n"},
	} {
		t.Run(fmt.Sprintf("%08X %s", uint32(tc.raw), tc.cmd), func(t *testing.T) {
			resp := New(tc.raw).Handle(tc.cmd)
			if resp.Text != tc.want {
				t.Fatalf("got=%q, want=%q", resp.Text, tc.want)
			}
			if resp.Exit {
				t.Fatalf("unexpected exit request")
			}
		})
	}
}

func TestHandleLegacy(t *testing.T) {
	for _, tc := range []struct {
		raw  frame
		cmd  string
		want string
		exit bool
	}{
		{0x01120001, "*idn?", "Meratronik V543 No.01473, SCPI connector, tasza (c) 2018\n", false},
		{0x01120001, ":meter:mode?", "4|DC\n", false},
		{0x01120001, ":meter:v:range?", "1|1V|10000\n", false},
		{0x01080000, ":meter:v:range?", "4|100mV|100\n", false},
		{0x00800000, ":meter:v:range?", "0|100V|100\n", false},
		{0x01120001, ":meter:display?", "-00001\n", false},
		{0x01120001, ":meter:raw?", "01120001\n", false},
		{0x00812345, ":meter:display?", " 12345\n", false},
		{0x00469999, ":meter:r:range?", "3|10kΩ|1000\n", false},
		{0x00440000, ":meter:r:range?", "2|error|1\n", false},
		{0x01120001, ":measure:voltage:dc?", "error\n", false},
		{0x01120001, ":syst:err?", "error\n", false},
		{0x01120001, ":debug:exit", "exit here\n", true},
		{0x01120001, " :DEBUG:EXIT\r\n", "exit here\n", true},
	} {
		t.Run(fmt.Sprintf("%08X %s", uint32(tc.raw), tc.cmd), func(t *testing.T) {
			resp := New(tc.raw, WithRevision(Legacy)).Handle(tc.cmd)
			if resp.Text != tc.want {
				t.Fatalf("got=%q, want=%q", resp.Text, tc.want)
			}
			if resp.Exit != tc.exit {
				t.Fatalf("got exit=%v, want=%v", resp.Exit, tc.exit)
			}
		})
	}
}

func TestHandleNormalization(t *testing.T) {
	i := New(frame(0x01120001))
	want := i.Handle("*idn?").Text

	for _, cmd := range []string{"*IDN?", " *idn?\r\n", "\t*Idn?  ", "*idn?\n"} {
		if got := i.Handle(cmd).Text; got != want {
			t.Fatalf("%q: got=%q, want=%q", cmd, got, want)
		}
	}
}

func TestHandleIdempotent(t *testing.T) {
	i := New(frame(0x01120001))
	for _, cmd := range []string{":meter:raw?", "bogus", ":measure:voltage:dc?", ":syst:err?", ":syst:err?"} {
		i.Handle(cmd)
		if got, want := i.Handle(":syst:err?").Text, "0,\"No error\"\n"; got != want {
			t.Fatalf("after %q: got=%q, want=%q", cmd, got, want)
		}
	}
}

func TestHandleIdentity(t *testing.T) {
	id := Identity{Vendor: "ACME", Model: "X1", Serial: "42", Firmware: "1.0"}

	if got, want := New(frame(0), WithIdentity(id)).Handle("*idn?").Text, "ACME,X1,42,1.0\n"; got != want {
		t.Fatalf("got=%q, want=%q", got, want)
	}
	if got, want := New(frame(0), WithIdentity(id), WithRevision(Legacy)).Handle("*idn?").Text, "ACME X1 No.42, SCPI connector, tasza (c) 2018\n"; got != want {
		t.Fatalf("got=%q, want=%q", got, want)
	}
}

func TestHandleLamp(t *testing.T) {
	chip := raspberry.NewEmuChip()
	out, err := chip.NewOutput(24, port.Low)
	if err != nil {
		t.Fatalf("could not request lamp line: %+v", err)
	}

	var levels []int
	chip.Line(24).OnChange(func(v int) { levels = append(levels, v) })

	i := New(frame(0), WithLamp(lamp.New("scpi", out)))
	for _, cmd := range []string{"*idn?", "unknown", ":meter:raw?"} {
		i.Handle(cmd)
	}

	if got, want := fmt.Sprint(levels), "[0 1 0]"; got != want {
		t.Fatalf("got=%s, want=%s", got, want)
	}
	if i.Handled() != 3 || i.Unknown() != 1 {
		t.Fatalf("got handled=%d unknown=%d, want 3 and 1", i.Handled(), i.Unknown())
	}
}

func TestParseRevision(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Revision
		err  bool
	}{
		{"lxi", LXI, false},
		{"LXI", LXI, false},
		{"legacy", Legacy, false},
		{"", LXI, false},
		{"v2", "", true},
	} {
		got, err := ParseRevision(tc.in)
		if (err != nil) != tc.err {
			t.Fatalf("%q: got err=%v, want err=%v", tc.in, err, tc.err)
		}
		if got != tc.want {
			t.Fatalf("%q: got=%q, want=%q", tc.in, got, tc.want)
		}
	}
}
