package scpi

import (
	"fmt"
	"math"

	"v543/pkg/v543"
)

// Command maps a normalised command line to its handler.
type Command struct {
	Pattern string
	Handler func(r v543.Reading) string
	// Exit requests the session host to stop after the response.
	Exit bool
}

// commands returns the ordered command table of the revision; the first match wins.
func commands(rev Revision, id Identity) []Command {
	if rev == Legacy {
		idn := fmt.Sprintf("%s %s No.%s, SCPI connector, tasza (c) 2018%s", id.Vendor, id.Model, id.Serial, Terminator)
		return []Command{
			{Pattern: "*idn?", Handler: fixed(idn)},
			{Pattern: ":meter:mode?", Handler: mode},
			{Pattern: ":meter:v:range?", Handler: legacyVoltageRange},
			{Pattern: ":meter:r:range?", Handler: legacyResistanceRange},
			{Pattern: ":meter:raw?", Handler: raw},
			{Pattern: ":meter:display?", Handler: legacyDisplay},
			{Pattern: ":debug:exit", Handler: fixed("exit here" + Terminator), Exit: true},
		}
	}

	idn := fmt.Sprintf("%s,%s,%s,%s%s", id.Vendor, id.Model, id.Serial, id.Firmware, Terminator)
	return []Command{
		{Pattern: "*idn?", Handler: fixed(idn)},
		{Pattern: ":measure:voltage:dc?", Handler: measureVoltage},
		{Pattern: ":measure:voltage:ac?", Handler: measureVoltage},
		{Pattern: ":measure:resistance?", Handler: measureResistance},
		{Pattern: ":sense:voltage:dc:range?", Handler: voltageRange},
		{Pattern: ":sense:voltage:ac:range?", Handler: voltageRange},
		{Pattern: ":sense:resistance:range?", Handler: resistanceRange},
		{Pattern: ":sense:function?", Handler: mode},
		{Pattern: ":sense:mode?", Handler: mode},
		{Pattern: ":measure:raw?", Handler: raw},
		{Pattern: ":measure:display?", Handler: display},
		{Pattern: ":system:raw?", Handler: raw},
		{Pattern: ":system:display?", Handler: display},
		{Pattern: ":meter:mode?", Handler: mode},
		{Pattern: ":meter:v:range?", Handler: voltageRange},
		{Pattern: ":meter:r:range?", Handler: resistanceRange},
		{Pattern: ":meter:raw?", Handler: raw},
		{Pattern: ":meter:display?", Handler: display},
		{Pattern: ":syst:err?", Handler: fixed(NoErrorResponse)},
		{Pattern: "syst:err?", Handler: fixed(NoErrorResponse)},
		{Pattern: ":system:error?", Handler: fixed(NoErrorResponse)},
	}
}

func fixed(s string) func(v543.Reading) string {
	return func(v543.Reading) string { return s }
}

func mode(r v543.Reading) string {
	return fmt.Sprintf("%d|%s%s", r.Mode, r.Mode, Terminator)
}

func raw(r v543.Reading) string {
	return fmt.Sprintf("%08X%s", r.Raw, Terminator)
}

func voltageRange(r v543.Reading) string {
	e := r.VoltageRange()
	return fmt.Sprintf("%E|%d|%s%s", e.Nominal, r.Range, e.Label, Terminator)
}

func resistanceRange(r v543.Reading) string {
	e := r.ResistanceRange()
	return fmt.Sprintf("%E|%d|%s%s", e.Nominal, r.Range, e.Label, Terminator)
}

// legacyVoltageScales are the scales reported by the oldest firmware where they
// differ from the range table. Clients of that firmware expect 100 for 100mV.
var legacyVoltageScales = map[v543.Range]int{4: 100}

func legacyVoltageRange(r v543.Reading) string {
	e := r.VoltageRange()
	scale, ok := legacyVoltageScales[r.Range&7]
	if !ok {
		scale = int(e.Scale)
	}
	return fmt.Sprintf("%d|%s|%d%s", r.Range, e.Label, scale, Terminator)
}

func legacyResistanceRange(r v543.Reading) string {
	e := r.ResistanceRange()
	return fmt.Sprintf("%d|%s|%d%s", r.Range, e.Label, int(e.Scale), Terminator)
}

// sign is +/- in DC mode and blank otherwise.
func sign(r v543.Reading) byte {
	switch {
	case r.Mode != v543.ModeDC:
		return ' '
	case r.Negative():
		return '-'
	default:
		return '+'
	}
}

func display(r v543.Reading) string {
	s := sign(r)
	if r.Mode == v543.ModeAC {
		s = '~'
	}
	return fmt.Sprintf("%c%05X%s", s, r.Display, Terminator)
}

func legacyDisplay(r v543.Reading) string {
	return fmt.Sprintf("%c%05X%s", sign(r), r.Display, Terminator)
}

func measureVoltage(r v543.Reading) string {
	switch r.Mode {
	case v543.ModeDC:
		return fmt.Sprintf("%c%E%s", sign(r), math.Abs(r.Voltage()), Terminator)
	case v543.ModeAC:
		return fmt.Sprintf("%E%s", r.Voltage(), Terminator)
	default:
		return WrongModeResponse
	}
}

func measureResistance(r v543.Reading) string {
	if r.Mode != v543.ModeResistance {
		return WrongModeResponse
	}
	return fmt.Sprintf("%E%s", r.Resistance(), Terminator)
}
