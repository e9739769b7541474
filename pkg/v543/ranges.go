package v543

// RangeEntry describes one measuring range of the V543.
type RangeEntry struct {
	// Label is the display name of the range, e.g. 10V.
	Label string
	// Nominal is the nominal full scale value in V or Ω.
	Nominal float64
	// Scale converts the display digits to the measured value (digits / Scale).
	Scale float64
}

// errorRange is the placeholder for range codes the instrument doesn't define.
// The scale of 1 keeps the division harmless.
var errorRange = RangeEntry{Label: "error", Nominal: 0, Scale: 1}

// VoltageRanges is indexed by the 3 bit range code in AC and DC mode.
var VoltageRanges = [8]RangeEntry{
	{Label: "100V", Nominal: 100, Scale: 100},
	{Label: "1V", Nominal: 1, Scale: 10000},
	{Label: "1000V", Nominal: 1000, Scale: 10},
	{Label: "10V", Nominal: 10, Scale: 1000},
	{Label: "100mV", Nominal: 0.1, Scale: 100000},
	errorRange,
	errorRange,
	errorRange,
}

// ResistanceRanges is indexed by the 3 bit range code in resistance mode.
var ResistanceRanges = [8]RangeEntry{
	{Label: "100kΩ", Nominal: 1e5, Scale: 100},
	{Label: "1kΩ", Nominal: 1e3, Scale: 10000},
	errorRange,
	{Label: "10kΩ", Nominal: 1e4, Scale: 1000},
	errorRange,
	{Label: "1MΩ", Nominal: 1e6, Scale: 10000},
	errorRange,
	{Label: "10MΩ", Nominal: 1e7, Scale: 1000},
}

// VoltageRange returns the voltage range of the code, undefined codes return the error entry.
func VoltageRange(r Range) RangeEntry {
	return VoltageRanges[r&7]
}

// ResistanceRange returns the resistance range of the code, undefined codes return the error entry.
func ResistanceRange(r Range) RangeEntry {
	return ResistanceRanges[r&7]
}

// Defined reports whether the entry is a range of the instrument.
func (e RangeEntry) Defined() bool {
	return e.Label != errorRange.Label
}
