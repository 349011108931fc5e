// Package pitchbend turns the continuous pitch-bend stream of an expression
// pedal into discrete notes, falling back to a scaled controller value.
package pitchbend

import (
	"fmt"
	"math"
	"slices"

	"mvave-bridge/midi"
)

const (
	// MinValue and MaxValue bound a 14-bit signed bend.
	MinValue = -8192
	MaxValue = 8191

	// DefaultFallbackCC receives bends that fall outside every range.
	DefaultFallbackCC midi.CC = 40
)

// ErrValidation is returned for malformed range tables.
var ErrValidation = midi.ErrValidation

// Range is an inclusive span of bend values bound to a note.
type Range struct {
	Name string `yaml:"name" json:"name"`
	Min  int16  `yaml:"min" json:"min"`
	Max  int16  `yaml:"max" json:"max"`
	Note uint8  `yaml:"note" json:"note"`
}

// DefaultRanges splits the full bend domain into four pedal zones.
func DefaultRanges() []Range {
	return []Range{
		{Name: "A", Min: -8192, Max: -4097, Note: 60},
		{Name: "B", Min: -4096, Max: -1, Note: 61},
		{Name: "C", Min: 0, Max: 4095, Note: 62},
		{Name: "D", Min: 4096, Max: 8191, Note: 63},
	}
}

// Mapper is immutable after construction and safe for concurrent use.
type Mapper struct {
	ranges   []Range
	fallback midi.CC
}

// NewMapper validates the table. Ranges must not be inverted or overlap and
// notes must be 7-bit. Order is kept for lookup.
func NewMapper(ranges []Range, fallbackCC midi.CC) (*Mapper, error) {
	if !fallbackCC.Valid() {
		return nil, fmt.Errorf("%w: fallback cc %d", ErrValidation, fallbackCC)
	}
	for i, r := range ranges {
		if r.Min > r.Max {
			return nil, fmt.Errorf("%w: range %q is inverted (%d > %d)", ErrValidation, r.Name, r.Min, r.Max)
		}
		if r.Note > 127 {
			return nil, fmt.Errorf("%w: range %q note %d", ErrValidation, r.Name, r.Note)
		}
		for _, o := range ranges[:i] {
			if r.Min <= o.Max && o.Min <= r.Max {
				return nil, fmt.Errorf("%w: range %q overlaps %q", ErrValidation, r.Name, o.Name)
			}
		}
	}
	return &Mapper{ranges: slices.Clone(ranges), fallback: fallbackCC}, nil
}

// Default returns the mapper for DefaultRanges and DefaultFallbackCC.
func Default() *Mapper {
	m, err := NewMapper(DefaultRanges(), DefaultFallbackCC)
	if err != nil {
		panic(err)
	}
	return m
}

// Ranges returns a copy of the table.
func (m *Mapper) Ranges() []Range {
	return slices.Clone(m.ranges)
}

// Map returns NoteOn(note, 127) for a value inside a range and otherwise a
// ControlChange on the fallback controller scaled to 0-127. value must
// already be clamped.
func (m *Mapper) Map(value int16) midi.Event {
	for _, r := range m.ranges {
		if value >= r.Min && value <= r.Max {
			return midi.NoteOn{Note: r.Note, Velocity: 127}
		}
	}
	return midi.ControlChange{Control: uint8(m.fallback), Value: Scale(value)}
}

// Scale maps a bend value onto 0-127.
func Scale(value int16) uint8 {
	v := math.Round(float64(int(value)-MinValue) / 16384 * 127)
	return uint8(max(0, min(127, v)))
}

// Clamp limits an arbitrary integer to the bend domain.
func Clamp(v int) int16 {
	return int16(max(MinValue, min(MaxValue, v)))
}
