package midi

import (
	"fmt"
	"strconv"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// CC is a controller number in [0,127]. NoCC marks an unassigned slot.
type CC int16

const (
	NoCC  CC = -1
	MaxCC CC = 127
)

// Valid reports whether c is a usable controller number.
func (c CC) Valid() bool {
	return c >= 0 && c <= MaxCC
}

func (c CC) String() string {
	if !c.Valid() {
		return "-"
	}
	return strconv.Itoa(int(c))
}

// ParseCC converts user or file input into a CC. Anything that is not an
// integer in range comes back as NoCC together with ErrValidation.
func ParseCC(s string) (CC, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return NoCC, fmt.Errorf("%w: cc %q is not a number", ErrValidation, s)
	}
	return CheckCC(n)
}

// CheckCC validates an integer controller number.
func CheckCC(n int) (CC, error) {
	if n < 0 || n > int(MaxCC) {
		return NoCC, fmt.Errorf("%w: cc %d outside 0-127", ErrValidation, n)
	}
	return CC(n), nil
}

// Kind identifies the variant held by an Event
type Kind int

const (
	KindOther Kind = iota
	KindControlChange
	KindNoteOn
	KindNoteOff
	KindPitchBend
)

// Event is a decoded MIDI message. The concrete type is one of
// ControlChange, NoteOn, NoteOff, PitchBend or Other.
type Event interface {
	Kind() Kind
	String() string
	event()
}

type ControlChange struct {
	Channel uint8
	Control uint8
	Value   uint8
}

type NoteOn struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
}

type NoteOff struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
}

// PitchBend carries the signed bend value in [-8192, 8191].
type PitchBend struct {
	Channel uint8
	Value   int16
}

// Other holds any message the bridge does not interpret (sysex, aftertouch,
// program change, clock). Raw is forwarded byte for byte.
type Other struct {
	Raw []byte
}

func (ControlChange) Kind() Kind { return KindControlChange }
func (NoteOn) Kind() Kind        { return KindNoteOn }
func (NoteOff) Kind() Kind       { return KindNoteOff }
func (PitchBend) Kind() Kind     { return KindPitchBend }
func (Other) Kind() Kind         { return KindOther }

func (ControlChange) event() {}
func (NoteOn) event()        {}
func (NoteOff) event()       {}
func (PitchBend) event()     {}
func (Other) event()         {}

func (e ControlChange) String() string {
	return fmt.Sprintf("CC%d=%d ch%d", e.Control, e.Value, e.Channel)
}

func (e NoteOn) String() string {
	return fmt.Sprintf("NoteOn %d vel=%d ch%d", e.Note, e.Velocity, e.Channel)
}

func (e NoteOff) String() string {
	return fmt.Sprintf("NoteOff %d ch%d", e.Note, e.Channel)
}

func (e PitchBend) String() string {
	return fmt.Sprintf("PitchBend %d ch%d", e.Value, e.Channel)
}

func (e Other) String() string {
	return fmt.Sprintf("Other % X", e.Raw)
}

// FromMessage decodes a gomidi message into an Event.
func FromMessage(msg gomidi.Message) Event {
	var channel, a, b uint8
	var rel int16
	var abs uint16

	switch {
	case msg.GetControlChange(&channel, &a, &b):
		return ControlChange{Channel: channel, Control: a, Value: b}
	case msg.GetNoteOn(&channel, &a, &b):
		return NoteOn{Channel: channel, Note: a, Velocity: b}
	case msg.GetNoteOff(&channel, &a, &b):
		return NoteOff{Channel: channel, Note: a, Velocity: b}
	case msg.GetPitchBend(&channel, &rel, &abs):
		return PitchBend{Channel: channel, Value: rel}
	}

	raw := make([]byte, len(msg))
	copy(raw, msg)
	return Other{Raw: raw}
}

// ToMessage encodes an Event as a gomidi message (raw wire bytes).
func ToMessage(e Event) gomidi.Message {
	switch ev := e.(type) {
	case ControlChange:
		return gomidi.ControlChange(ev.Channel, ev.Control, ev.Value)
	case NoteOn:
		return gomidi.NoteOn(ev.Channel, ev.Note, ev.Velocity)
	case NoteOff:
		return gomidi.NoteOffVelocity(ev.Channel, ev.Note, ev.Velocity)
	case PitchBend:
		return gomidi.Pitchbend(ev.Channel, ev.Value)
	case Other:
		return gomidi.Message(ev.Raw)
	}
	return nil
}
