package bridge

import (
	"fmt"

	"mvave-bridge/config"
	"mvave-bridge/midi"
)

// Mode selects how a switch follows its input.
type Mode int

const (
	// Toggle flips on each press and ignores releases.
	Toggle Mode = iota
	// Momentary is on while the input value is non-zero.
	Momentary
)

func (m Mode) String() string {
	if m == Momentary {
		return config.ModeMomentary
	}
	return config.ModeToggle
}

// ParseMode accepts the persisted mode names.
func ParseMode(s string) (Mode, error) {
	switch s {
	case config.ModeToggle:
		return Toggle, nil
	case config.ModeMomentary:
		return Momentary, nil
	}
	return Toggle, fmt.Errorf("unknown mode %q", s)
}

// Field selects which controller number a learn assigns.
type Field int

const (
	FieldInput Field = iota
	FieldOutput
)

func (f Field) String() string {
	if f == FieldOutput {
		return "output"
	}
	return "input"
}

// ParseField accepts "input" or "output".
func ParseField(s string) (Field, error) {
	switch s {
	case "input":
		return FieldInput, nil
	case "output":
		return FieldOutput, nil
	}
	return FieldInput, fmt.Errorf("unknown field %q", s)
}

// LearnStatus is reported to observers as learning progresses.
type LearnStatus int

const (
	LearnWaiting LearnStatus = iota
	LearnDone
	LearnCancelled
)

func (s LearnStatus) String() string {
	switch s {
	case LearnDone:
		return "done"
	case LearnCancelled:
		return "cancelled"
	}
	return "waiting"
}

// Switch is a logical foot switch. Values handed out by the engine are
// snapshots; mutate only through Engine methods.
type Switch struct {
	ControlID string
	Ordinal   int
	InputCC   midi.CC
	OutputCC  midi.CC
	Mode      Mode
	State     bool
	IsDefault bool

	// Diverged is set when the last state change could not be emitted.
	Diverged bool
}

// nextState applies the edge rules for an incoming controller value.
func nextState(mode Mode, current bool, value uint8) bool {
	if mode == Momentary {
		return value > 0
	}
	if value == 0 {
		return current
	}
	return !current
}

func newSwitch(n int, isDefault bool) *Switch {
	return &Switch{
		ControlID: config.SwitchID(n),
		Ordinal:   n + 1,
		InputCC:   midi.NoCC,
		OutputCC:  config.DefaultOutputCC(n),
		Mode:      Toggle,
		IsDefault: isDefault,
	}
}
