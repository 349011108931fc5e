package bridge

import (
	"fmt"
	"slices"

	"mvave-bridge/midi"
)

// DefaultToggleCCs are latched by the pass-through toggle table.
var DefaultToggleCCs = []midi.CC{4, 17, 18, 19}

// ToggleID names a toggle-table latch for observers.
func ToggleID(cc uint8) string {
	return fmt.Sprintf("cc_%d", cc)
}

// ToggleTable latches a fixed set of controllers independently of the
// switch registry: a value of 127 flips the latch and re-emits the same
// controller as 127 or 0. It is not synchronized.
type ToggleTable struct {
	ccs    []uint8
	states map[uint8]bool
}

// NewToggleTable validates the controller list.
func NewToggleTable(ccs []midi.CC) (*ToggleTable, error) {
	t := &ToggleTable{states: make(map[uint8]bool, len(ccs))}
	for _, cc := range ccs {
		if !cc.Valid() {
			return nil, fmt.Errorf("%w: toggle cc %d", ErrValidation, cc)
		}
		if !slices.Contains(t.ccs, uint8(cc)) {
			t.ccs = append(t.ccs, uint8(cc))
			t.states[uint8(cc)] = false
		}
	}
	return t, nil
}

// Handles reports whether control is latched by the table.
func (t *ToggleTable) Handles(control uint8) bool {
	_, ok := t.states[control]
	return ok
}

// Press applies an incoming value. ok is false when nothing is emitted.
func (t *ToggleTable) Press(ev midi.ControlChange) (out midi.ControlChange, on bool, ok bool) {
	state, handled := t.states[ev.Control]
	if !handled || ev.Value != 127 {
		return midi.ControlChange{}, false, false
	}
	state = !state
	t.states[ev.Control] = state
	value := uint8(0)
	if state {
		value = 127
	}
	return midi.ControlChange{Channel: ev.Channel, Control: ev.Control, Value: value}, state, true
}

// State returns the latch for control.
func (t *ToggleTable) State(control uint8) bool {
	return t.states[control]
}

// Controls lists the latched controllers in table order.
func (t *ToggleTable) Controls() []uint8 {
	return slices.Clone(t.ccs)
}

// Reset clears every latch.
func (t *ToggleTable) Reset() {
	for cc := range t.states {
		t.states[cc] = false
	}
}
