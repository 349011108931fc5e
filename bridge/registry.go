package bridge

import (
	"fmt"
	"slices"

	"mvave-bridge/config"
	"mvave-bridge/midi"
)

// Registry is the ordered set of switches. It is not synchronized; the
// Engine serializes access.
type Registry struct {
	switches []*Switch
	nDefault int
	nMax     int
}

// NewRegistry creates nDefault protected switches. It fails only for
// impossible bounds.
func NewRegistry(nDefault, nMax int) (*Registry, error) {
	if nDefault < 1 || nMax < nDefault {
		return nil, fmt.Errorf("%w: switch bounds %d..%d", ErrCapacity, nDefault, nMax)
	}
	r := &Registry{nDefault: nDefault, nMax: nMax}
	for n := range nDefault {
		r.switches = append(r.switches, newSwitch(n, true))
	}
	return r, nil
}

// Bounds returns the default and maximum switch counts.
func (r *Registry) Bounds() (nDefault, nMax int) {
	return r.nDefault, r.nMax
}

func (r *Registry) Len() int {
	return len(r.switches)
}

// Add creates a switch with the next free index (highest existing + 1).
func (r *Registry) Add() (*Switch, error) {
	if len(r.switches) >= r.nMax {
		return nil, fmt.Errorf("%w: at most %d switches", ErrCapacity, r.nMax)
	}
	next := r.nDefault
	for _, sw := range r.switches {
		if n, ok := config.SwitchIndex(sw.ControlID); ok && n+1 > next {
			next = n + 1
		}
	}
	sw := newSwitch(next, false)
	r.switches = append(r.switches, sw)
	return sw, nil
}

// Delete removes a non-default switch.
func (r *Registry) Delete(id string) error {
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSwitch, id)
	}
	if r.switches[i].IsDefault {
		return fmt.Errorf("%w: %s", ErrProtected, id)
	}
	r.switches = slices.Delete(r.switches, i, i+1)
	return nil
}

// Find returns the live switch for id.
func (r *Registry) Find(id string) (*Switch, bool) {
	i := r.index(id)
	if i < 0 {
		return nil, false
	}
	return r.switches[i], true
}

// FirstByInput returns the first switch in registry order listening on cc.
func (r *Registry) FirstByInput(cc midi.CC) *Switch {
	if !cc.Valid() {
		return nil
	}
	for _, sw := range r.switches {
		if sw.InputCC == cc {
			return sw
		}
	}
	return nil
}

// Snapshot copies every switch in registry order.
func (r *Registry) Snapshot() []Switch {
	out := make([]Switch, len(r.switches))
	for i, sw := range r.switches {
		out[i] = *sw
	}
	return out
}

// Replace swaps in a complete switch list. Ids must be unique, the count
// must respect the bounds and default switches must all be present.
func (r *Registry) Replace(switches []Switch) error {
	if len(switches) < r.nDefault || len(switches) > r.nMax {
		return fmt.Errorf("%w: %d switches outside %d..%d", ErrCapacity, len(switches), r.nDefault, r.nMax)
	}
	seen := make(map[string]bool, len(switches))
	defaults := 0
	next := make([]*Switch, 0, len(switches))
	for _, sw := range switches {
		if seen[sw.ControlID] {
			return fmt.Errorf("duplicate switch id %q", sw.ControlID)
		}
		seen[sw.ControlID] = true
		if sw.IsDefault {
			defaults++
		}
		next = append(next, &sw)
	}
	if defaults != r.nDefault {
		return fmt.Errorf("%w: expected %d default switches, got %d", ErrProtected, r.nDefault, defaults)
	}
	r.switches = next
	return nil
}

func (r *Registry) index(id string) int {
	return slices.IndexFunc(r.switches, func(sw *Switch) bool { return sw.ControlID == id })
}
