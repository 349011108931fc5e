package bridge

import (
	"slices"
	"sync"

	"mvave-bridge/logging"
	"mvave-bridge/midi"
	"mvave-bridge/pitchbend"
)

// SimpleOptions configures a SimpleRouter.
type SimpleOptions struct {
	Toggles []midi.CC
	Mapper  *pitchbend.Mapper // nil selects pitchbend.Default()
	// Startup is sent once each time an output is attached.
	Startup []midi.Event
	Logger  *logging.Logger
}

// StartupBurst builds the initial configuration burst: each controller set
// to value on channel 0.
func StartupBurst(ccs []midi.CC, value uint8) []midi.Event {
	out := make([]midi.Event, 0, len(ccs))
	for _, cc := range ccs {
		if cc.Valid() {
			out = append(out, midi.ControlChange{Control: uint8(cc), Value: value})
		}
	}
	return out
}

// SimpleRouter is the single-surface bridge without a switch registry:
// latched controllers go through the toggle table, pitch bends through the
// mapper, notes and other controllers are forwarded and everything else is
// dropped.
type SimpleRouter struct {
	mu     sync.Mutex
	sendMu sync.Mutex // taken before mu is released; orders output

	toggles   *ToggleTable
	mapper    *pitchbend.Mapper
	startup   []midi.Event
	out       midi.Writer
	observers []Observer
	logger    *logging.Logger
}

// NewSimpleRouter validates the toggle list.
func NewSimpleRouter(opts SimpleOptions) (*SimpleRouter, error) {
	toggles, err := NewToggleTable(opts.Toggles)
	if err != nil {
		return nil, err
	}
	mapper := opts.Mapper
	if mapper == nil {
		mapper = pitchbend.Default()
	}
	return &SimpleRouter{
		toggles: toggles,
		mapper:  mapper,
		startup: slices.Clone(opts.Startup),
		logger:  logging.OrDefault(opts.Logger).Category("simple"),
	}, nil
}

// AddObserver registers o for all later notifications.
func (r *SimpleRouter) AddObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(slices.Clip(r.observers), o)
}

// Attach sets the output and sends the startup burst.
func (r *SimpleRouter) Attach(w midi.Writer) {
	r.mu.Lock()
	r.out = w
	observers := r.observers
	startup := r.startup
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	r.mu.Unlock()

	for _, ev := range startup {
		if err := w.Send(ev); err != nil {
			r.logger.Warn("startup burst failed", "event", ev.String(), "error", err)
			break
		}
	}
	deliver(observers, []notice{connNotice(true)})
}

// Detach clears the output and the latches.
func (r *SimpleRouter) Detach() {
	r.mu.Lock()
	r.out = nil
	r.toggles.Reset()
	observers := r.observers
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	r.mu.Unlock()
	deliver(observers, []notice{connNotice(false)})
}

// Latches returns the toggle table state keyed by controller.
func (r *SimpleRouter) Latches() map[uint8]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint8]bool)
	for _, cc := range r.toggles.Controls() {
		out[cc] = r.toggles.State(cc)
	}
	return out
}

// HandleIncoming routes one event.
func (r *SimpleRouter) HandleIncoming(ev midi.Event) error {
	r.mu.Lock()
	out := r.out
	observers := r.observers
	var (
		send    midi.Event
		notices []notice
	)
	switch m := ev.(type) {
	case midi.ControlChange:
		if r.toggles.Handles(m.Control) {
			if cc, on, ok := r.toggles.Press(m); ok {
				send = cc
				notices = append(notices, stateNotice(ToggleID(m.Control), on))
			}
		} else {
			send = m
		}
	case midi.PitchBend:
		send = r.mapper.Map(pitchbend.Clamp(int(m.Value)))
	case midi.NoteOn, midi.NoteOff:
		send = ev
	}
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	r.mu.Unlock()

	var err error
	if send != nil && out != nil {
		if err = out.Send(send); err != nil {
			r.logger.Warn("send failed", "event", send.String(), "error", err)
		}
	} else if send != nil {
		err = ErrNotConnected
	}
	deliver(observers, notices)
	return err
}
