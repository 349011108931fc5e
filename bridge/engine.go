package bridge

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"mvave-bridge/config"
	"mvave-bridge/logging"
	"mvave-bridge/midi"
	"mvave-bridge/pitchbend"
)

// DefaultReleaseDelay is how long a manually triggered momentary switch
// stays on.
const DefaultReleaseDelay = 200 * time.Millisecond

// Options configures an Engine. The zero value is usable.
type Options struct {
	ReleaseDelay time.Duration
	// Mapper translates pitch bends; nil passes them through.
	Mapper *pitchbend.Mapper
	// Toggles latches controllers that no switch listens on; nil disables.
	Toggles *ToggleTable
	// Channel is used for switch emissions.
	Channel uint8
	Logger  *logging.Logger
}

// Engine routes incoming events through the learn handshake and the switch
// registry. Every entry point takes the one mutex, computes what to send,
// then hands off to the send lock and releases it before sending.
type Engine struct {
	mu sync.Mutex

	// sendMu orders transmission; it is taken while mu is held, never the
	// other way round.
	sendMu sync.Mutex

	reg       *Registry
	learner   Learner
	out       midi.Writer
	observers []Observer

	// pending momentary releases; a timer fires only if its seq is current
	seq      uint64
	releases map[string]uint64
	timers   map[string]*time.Timer

	emitSeq  uint64
	lastEmit map[string]uint64

	releaseDelay time.Duration
	mapper       *pitchbend.Mapper
	toggles      *ToggleTable
	channel      uint8
	logger       *logging.Logger
}

// NewEngine wraps a registry.
func NewEngine(reg *Registry, opts Options) *Engine {
	if opts.ReleaseDelay <= 0 {
		opts.ReleaseDelay = DefaultReleaseDelay
	}
	return &Engine{
		reg:          reg,
		releases:     make(map[string]uint64),
		timers:       make(map[string]*time.Timer),
		lastEmit:     make(map[string]uint64),
		releaseDelay: opts.ReleaseDelay,
		mapper:       opts.Mapper,
		toggles:      opts.Toggles,
		channel:      opts.Channel,
		logger:       logging.OrDefault(opts.Logger).Category("engine"),
	}
}

// AddObserver registers o for all later notifications.
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(slices.Clip(e.observers), o)
}

// emission collects the effects of one entry point while the lock is held.
type emission struct {
	out       midi.Writer
	events    []midi.Event
	source    string // switch to mark diverged if sending fails
	seq       uint64 // emission number of source
	notices   []notice
	observers []Observer
	err       error
}

func (e *Engine) begin() *emission {
	return &emission{observers: e.observers}
}

// emitSwitchLocked queues the output for sw's current state.
func (e *Engine) emitSwitchLocked(sw *Switch, em *emission) {
	em.notices = append(em.notices, stateNotice(sw.ControlID, sw.State))
	if !sw.OutputCC.Valid() {
		sw.Diverged = true
		em.err = fmt.Errorf("%w: %w: %s output cc %s", ErrValidation, ErrDiverged, sw.ControlID, sw.OutputCC)
		return
	}
	if e.out == nil {
		sw.Diverged = true
		em.err = fmt.Errorf("%w: %w: %s", ErrNotConnected, ErrDiverged, sw.ControlID)
		return
	}
	sw.Diverged = false
	value := uint8(0)
	if sw.State {
		value = 127
	}
	e.emitSeq++
	e.lastEmit[sw.ControlID] = e.emitSeq
	em.out = e.out
	em.source = sw.ControlID
	em.seq = e.emitSeq
	em.events = append(em.events, midi.ControlChange{Channel: e.channel, Control: uint8(sw.OutputCC), Value: value})
}

// handoff is called with e.mu held and releases it. The send lock is taken
// before e.mu is released, so emissions leave in the order their state
// changes were made while snapshots stay available during slow sends.
func (e *Engine) handoff(em *emission) error {
	e.sendMu.Lock()
	e.mu.Unlock()

	err := em.err
	failed := false
	if em.out != nil {
		for _, ev := range em.events {
			serr := em.out.Send(ev)
			if serr == nil {
				continue
			}
			if em.source != "" {
				failed = true
				serr = fmt.Errorf("%w: %s: %w", ErrDiverged, em.source, serr)
			}
			err = errors.Join(err, serr)
			break
		}
	}
	deliver(em.observers, em.notices)
	e.sendMu.Unlock()

	if failed {
		e.markDiverged(em.source, em.seq)
	}
	if err != nil {
		e.logger.Warn("emission failed", "error", err)
	}
	return err
}

// markDiverged flags id unless a later emission for it has been queued.
func (e *Engine) markDiverged(id string, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastEmit[id] != seq {
		return
	}
	if sw, ok := e.reg.Find(id); ok {
		sw.Diverged = true
	}
}

// HandleIncoming dispatches one event from the input port.
func (e *Engine) HandleIncoming(ev midi.Event) error {
	switch m := ev.(type) {
	case nil:
		return nil
	case midi.ControlChange:
		return e.handleControlChange(m)
	case midi.PitchBend:
		if e.mapper == nil {
			return e.forward(m)
		}
		mapped := e.mapper.Map(pitchbend.Clamp(int(m.Value)))
		e.logger.DebugEvery(50, "engine.pitchbend", "pitch bend mapped", "value", m.Value, "to", mapped.String())
		return e.forward(mapped)
	default:
		return e.forward(ev)
	}
}

func (e *Engine) forward(ev midi.Event) error {
	e.mu.Lock()
	if e.out == nil {
		e.mu.Unlock()
		return nil
	}
	em := e.begin()
	em.out = e.out
	em.events = append(em.events, ev)
	return e.handoff(em)
}

func (e *Engine) handleControlChange(m midi.ControlChange) error {
	e.mu.Lock()
	em := e.begin()

	if e.learner.Session().Aimed() {
		err := e.learnLocked(midi.CC(m.Control), em)
		return errors.Join(err, e.handoff(em))
	}

	sw := e.reg.FirstByInput(midi.CC(m.Control))
	if sw == nil {
		if e.toggles != nil && e.out != nil {
			if out, on, ok := e.toggles.Press(m); ok {
				em.out = e.out
				em.events = append(em.events, out)
				em.notices = append(em.notices, stateNotice(ToggleID(m.Control), on))
			}
		}
		return e.handoff(em)
	}

	next := nextState(sw.Mode, sw.State, m.Value)
	if next == sw.State {
		e.mu.Unlock()
		return nil
	}
	sw.State = next
	e.emitSwitchLocked(sw, em)
	return e.handoff(em)
}

func (e *Engine) learnLocked(cc midi.CC, em *emission) error {
	sw, s, err := e.learner.OnIncomingCC(e.reg, cc)
	if err != nil {
		em.notices = append(em.notices, learnNotice(s.Target, s.Field, LearnCancelled))
		return fmt.Errorf("learn %s: %w", s.Target, err)
	}
	e.cancelReleaseLocked(sw.ControlID)
	em.notices = append(em.notices, learnNotice(sw.ControlID, s.Field, LearnDone))
	e.logger.Info("learned controller", "switch", sw.ControlID, "field", s.Field.String(), "cc", int(cc))
	return nil
}

// Arm starts a learning session without a target.
func (e *Engine) Arm() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out == nil {
		return ErrNotConnected
	}
	e.learner.Arm()
	return nil
}

// RequestTarget aims learning at a switch field, arming if needed.
// Aiming at the current target again cancels the aim.
func (e *Engine) RequestTarget(id string, field Field) error {
	e.mu.Lock()
	if !e.learner.Session().Active && e.out == nil {
		e.mu.Unlock()
		return ErrNotConnected
	}
	if _, ok := e.reg.Find(id); !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSwitch, id)
	}
	em := e.begin()
	status := e.learner.RequestTarget(id, field)
	em.notices = append(em.notices, learnNotice(id, field, status))
	return e.handoff(em)
}

// Disarm ends any learning session. Idempotent.
func (e *Engine) Disarm() {
	e.mu.Lock()
	em := e.begin()
	e.disarmLocked(em)
	_ = e.handoff(em)
}

func (e *Engine) disarmLocked(em *emission) {
	if prev := e.learner.Disarm(); prev.Aimed() {
		em.notices = append(em.notices, learnNotice(prev.Target, prev.Field, LearnCancelled))
	}
}

// Learning returns the current session.
func (e *Engine) Learning() LearningSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learner.Session()
}

// Trigger fires a switch from the command surface. A momentary switch is
// released again after the release delay.
func (e *Engine) Trigger(id string) error {
	e.mu.Lock()
	if e.out == nil {
		e.mu.Unlock()
		return ErrNotConnected
	}
	sw, ok := e.reg.Find(id)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSwitch, id)
	}

	em := e.begin()
	switch sw.Mode {
	case Momentary:
		sw.State = true
		e.emitSwitchLocked(sw, em)
		e.scheduleReleaseLocked(id)
	default:
		sw.State = !sw.State
		e.emitSwitchLocked(sw, em)
	}
	return e.handoff(em)
}

func (e *Engine) scheduleReleaseLocked(id string) {
	e.cancelReleaseLocked(id)
	e.seq++
	seq := e.seq
	e.releases[id] = seq
	e.timers[id] = time.AfterFunc(e.releaseDelay, func() { e.release(id, seq) })
}

func (e *Engine) cancelReleaseLocked(id string) {
	delete(e.releases, id)
	if t, ok := e.timers[id]; ok {
		t.Stop()
		delete(e.timers, id)
	}
}

func (e *Engine) cancelAllReleasesLocked() {
	for id := range e.timers {
		e.cancelReleaseLocked(id)
	}
	clear(e.releases)
}

func (e *Engine) release(id string, seq uint64) {
	e.mu.Lock()
	if e.releases[id] != seq {
		e.mu.Unlock()
		return
	}
	delete(e.releases, id)
	delete(e.timers, id)

	sw, ok := e.reg.Find(id)
	if !ok || !sw.State || e.out == nil {
		e.mu.Unlock()
		return
	}
	em := e.begin()
	sw.State = false
	e.emitSwitchLocked(sw, em)
	_ = e.handoff(em)
}

// AddSwitch appends a switch with default settings.
func (e *Engine) AddSwitch() (Switch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sw, err := e.reg.Add()
	if err != nil {
		return Switch{}, err
	}
	e.logger.Info("switch added", "switch", sw.ControlID)
	return *sw, nil
}

// DeleteSwitch removes a non-default switch, cancelling its pending
// release and any learn aimed at it.
func (e *Engine) DeleteSwitch(id string) error {
	e.mu.Lock()
	if err := e.reg.Delete(id); err != nil {
		e.mu.Unlock()
		return err
	}
	em := e.begin()
	e.cancelReleaseLocked(id)
	if s := e.learner.Session(); s.Aimed() && s.Target == id {
		e.disarmLocked(em)
	}
	e.logger.Info("switch deleted", "switch", id)
	return e.handoff(em)
}

// SetMode changes how a switch follows its input.
func (e *Engine) SetMode(id string, mode Mode) error {
	return e.mutate(id, func(sw *Switch) error {
		sw.Mode = mode
		return nil
	})
}

// SetOutputCC assigns the emitted controller.
func (e *Engine) SetOutputCC(id string, cc midi.CC) error {
	if !cc.Valid() {
		return fmt.Errorf("%w: output cc %d", ErrValidation, cc)
	}
	return e.mutate(id, func(sw *Switch) error {
		sw.OutputCC = cc
		return nil
	})
}

// SetInputCC assigns the listened controller; NoCC unassigns it.
func (e *Engine) SetInputCC(id string, cc midi.CC) error {
	if cc != midi.NoCC && !cc.Valid() {
		return fmt.Errorf("%w: input cc %d", ErrValidation, cc)
	}
	return e.mutate(id, func(sw *Switch) error {
		sw.InputCC = cc
		return nil
	})
}

func (e *Engine) mutate(id string, fn func(sw *Switch) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	sw, ok := e.reg.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSwitch, id)
	}
	e.cancelReleaseLocked(id)
	return fn(sw)
}

// Switches returns snapshots in registry order.
func (e *Engine) Switches() []Switch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Snapshot()
}

// Switch returns a snapshot of one switch.
func (e *Engine) Switch(id string) (Switch, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sw, ok := e.reg.Find(id)
	if !ok {
		return Switch{}, false
	}
	return *sw, true
}

// Bounds returns the default and maximum switch counts.
func (e *Engine) Bounds() (nDefault, nMax int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Bounds()
}

// Connected reports whether an output is attached.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out != nil
}

// Apply replaces the registry with a decoded layout. Learning is disarmed
// and pending releases are cancelled.
func (e *Engine) Apply(f config.SwitchFile) error {
	e.mu.Lock()
	nDefault, _ := e.reg.Bounds()
	list := make([]Switch, 0, len(f.Switches))
	for _, sc := range f.Switches {
		mode, err := ParseMode(sc.Mode)
		if err != nil {
			e.logger.Warn("unknown mode, using toggle", "switch", sc.ID, "mode", sc.Mode)
		}
		list = append(list, Switch{
			ControlID: sc.ID,
			Ordinal:   sc.Index + 1,
			InputCC:   sc.InputCC,
			OutputCC:  sc.OutputCC,
			Mode:      mode,
			State:     sc.State,
			IsDefault: sc.Index < nDefault,
		})
	}

	before := make(map[string]bool, e.reg.Len())
	for _, sw := range e.reg.Snapshot() {
		before[sw.ControlID] = sw.State
	}
	if err := e.reg.Replace(list); err != nil {
		e.mu.Unlock()
		return err
	}

	em := e.begin()
	e.cancelAllReleasesLocked()
	e.disarmLocked(em)
	for _, sw := range list {
		if old, ok := before[sw.ControlID]; !ok || old != sw.State {
			em.notices = append(em.notices, stateNotice(sw.ControlID, sw.State))
		}
	}
	e.logger.Info("layout applied", "switches", len(list))
	return e.handoff(em)
}

// Export captures the registry as a persistable layout. Language and ports
// are left for the caller.
func (e *Engine) Export() config.SwitchFile {
	e.mu.Lock()
	defer e.mu.Unlock()
	var f config.SwitchFile
	for _, sw := range e.reg.Snapshot() {
		n, ok := config.SwitchIndex(sw.ControlID)
		if !ok {
			n = sw.Ordinal - 1
		}
		f.Switches = append(f.Switches, config.SwitchConfig{
			ID:       sw.ControlID,
			Index:    n,
			InputCC:  sw.InputCC,
			OutputCC: sw.OutputCC,
			Mode:     sw.Mode.String(),
			State:    sw.State,
		})
	}
	return f
}

// Attach sets the output port. Called by Session on connect.
func (e *Engine) Attach(w midi.Writer) {
	e.mu.Lock()
	e.out = w
	em := e.begin()
	em.notices = append(em.notices, connNotice(true))
	_ = e.handoff(em)
}

// Detach clears the output, disarms learning and cancels pending releases.
func (e *Engine) Detach() {
	e.mu.Lock()
	e.out = nil
	em := e.begin()
	e.disarmLocked(em)
	e.cancelAllReleasesLocked()
	em.notices = append(em.notices, connNotice(false))
	_ = e.handoff(em)
}
