package bridge

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"mvave-bridge/logging"
	"mvave-bridge/midi"
)

// recorder is an Observer that keeps every notification as a string.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) StateChanged(id string, on bool) {
	r.add(fmt.Sprintf("state %s %v", id, on))
}

func (r *recorder) LearningProgress(id string, field Field, status LearnStatus) {
	r.add(fmt.Sprintf("learn %s %s %s", id, field, status))
}

func (r *recorder) ConnectionChanged(connected bool) {
	r.add(fmt.Sprintf("connected %v", connected))
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// newTestEngine returns an engine with 4 default switches (max 8) attached
// to the "out" port of a loopback.
func newTestEngine(t *testing.T, opts Options) (*Engine, *midi.Loopback, *recorder) {
	t.Helper()
	reg, err := NewRegistry(4, 8)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	opts.Logger = logging.Discard()
	e := NewEngine(reg, opts)

	rec := &recorder{}
	e.AddObserver(rec)

	lb := midi.NewLoopback([]string{"in"}, []string{"out"})
	w, err := lb.OpenOutput("out")
	if err != nil {
		t.Fatalf("OpenOutput: %v", err)
	}
	e.Attach(w)
	rec.reset()
	return e, lb, rec
}

func cc(control, value uint8) midi.ControlChange {
	return midi.ControlChange{Control: control, Value: value}
}

func assertSent(t *testing.T, lb *midi.Loopback, want ...midi.Event) {
	t.Helper()
	got := lb.Sent("out")
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sent %v, want %v", got, want)
	}
}

func mustSwitch(t *testing.T, e *Engine, id string) Switch {
	t.Helper()
	sw, ok := e.Switch(id)
	if !ok {
		t.Fatalf("switch %s missing", id)
	}
	return sw
}
