package telemetry

import (
	"sync"
	"testing"
	"time"

	"mvave-bridge/bridge"
	"mvave-bridge/logging"
	"mvave-bridge/midi"
)

// fakeBroker records publishes and keeps subscribed handlers.
type fakeBroker struct {
	mu        sync.Mutex
	published []message
	handlers  map[string]MessageHandler
	failWith  error
	closed    bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]MessageHandler)}
}

func (b *fakeBroker) Publish(topic string, payload []byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	b.published = append(b.published, message{topic: topic, payload: payload, retained: retained})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, h MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = h
	return nil
}

func (b *fakeBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBroker) messages() []message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]message(nil), b.published...)
}

func (b *fakeBroker) handler(topic string) MessageHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handlers[topic]
}

// attachedEngine returns an engine with 4 default switches (max 6) sending
// to the "out" port of a loopback.
func attachedEngine(t *testing.T) (*bridge.Engine, *midi.Loopback) {
	t.Helper()
	reg, err := bridge.NewRegistry(4, 6)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	e := bridge.NewEngine(reg, bridge.Options{
		ReleaseDelay: 20 * time.Millisecond,
		Logger:       logging.Discard(),
	})
	lb := midi.NewLoopback([]string{"in"}, []string{"out"})
	w, err := lb.OpenOutput("out")
	if err != nil {
		t.Fatalf("OpenOutput: %v", err)
	}
	e.Attach(w)
	return e, lb
}
