package midi

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Loopback is an in-memory Gateway. Events are injected on named inputs and
// everything sent to an output is recorded. Used by tests and by -demo.
type Loopback struct {
	mu       sync.Mutex
	inputs   []string
	outputs  []string
	readers  map[string][]*chanReader
	sent     map[string][]Event
	openErrs map[string]error
}

// NewLoopback creates a gateway exposing the given endpoint names.
func NewLoopback(inputs, outputs []string) *Loopback {
	return &Loopback{
		inputs:   slices.Clone(inputs),
		outputs:  slices.Clone(outputs),
		readers:  make(map[string][]*chanReader),
		sent:     make(map[string][]Event),
		openErrs: make(map[string]error),
	}
}

func (l *Loopback) Inputs() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.inputs), nil
}

func (l *Loopback) Outputs() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.outputs), nil
}

// SetPorts replaces the visible endpoint lists (simulates hot-plug).
func (l *Loopback) SetPorts(inputs, outputs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inputs = slices.Clone(inputs)
	l.outputs = slices.Clone(outputs)
}

// FailOpen makes the next opens of name fail with err (nil clears it).
func (l *Loopback) FailOpen(name string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.openErrs, name)
		return
	}
	l.openErrs[name] = err
}

func (l *Loopback) OpenInput(name string) (Reader, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.openErrs[name]; err != nil {
		return nil, fmt.Errorf("%w: input %q: %w", ErrConnection, name, err)
	}
	if !slices.Contains(l.inputs, name) {
		return nil, fmt.Errorf("%w: input %q: %w", ErrConnection, name, ErrPortNotFound)
	}
	r := newChanReader(readerBuffer, nil)
	r.onClose = func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.readers[name] = slices.DeleteFunc(l.readers[name], func(c *chanReader) bool { return c == r })
		return nil
	}
	l.readers[name] = append(l.readers[name], r)
	return r, nil
}

func (l *Loopback) OpenOutput(name string) (Writer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.openErrs[name]; err != nil {
		return nil, fmt.Errorf("%w: output %q: %w", ErrConnection, name, err)
	}
	if !slices.Contains(l.outputs, name) {
		return nil, fmt.Errorf("%w: output %q: %w", ErrConnection, name, ErrPortNotFound)
	}
	return &loopWriter{lb: l, name: name}, nil
}

// Inject delivers e to every open reader of input. It returns false when no
// reader is listening.
func (l *Loopback) Inject(input string, e Event) bool {
	l.mu.Lock()
	readers := slices.Clone(l.readers[input])
	l.mu.Unlock()

	delivered := false
	for _, r := range readers {
		if r.push(e) {
			delivered = true
		}
	}
	return delivered
}

// Unplug ends every open reader of input with ErrConnection and removes the
// endpoint from the visible list.
func (l *Loopback) Unplug(input string) {
	l.mu.Lock()
	readers := slices.Clone(l.readers[input])
	l.inputs = slices.DeleteFunc(l.inputs, func(n string) bool { return n == input })
	l.mu.Unlock()

	for _, r := range readers {
		r.fail(fmt.Errorf("%w: input %q unplugged", ErrConnection, input))
	}
}

// Sent returns a copy of everything written to output so far.
func (l *Loopback) Sent(output string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.sent[output])
}

// WaitSent polls until at least n events were written to output or the
// timeout expires, then returns what was recorded.
func (l *Loopback) WaitSent(output string, n int, timeout time.Duration) []Event {
	deadline := time.Now().Add(timeout)
	for {
		got := l.Sent(output)
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(time.Millisecond)
	}
}

// Listening reports how many readers are open on input.
func (l *Loopback) Listening(input string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.readers[input])
}

type loopWriter struct {
	lb     *Loopback
	name   string
	mu     sync.Mutex
	closed bool
}

func (w *loopWriter) Send(e Event) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}
	w.lb.mu.Lock()
	defer w.lb.mu.Unlock()
	if err := w.lb.openErrs[w.name]; err != nil {
		return fmt.Errorf("%w: output %q: %w", ErrConnection, w.name, err)
	}
	w.lb.sent[w.name] = append(w.lb.sent[w.name], e)
	return nil
}

func (w *loopWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}
