package midi

import (
	"sync"
	"sync/atomic"
)

// readerBuffer is the number of events a reader holds before it starts
// dropping. Driver callbacks must never block.
const readerBuffer = 256

// chanReader turns callback-style input into the blocking Reader contract.
type chanReader struct {
	events  chan Event
	done    chan struct{}
	endOnce sync.Once
	relOnce sync.Once
	errMu   sync.Mutex
	err     error
	dropped atomic.Uint64
	logger  Logger

	// onClose releases the underlying port; set by the gateway after open.
	onClose func() error
}

func newChanReader(size int, logger Logger) *chanReader {
	return &chanReader{
		events: make(chan Event, size),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// push never blocks: when the buffer is full the event is dropped.
func (r *chanReader) push(e Event) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.events <- e:
		return true
	default:
		n := r.dropped.Add(1)
		if r.logger != nil {
			r.logger.Warn("midi: reader buffer full, event dropped", "event", e.String(), "dropped", n)
		}
		return false
	}
}

// fail ends the stream with an error. Safe to call from any goroutine.
func (r *chanReader) fail(err error) {
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.errMu.Unlock()
	r.endOnce.Do(func() { close(r.done) })
}

func (r *chanReader) Next() (Event, bool) {
	select {
	case <-r.done:
		return nil, false
	default:
	}
	select {
	case e := <-r.events:
		return e, true
	case <-r.done:
		return nil, false
	}
}

func (r *chanReader) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Dropped returns how many events were lost to a full buffer.
func (r *chanReader) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *chanReader) Close() error {
	r.endOnce.Do(func() { close(r.done) })
	var err error
	r.relOnce.Do(func() {
		if r.onClose != nil {
			err = r.onClose()
		}
	})
	return err
}
