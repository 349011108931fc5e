package history

import (
	"context"
	"sync"
	"time"

	"mvave-bridge/bridge"
	"mvave-bridge/logging"
)

const (
	recorderQueue = 256
	writeTimeout  = 5 * time.Second
)

type record func(ctx context.Context, s *Store) error

// Recorder is a bridge.Observer that writes notifications to a Store from
// a background goroutine, so the MIDI path never waits on the disk.
type Recorder struct {
	store  *Store
	logger *logging.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan record
	done   chan struct{}
}

func NewRecorder(store *Store, logger *logging.Logger) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logging.OrDefault(logger).Category("history"),
		queue:  make(chan record, recorderQueue),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := rec(ctx, r.store); err != nil {
			r.logger.Warn("write failed", "error", err)
		}
		cancel()
	}
}

func (r *Recorder) enqueue(rec record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("history queue full, event dropped")
	}
}

func (r *Recorder) StateChanged(controlID string, on bool) {
	r.enqueue(func(ctx context.Context, s *Store) error {
		return s.RecordStateChange(ctx, controlID, on)
	})
}

func (r *Recorder) LearningProgress(controlID string, field bridge.Field, status bridge.LearnStatus) {
	r.enqueue(func(ctx context.Context, s *Store) error {
		return s.RecordLearning(ctx, controlID, field.String(), status.String())
	})
}

func (r *Recorder) ConnectionChanged(connected bool) {
	r.enqueue(func(ctx context.Context, s *Store) error {
		return s.RecordConnection(ctx, connected)
	})
}

// Close waits for queued writes. It does not close the store.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}
