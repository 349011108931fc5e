package bridge

import (
	"context"
	"errors"
	"sync"

	"mvave-bridge/logging"
	"mvave-bridge/midi"
)

// Handler consumes the input stream of a Session. Engine and SimpleRouter
// implement it.
type Handler interface {
	Attach(w midi.Writer)
	Detach()
	HandleIncoming(e midi.Event) error
}

// Session owns the open ports and the reader goroutine feeding a Handler.
type Session struct {
	gw      midi.Gateway
	handler Handler
	logger  *logging.Logger

	// opMu serializes Connect and Disconnect.
	opMu sync.Mutex

	mu      sync.Mutex
	reader  midi.Reader
	writer  midi.Writer
	in, out string
	stopped chan struct{}

	wg sync.WaitGroup
}

// NewSession binds a gateway to a handler.
func NewSession(gw midi.Gateway, h Handler, logger *logging.Logger) *Session {
	return &Session{
		gw:      gw,
		handler: h,
		logger:  logging.OrDefault(logger).Category("session"),
	}
}

// Connect opens both ports and starts reading. An existing connection is
// closed first. On failure nothing is left open. The connection also ends
// when ctx is cancelled.
func (s *Session) Connect(ctx context.Context, in, out string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.disconnectLocked(); err != nil {
		s.logger.Warn("closing previous connection", "error", err)
	}

	r, err := s.gw.OpenInput(in)
	if err != nil {
		return err
	}
	w, err := s.gw.OpenOutput(out)
	if err != nil {
		_ = r.Close()
		return err
	}

	stopped := make(chan struct{})
	s.mu.Lock()
	s.reader, s.writer = r, w
	s.in, s.out = in, out
	s.stopped = stopped
	s.mu.Unlock()

	s.handler.Attach(w)

	s.wg.Add(1)
	go s.readLoop(r, stopped)
	go func() {
		select {
		case <-ctx.Done():
			s.dropIfCurrent(r)
		case <-stopped:
		}
	}()

	s.logger.Info("connected", "input", in, "output", out)
	return nil
}

func (s *Session) readLoop(r midi.Reader, stopped chan struct{}) {
	defer s.wg.Done()
	defer close(stopped)

	for {
		ev, ok := r.Next()
		if !ok {
			break
		}
		if err := s.handler.HandleIncoming(ev); err != nil {
			s.logger.Debug("event not handled cleanly", "event", ev.String(), "error", err)
		}
	}

	if err := r.Err(); err != nil {
		s.logger.Warn("input stream ended", "error", err)
	}
	// Disconnect waits for this goroutine, so tear down from another one
	go s.dropIfCurrent(r)
}

// dropIfCurrent disconnects only if r is still the active reader.
func (s *Session) dropIfCurrent(r midi.Reader) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	current := s.reader == r
	s.mu.Unlock()
	if current {
		if err := s.disconnectLocked(); err != nil {
			s.logger.Warn("disconnect", "error", err)
		}
	}
}

// Disconnect stops the reader, detaches the handler and closes both ports.
// Idempotent.
func (s *Session) Disconnect() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.disconnectLocked()
}

func (s *Session) disconnectLocked() error {
	s.mu.Lock()
	r, w := s.reader, s.writer
	in, out := s.in, s.out
	s.reader, s.writer = nil, nil
	s.in, s.out = "", ""
	s.mu.Unlock()

	if r == nil {
		return nil
	}

	rerr := r.Close()
	s.wg.Wait()
	s.handler.Detach()
	werr := w.Close()

	s.logger.Info("disconnected", "input", in, "output", out)
	return errors.Join(rerr, werr)
}

// Connected reports whether ports are open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader != nil
}

// Ports returns the names of the open ports.
func (s *Session) Ports() (in, out string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in, s.out
}

// Done is closed when the current connection's reader stops. It returns
// nil while disconnected.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return nil
	}
	return s.stopped
}
