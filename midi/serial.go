package midi

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DINBaud is the standard MIDI baud rate for a UART link.
const DINBaud = 31250

// serialPollTimeout bounds each blocking read so the loop notices Close.
const serialPollTimeout = 100 * time.Millisecond

// SerialGateway exchanges raw MIDI bytes over a serial device (a DIN-MIDI
// adapter or a microcontroller bridge). Input and output on the same device
// share one open port.
type SerialGateway struct {
	baud   int
	logger Logger

	mu    sync.Mutex
	ports map[string]*sharedPort
}

type sharedPort struct {
	port serial.Port
	refs int
	wmu  sync.Mutex
}

// NewSerialGateway creates a gateway; baud <= 0 selects DINBaud.
func NewSerialGateway(baud int, logger Logger) *SerialGateway {
	if baud <= 0 {
		baud = DINBaud
	}
	return &SerialGateway{baud: baud, logger: logger, ports: make(map[string]*sharedPort)}
}

func (g *SerialGateway) Inputs() ([]string, error) {
	return g.list()
}

func (g *SerialGateway) Outputs() ([]string, error) {
	return g.list()
}

func (g *SerialGateway) list() ([]string, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: list serial ports: %w", ErrConnection, err)
	}
	return names, nil
}

func (g *SerialGateway) acquire(name string) (*sharedPort, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sp, ok := g.ports[name]; ok {
		sp.refs++
		return sp, nil
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: g.baud})
	if err != nil {
		return nil, fmt.Errorf("%w: open serial %q: %w", ErrConnection, name, err)
	}
	if err := p.SetReadTimeout(serialPollTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: serial %q read timeout: %w", ErrConnection, name, err)
	}
	sp := &sharedPort{port: p, refs: 1}
	g.ports[name] = sp
	return sp, nil
}

func (g *SerialGateway) release(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	sp, ok := g.ports[name]
	if !ok {
		return nil
	}
	sp.refs--
	if sp.refs > 0 {
		return nil
	}
	delete(g.ports, name)
	return sp.port.Close()
}

func (g *SerialGateway) OpenInput(name string) (Reader, error) {
	sp, err := g.acquire(name)
	if err != nil {
		return nil, err
	}
	r := newChanReader(readerBuffer, g.logger)
	finished := make(chan struct{})
	r.onClose = func() error {
		<-finished
		return g.release(name)
	}

	go func() {
		defer close(finished)
		var p Parser
		buf := make([]byte, 64)
		for {
			select {
			case <-r.done:
				return
			default:
			}
			n, err := sp.port.Read(buf)
			if err != nil {
				r.fail(fmt.Errorf("%w: read serial %q: %w", ErrConnection, name, err))
				return
			}
			for _, b := range buf[:n] {
				if e, ok := p.Feed(b); ok {
					r.push(e)
				}
			}
		}
	}()
	return r, nil
}

func (g *SerialGateway) OpenOutput(name string) (Writer, error) {
	sp, err := g.acquire(name)
	if err != nil {
		return nil, err
	}
	return &serialWriter{gw: g, name: name, sp: sp}, nil
}

type serialWriter struct {
	gw     *SerialGateway
	name   string
	sp     *sharedPort
	mu     sync.Mutex
	closed bool
}

func (w *serialWriter) Send(e Event) error {
	msg := ToMessage(e)
	if msg == nil {
		return fmt.Errorf("%w: cannot encode %T", ErrValidation, e)
	}
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}
	w.sp.wmu.Lock()
	defer w.sp.wmu.Unlock()
	if _, err := w.sp.port.Write(msg); err != nil {
		return fmt.Errorf("%w: write serial %q: %w", ErrConnection, w.name, err)
	}
	return nil
}

func (w *serialWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.gw.release(w.name)
}
