package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Reader delivers events from one input endpoint. Next blocks until an event
// arrives or the reader is closed; ok is false once the stream has ended.
type Reader interface {
	Next() (e Event, ok bool)
	// Err reports why the stream ended. It is nil after a normal Close.
	Err() error
	Close() error
}

// Writer sends events to one output endpoint.
type Writer interface {
	Send(e Event) error
	Close() error
}

// Gateway abstracts the MIDI system: endpoint enumeration plus opening
// readers and writers by name.
type Gateway interface {
	Inputs() ([]string, error)
	Outputs() ([]string, error)
	OpenInput(name string) (Reader, error)
	OpenOutput(name string) (Writer, error)
}

// Logger is the subset of slog used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// PortGateway talks to the operating system's MIDI ports through rtmidi.
type PortGateway struct {
	drv        *rtmididrv.Driver
	virtualOut string
	logger     Logger
}

// NewPortGateway initialises the rtmidi driver. When virtualOut is set and no
// existing output carries that name, OpenOutput creates a virtual port with it.
func NewPortGateway(virtualOut string, logger Logger) (*PortGateway, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("%w: rtmididrv: %w", ErrConnection, err)
	}
	return &PortGateway{drv: drv, virtualOut: virtualOut, logger: logger}, nil
}

func (g *PortGateway) Inputs() ([]string, error) {
	ins, err := g.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("%w: list inputs: %w", ErrConnection, err)
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// Outputs lists the output ports. The virtual port name is offered as well so
// the operator can pick it before it exists.
func (g *PortGateway) Outputs() ([]string, error) {
	outs, err := g.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("%w: list outputs: %w", ErrConnection, err)
	}
	names := make([]string, 0, len(outs)+1)
	seenVirtual := false
	for _, out := range outs {
		names = append(names, out.String())
		if out.String() == g.virtualOut {
			seenVirtual = true
		}
	}
	if g.virtualOut != "" && !seenVirtual {
		names = append(names, g.virtualOut)
	}
	return names, nil
}

func (g *PortGateway) OpenInput(name string) (Reader, error) {
	ins, err := g.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("%w: list inputs: %w", ErrConnection, err)
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: input %q: %w", ErrConnection, name, ErrPortNotFound)
	}
	if err := found.Open(); err != nil {
		return nil, fmt.Errorf("%w: open input %q: %w", ErrConnection, name, err)
	}

	r := newChanReader(readerBuffer, g.logger)
	stop, err := gomidi.ListenTo(found, func(msg gomidi.Message, _ int32) {
		r.push(FromMessage(msg))
	}, gomidi.HandleError(func(listenErr error) {
		// runs on the driver's goroutine; fail only signals, never blocks
		r.fail(fmt.Errorf("%w: input %q: %w", ErrConnection, name, listenErr))
	}))
	if err != nil {
		_ = found.Close()
		return nil, fmt.Errorf("%w: listen %q: %w", ErrConnection, name, err)
	}
	r.onClose = func() error {
		stop()
		return found.Close()
	}
	return r, nil
}

func (g *PortGateway) OpenOutput(name string) (Writer, error) {
	outs, err := g.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("%w: list outputs: %w", ErrConnection, err)
	}
	var found drivers.Out
	for _, out := range outs {
		if out.String() == name {
			found = out
			break
		}
	}
	if found == nil {
		if name == "" || name != g.virtualOut {
			return nil, fmt.Errorf("%w: output %q: %w", ErrConnection, name, ErrPortNotFound)
		}
		found, err = g.drv.OpenVirtualOut(name)
		if err != nil {
			return nil, fmt.Errorf("%w: create virtual output %q: %w", ErrConnection, name, err)
		}
	} else if err := found.Open(); err != nil {
		return nil, fmt.Errorf("%w: open output %q: %w", ErrConnection, name, err)
	}

	send, err := gomidi.SendTo(found)
	if err != nil {
		_ = found.Close()
		return nil, fmt.Errorf("%w: send to %q: %w", ErrConnection, name, err)
	}
	return &portWriter{name: name, out: found, send: send}, nil
}

// Close releases the rtmidi driver.
func (g *PortGateway) Close() error {
	return g.drv.Close()
}

type portWriter struct {
	name   string
	out    drivers.Out
	send   func(msg gomidi.Message) error
	mu     sync.Mutex
	closed bool
}

func (w *portWriter) Send(e Event) error {
	msg := ToMessage(e)
	if msg == nil {
		return fmt.Errorf("%w: cannot encode %T", ErrValidation, e)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.send(msg); err != nil {
		return fmt.Errorf("%w: output %q: %w", ErrConnection, w.name, err)
	}
	return nil
}

func (w *portWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.out.Close()
}
