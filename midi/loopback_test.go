package midi

import (
	"errors"
	"testing"
	"time"
)

func TestLoopback_InjectAndRead(t *testing.T) {
	lb := NewLoopback([]string{"FootCtrl"}, []string{"out"})

	r, err := lb.OpenInput("FootCtrl")
	if err != nil {
		t.Fatalf("OpenInput: %v", err)
	}
	if !lb.Inject("FootCtrl", ControlChange{Control: 20, Value: 127}) {
		t.Fatal("Inject reported no listener")
	}

	e, ok := r.Next()
	if !ok {
		t.Fatal("Next ended early")
	}
	if cc, _ := e.(ControlChange); cc.Control != 20 || cc.Value != 127 {
		t.Errorf("Next = %v", e)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := r.Next(); ok {
		t.Error("Next after Close should end the stream")
	}
	if r.Err() != nil {
		t.Errorf("Err after Close = %v, want nil", r.Err())
	}
	if lb.Listening("FootCtrl") != 0 {
		t.Error("reader still registered after Close")
	}
}

func TestLoopback_CloseUnblocksNext(t *testing.T) {
	lb := NewLoopback([]string{"in"}, nil)
	r, err := lb.OpenInput("in")
	if err != nil {
		t.Fatalf("OpenInput: %v", err)
	}

	done := make(chan struct{})
	go func() {
		r.Next()
		close(done)
	}()

	_ = r.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Next still blocked after Close")
	}
}

func TestLoopback_Unplug(t *testing.T) {
	lb := NewLoopback([]string{"in"}, nil)
	r, _ := lb.OpenInput("in")

	lb.Unplug("in")

	if _, ok := r.Next(); ok {
		t.Fatal("Next should end after unplug")
	}
	if !errors.Is(r.Err(), ErrConnection) {
		t.Errorf("Err = %v, want ErrConnection", r.Err())
	}
	// Close still releases the port after a failure
	_ = r.Close()
	if lb.Listening("in") != 0 {
		t.Error("reader still registered after Close")
	}
}

func TestLoopback_OpenErrors(t *testing.T) {
	lb := NewLoopback([]string{"in"}, []string{"out"})

	if _, err := lb.OpenInput("missing"); !errors.Is(err, ErrPortNotFound) || !errors.Is(err, ErrConnection) {
		t.Errorf("OpenInput(missing) = %v", err)
	}

	lb.FailOpen("out", errors.New("busy"))
	if _, err := lb.OpenOutput("out"); !errors.Is(err, ErrConnection) {
		t.Errorf("OpenOutput with failure = %v", err)
	}
	lb.FailOpen("out", nil)

	w, err := lb.OpenOutput("out")
	if err != nil {
		t.Fatalf("OpenOutput: %v", err)
	}
	if err := w.Send(NoteOn{Note: 60, Velocity: 1}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = w.Close()
	if err := w.Send(NoteOn{Note: 60, Velocity: 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	if got := lb.Sent("out"); len(got) != 1 {
		t.Errorf("Sent = %v, want one event", got)
	}
}

func TestChanReader_DropsWhenFull(t *testing.T) {
	r := newChanReader(1, nil)
	if !r.push(NoteOn{Note: 1}) {
		t.Fatal("first push should fit")
	}
	if r.push(NoteOn{Note: 2}) {
		t.Error("second push should be dropped")
	}
	if r.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", r.Dropped())
	}
}
