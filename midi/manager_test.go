package midi

import (
	"context"
	"testing"
	"time"
)

func TestPickPort(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  string
		found bool
	}{
		{
			name:  "matches by key",
			names: []string{"Midi Through:Midi Through Port-0 14:0", "FootCtrl-bt:FootCtrl-bt MIDI 1 20:0"},
			want:  "FootCtrl-bt:FootCtrl-bt MIDI 1 20:0",
			found: true,
		},
		{
			name:  "case insensitive",
			names: []string{"m-vave chocolate"},
			want:  "m-vave chocolate",
			found: true,
		},
		{
			name:  "earlier key wins",
			names: []string{"Chocolate Plus", "M-VAVE SMC"},
			want:  "M-VAVE SMC",
			found: true,
		},
		{
			name:  "system port skipped",
			names: []string{"Midi Through Chocolate"},
			found: false,
		},
		{
			name:  "nothing matches",
			names: []string{"Launchpad X"},
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickPort(tt.names, DefaultSearchKeys)
			if ok != tt.found || got != tt.want {
				t.Errorf("PickPort() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.found)
			}
		})
	}
}

func nextPortEvent(t *testing.T, dm *DeviceManager) PortEvent {
	t.Helper()
	select {
	case ev := <-dm.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no port event")
	}
	return PortEvent{}
}

func TestDeviceManager_Scan(t *testing.T) {
	lb := NewLoopback([]string{"FootCtrl"}, []string{"out"})
	dm := NewDeviceManager(lb, 10*time.Millisecond, nil)
	dm.Watch("FootCtrl")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dm.Run(ctx)

	ev := nextPortEvent(t, dm)
	if ev.Type != PortsChanged || len(ev.Inputs) != 1 || ev.Inputs[0] != "FootCtrl" {
		t.Fatalf("first event = %+v", ev)
	}

	lb.SetPorts(nil, []string{"out"})

	ev = nextPortEvent(t, dm)
	if ev.Type != PortsChanged || len(ev.Inputs) != 0 {
		t.Fatalf("second event = %+v", ev)
	}
	ev = nextPortEvent(t, dm)
	if ev.Type != PortLost || ev.Name != "FootCtrl" {
		t.Fatalf("third event = %+v", ev)
	}

	ins, outs := dm.Ports()
	if len(ins) != 0 || len(outs) != 1 {
		t.Errorf("Ports() = %v, %v", ins, outs)
	}

	cancel()
	for range dm.Events() {
	}
}
