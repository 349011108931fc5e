package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mvave-bridge/bridge"
	"mvave-bridge/config"
	"mvave-bridge/logging"
	"mvave-bridge/midi"
)

const (
	testInput  = "M-VAVE Chocolate 0"
	testOutput = "mwave_midi"
)

func newTestApp(t *testing.T, lb *midi.Loopback) *App {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := config.DefaultSettings()
	s.Bridge.SwitchesFile = filepath.Join(t.TempDir(), "switches.json")
	s.Bridge.PollInterval = 10 * time.Millisecond
	s.Bridge.AutoConnect = false

	engine, err := newEngine(s, logging.Discard())
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	profiles, err := config.NewProfiles(filepath.Join(t.TempDir(), "profiles"))
	if err != nil {
		t.Fatalf("NewProfiles: %v", err)
	}
	a := &App{
		ctx:      ctx,
		settings: s,
		gw:       lb,
		engine:   engine,
		session:  bridge.NewSession(lb, engine, logging.Discard()),
		devices:  midi.NewDeviceManager(lb, s.Bridge.PollInterval, logging.Discard()),
		profiles: profiles,
		logger:   logging.Discard(),
	}
	t.Cleanup(func() { a.Disconnect() })
	return a
}

func TestApp_ChoosePorts(t *testing.T) {
	tests := []struct {
		name    string
		inputs  []string
		prefer  [2]string
		wantIn  string
		wantOut string
		wantErr error
	}{
		{
			name:    "search key",
			inputs:  []string{"Midi Through Port-0", "USB Keys", testInput},
			wantIn:  testInput,
			wantOut: testOutput,
		},
		{
			name:    "preferred ports win",
			inputs:  []string{testInput, "Other"},
			prefer:  [2]string{"Other", "Synth"},
			wantIn:  "Other",
			wantOut: "Synth",
		},
		{
			name:    "no match",
			inputs:  []string{"USB Keys"},
			wantErr: errNoInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, midi.NewLoopback(tt.inputs, []string{testOutput}))
			a.prefer(tt.prefer[0], tt.prefer[1])

			in, out, err := a.choosePorts()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("choosePorts() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("choosePorts() error = %v", err)
			}
			if in != tt.wantIn || out != tt.wantOut {
				t.Errorf("choosePorts() = %q, %q, want %q, %q", in, out, tt.wantIn, tt.wantOut)
			}
		})
	}
}

func TestApp_ConnectDisconnect(t *testing.T) {
	lb := midi.NewLoopback([]string{testInput}, []string{testOutput})
	a := newTestApp(t, lb)

	if err := a.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if in, out := a.Ports(); in != testInput || out != testOutput {
		t.Errorf("Ports() = %q, %q", in, out)
	}
	if !a.engine.Connected() {
		t.Error("engine not attached after Connect")
	}

	if err := a.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if a.session.Connected() {
		t.Error("session still connected")
	}
}

func TestApp_SaveLoad(t *testing.T) {
	lb := midi.NewLoopback([]string{testInput}, []string{testOutput})
	a := newTestApp(t, lb)
	if err := a.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := a.engine.SetOutputCC("btn_1", 42); err != nil {
		t.Fatalf("SetOutputCC: %v", err)
	}
	if err := a.engine.SetMode("btn_2", bridge.Momentary); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	path, err := a.Save("es")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if path != a.settings.Bridge.SwitchesFile {
		t.Errorf("Save() path = %q", path)
	}

	if err := a.engine.SetOutputCC("btn_1", 11); err != nil {
		t.Fatalf("SetOutputCC: %v", err)
	}
	_, lang, warnings, err := a.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if lang != "es" {
		t.Errorf("Load() language = %q, want es", lang)
	}
	if len(warnings) != 0 {
		t.Errorf("Load() warnings = %v", warnings)
	}

	sw, _ := a.engine.Switch("btn_1")
	if sw.OutputCC != 42 {
		t.Errorf("btn_1 output = %v, want 42", sw.OutputCC)
	}
	sw, _ = a.engine.Switch("btn_2")
	if sw.Mode != bridge.Momentary {
		t.Errorf("btn_2 mode = %v, want momentary", sw.Mode)
	}
	if in, _ := a.Ports(); in != testInput {
		t.Errorf("still connected to %q", in)
	}
}

func TestApp_LoadReconnects(t *testing.T) {
	lb := midi.NewLoopback([]string{testInput, "M-VAVE Chocolate 1"}, []string{testOutput, "Synth"})
	a := newTestApp(t, lb)

	f := a.engine.Export()
	f.InputPort, f.OutputPort = "M-VAVE Chocolate 1", "Synth"
	if err := config.SaveFile(a.settings.Bridge.SwitchesFile, f); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	if err := a.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, _, _, err := a.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if in, out := a.Ports(); in != "M-VAVE Chocolate 1" || out != "Synth" {
		t.Errorf("Ports() after load = %q, %q", in, out)
	}
}

func TestApp_LoadMissing(t *testing.T) {
	a := newTestApp(t, midi.NewLoopback([]string{testInput}, []string{testOutput}))
	if _, _, _, err := a.Load(); err == nil {
		t.Fatal("Load() of a missing file succeeded")
	}
}

func TestApp_ProfileSnapshots(t *testing.T) {
	a := newTestApp(t, midi.NewLoopback([]string{testInput}, []string{testOutput}))
	a.profile = "gig"

	if _, err := a.Save("en"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	saves, err := a.profiles.Saves("gig")
	if err != nil {
		t.Fatalf("Saves: %v", err)
	}
	if len(saves) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(saves))
	}
	if _, _, _, err := a.Load(); err != nil {
		t.Fatalf("Load() from profile error = %v", err)
	}
}

func TestApp_SuperviseDisconnectsLostInput(t *testing.T) {
	lb := midi.NewLoopback([]string{testInput}, []string{testOutput})
	a := newTestApp(t, lb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.devices.Run(ctx)
	done := make(chan struct{})
	go func() {
		a.supervise()
		close(done)
	}()

	if err := a.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	lb.SetPorts(nil, []string{testOutput})

	deadline := time.Now().Add(2 * time.Second)
	for a.session.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("session still connected after the input disappeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervise did not return after the device manager stopped")
	}
}

func TestApp_SuperviseAutoConnects(t *testing.T) {
	lb := midi.NewLoopback(nil, []string{testOutput})
	a := newTestApp(t, lb)
	a.settings.Bridge.AutoConnect = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.devices.Run(ctx)
	go a.supervise()

	lb.SetPorts([]string{testInput}, []string{testOutput})

	deadline := time.Now().Add(2 * time.Second)
	for !a.session.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("no auto-connect after the controller appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestApp_SimpleModeRejectsLayout(t *testing.T) {
	a := newTestApp(t, midi.NewLoopback([]string{testInput}, []string{testOutput}))
	a.engine = nil
	if _, err := a.Save("en"); !errors.Is(err, errSimpleMode) {
		t.Errorf("Save() error = %v, want errSimpleMode", err)
	}
	if _, _, _, err := a.Load(); !errors.Is(err, errSimpleMode) {
		t.Errorf("Load() error = %v, want errSimpleMode", err)
	}
}

func TestNewSimpleRouter(t *testing.T) {
	s := config.DefaultSettings()
	if _, err := newSimpleRouter(s, logging.Discard()); err != nil {
		t.Fatalf("newSimpleRouter() error = %v", err)
	}
	s.Simple.ToggleCCs = []int{200}
	if _, err := newSimpleRouter(s, logging.Discard()); err == nil {
		t.Fatal("newSimpleRouter() accepted CC 200")
	}
}

func TestApp_StopEndsHotPlugBeforeDisconnect(t *testing.T) {
	lb := midi.NewLoopback([]string{testInput}, []string{testOutput})
	a := newTestApp(t, lb)
	a.settings.Bridge.AutoConnect = true

	stop := a.start(context.Background())
	if err := a.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := stop(); err != nil {
		t.Fatalf("stop() error = %v", err)
	}
	if a.session.Connected() {
		t.Fatal("still connected after stop")
	}

	// a controller appearing after shutdown must not reconnect
	lb.SetPorts([]string{testInput, "M-VAVE Chocolate 1"}, []string{testOutput})
	time.Sleep(5 * a.settings.Bridge.PollInterval)
	if a.session.Connected() {
		t.Error("reconnected after stop")
	}
	if err := a.Connect(); err == nil {
		t.Error("Connect() after stop succeeded")
	}
}
