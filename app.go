package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"mvave-bridge/bridge"
	"mvave-bridge/config"
	"mvave-bridge/logging"
	"mvave-bridge/midi"
)

var (
	errNoInput    = errors.New("no matching input port")
	errNoOutput   = errors.New("no output port")
	errSimpleMode = errors.New("not available in simple mode")
)

// router is what a Session drives: the switch engine or the simple bridge.
type router interface {
	bridge.Handler
	AddObserver(o bridge.Observer)
}

// App owns port selection and persistence. It implements tui.Actions.
type App struct {
	ctx      context.Context
	settings *config.Settings
	gw       midi.Gateway
	engine   *bridge.Engine // nil in simple mode
	session  *bridge.Session
	devices  *midi.DeviceManager
	profiles *config.Profiles
	profile  string
	logger   *logging.Logger

	// preferred ports; flags first, then the loaded layout, then settings
	mu        sync.Mutex
	preferIn  string
	preferOut string
}

func (a *App) preferred() (in, out string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	in, out = a.preferIn, a.preferOut
	if in == "" {
		in = a.settings.Bridge.InputPort
	}
	if out == "" {
		out = a.settings.Bridge.OutputPort
	}
	if a.settings.Bridge.Gateway == config.GatewaySerial && a.settings.Serial.Port != "" {
		if in == "" {
			in = a.settings.Serial.Port
		}
		if out == "" {
			out = a.settings.Serial.Port
		}
	}
	return in, out
}

func (a *App) prefer(in, out string) {
	a.mu.Lock()
	if in != "" {
		a.preferIn = in
	}
	if out != "" {
		a.preferOut = out
	}
	a.mu.Unlock()
}

// choosePorts resolves the endpoints to open. An unnamed input is searched
// by key; an unnamed output is the virtual port.
func (a *App) choosePorts() (in, out string, err error) {
	in, out = a.preferred()
	inputs, outputs := a.devices.Ports()

	if in == "" {
		if len(inputs) == 0 {
			if inputs, err = a.gw.Inputs(); err != nil {
				return "", "", err
			}
		}
		name, ok := midi.PickPort(inputs, a.settings.Bridge.SearchKeys)
		if !ok {
			return "", "", fmt.Errorf("%w: searched %v", errNoInput, a.settings.Bridge.SearchKeys)
		}
		in = name
	}
	if out == "" {
		out = a.settings.Bridge.VirtualOutput
	}
	if out == "" {
		if len(outputs) == 0 {
			if outputs, err = a.gw.Outputs(); err != nil {
				return "", "", err
			}
		}
		name, ok := midi.PickPort(outputs, a.settings.Bridge.SearchKeys)
		if !ok {
			return "", "", errNoOutput
		}
		out = name
	}
	return in, out, nil
}

func (a *App) Connect() error {
	in, out, err := a.choosePorts()
	if err != nil {
		return err
	}
	return a.connect(in, out)
}

func (a *App) connect(in, out string) error {
	if err := a.session.Connect(a.ctx, in, out); err != nil {
		return err
	}
	a.devices.Watch(in)
	a.logger.Info("connected", "input", in, "output", out)
	return nil
}

func (a *App) Disconnect() error {
	a.devices.Watch("")
	return a.session.Disconnect()
}

func (a *App) Ports() (in, out string) {
	return a.session.Ports()
}

// Save writes the layout with the current ports and language. With a
// profile selected a timestamped snapshot is written as well.
func (a *App) Save(language string) (string, error) {
	if a.engine == nil {
		return "", errSimpleMode
	}
	f := a.engine.Export()
	f.Language = language
	f.InputPort, f.OutputPort = a.session.Ports()
	if f.InputPort == "" && f.OutputPort == "" {
		f.InputPort, f.OutputPort = a.preferred()
	}

	path, err := a.settings.SwitchesFile()
	if err != nil {
		return "", err
	}
	if err := config.SaveFile(path, f); err != nil {
		return "", err
	}
	a.logger.Info("layout saved", "path", path, "switches", len(f.Switches))

	if a.profile != "" {
		name, err := a.profiles.Save(a.profile, "", f)
		if err != nil {
			a.logger.Warn("profile snapshot failed", "profile", a.profile, "error", err)
		} else {
			a.logger.Info("profile snapshot saved", "profile", a.profile, "file", name)
		}
	}
	return path, nil
}

// Load applies the saved layout: the newest profile snapshot when a profile
// is selected, the switches file otherwise. A live connection is moved to
// the layout's ports when they differ.
func (a *App) Load() (path, language string, warnings []string, err error) {
	if a.engine == nil {
		return "", "", nil, errSimpleMode
	}
	nDefault, nMax := a.engine.Bounds()

	var f config.SwitchFile
	if a.profile != "" {
		path = filepath.Join(a.profiles.Dir, a.profile)
		f, warnings, err = a.profiles.Load(a.profile, "", nDefault, nMax)
	} else {
		if path, err = a.settings.SwitchesFile(); err != nil {
			return "", "", nil, err
		}
		f, warnings, err = config.LoadFile(path, nDefault, nMax)
	}
	if err != nil {
		return path, "", nil, err
	}
	if err := a.engine.Apply(f); err != nil {
		return path, "", warnings, err
	}
	for _, w := range warnings {
		a.logger.Warn("layout", "path", path, "warning", w)
	}
	a.logger.Info("layout loaded", "path", path, "switches", len(f.Switches))

	a.prefer(f.InputPort, f.OutputPort)
	if err := a.reconnectFor(f); err != nil {
		return path, f.Language, warnings, err
	}
	return path, f.Language, warnings, nil
}

func (a *App) reconnectFor(f config.SwitchFile) error {
	if !a.session.Connected() {
		return nil
	}
	in, out := a.session.Ports()
	newIn, newOut := in, out
	if f.InputPort != "" {
		newIn = f.InputPort
	}
	if f.OutputPort != "" {
		newOut = f.OutputPort
	}
	if newIn == in && newOut == out {
		return nil
	}
	a.logger.Info("reconnecting to layout ports", "input", newIn, "output", newOut)
	return a.connect(newIn, newOut)
}

// start runs hot-plug handling under ctx. The returned stop ends it, waits
// for the supervisor to return and then disconnects, so nothing reconnects
// once shutdown has begun.
func (a *App) start(ctx context.Context) (stop func() error) {
	ctx, cancel := context.WithCancel(ctx)
	a.ctx = ctx
	done := make(chan struct{})
	go a.devices.Run(ctx)
	go func() {
		defer close(done)
		a.supervise()
	}()
	return func() error {
		cancel()
		<-done
		return a.Disconnect()
	}
}

// supervise consumes hot-plug events until the device manager stops: a lost
// input ends the session, a changed port list triggers auto-connect.
func (a *App) supervise() {
	for ev := range a.devices.Events() {
		switch ev.Type {
		case midi.PortLost:
			a.logger.Warn("input port lost", "port", ev.Name)
			if err := a.Disconnect(); err != nil {
				a.logger.Warn("disconnect after port loss", "error", err)
			}
		case midi.PortsChanged:
			a.logger.Debug("ports changed", "inputs", ev.Inputs, "outputs", ev.Outputs)
			if !a.settings.Bridge.AutoConnect || a.session.Connected() {
				continue
			}
			if err := a.Connect(); err != nil {
				a.logger.Debug("auto-connect skipped", "error", err)
			}
		}
	}
}
