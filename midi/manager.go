package midi

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultSearchKeys match the names the foot controller advertises.
var DefaultSearchKeys = []string{"M-VAVE", "Chocolate", "FootCtrl-bt"}

// PortEvent is emitted when the endpoint lists change or the watched input
// disappears.
type PortEvent struct {
	Type    PortEventType
	Inputs  []string
	Outputs []string
	Name    string // the lost input for PortLost
}

type PortEventType int

const (
	PortsChanged PortEventType = iota
	PortLost
)

// DeviceManager polls a Gateway for hot-plug changes.
type DeviceManager struct {
	gw          Gateway
	logger      Logger
	pollRate    time.Duration
	scanTimeout time.Duration

	mu      sync.RWMutex
	inputs  []string
	outputs []string
	watched string

	events chan PortEvent
}

// NewDeviceManager creates a poller; pollRate <= 0 means one second.
func NewDeviceManager(gw Gateway, pollRate time.Duration, logger Logger) *DeviceManager {
	if pollRate <= 0 {
		pollRate = time.Second
	}
	return &DeviceManager{
		gw:          gw,
		logger:      logger,
		pollRate:    pollRate,
		scanTimeout: 3 * time.Second,
		events:      make(chan PortEvent, 16),
	}
}

// Events returns the channel of port events. It is closed when Run returns.
func (dm *DeviceManager) Events() <-chan PortEvent {
	return dm.events
}

// Ports returns the last observed endpoint lists.
func (dm *DeviceManager) Ports() (inputs, outputs []string) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return slices.Clone(dm.inputs), slices.Clone(dm.outputs)
}

// Watch marks the input the session is reading from. An empty name stops
// watching.
func (dm *DeviceManager) Watch(input string) {
	dm.mu.Lock()
	dm.watched = input
	dm.mu.Unlock()
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()
	defer close(dm.events)

	dm.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	type portsResult struct {
		inputs, outputs []string
		err             error
	}

	// enumeration can hang on some backends; skip the round instead of
	// stalling the loop
	ch := make(chan portsResult, 1)
	go func() {
		ins, err := dm.gw.Inputs()
		if err != nil {
			ch <- portsResult{err: err}
			return
		}
		outs, err := dm.gw.Outputs()
		ch <- portsResult{inputs: ins, outputs: outs, err: err}
	}()

	var res portsResult
	select {
	case res = <-ch:
	case <-time.After(dm.scanTimeout):
		if dm.logger != nil {
			dm.logger.Warn("midi: port scan timed out", "timeout", dm.scanTimeout)
		}
		return
	case <-ctx.Done():
		return
	}
	if res.err != nil {
		if dm.logger != nil {
			dm.logger.Debug("midi: port scan failed", "error", res.err)
		}
		return
	}

	dm.mu.Lock()
	changed := !slices.Equal(dm.inputs, res.inputs) || !slices.Equal(dm.outputs, res.outputs)
	dm.inputs, dm.outputs = res.inputs, res.outputs
	lost := ""
	if dm.watched != "" && !slices.Contains(res.inputs, dm.watched) {
		lost = dm.watched
		dm.watched = ""
	}
	dm.mu.Unlock()

	if changed {
		dm.emit(ctx, PortEvent{Type: PortsChanged, Inputs: slices.Clone(res.inputs), Outputs: slices.Clone(res.outputs)})
	}
	if lost != "" {
		dm.emit(ctx, PortEvent{Type: PortLost, Name: lost})
	}
}

func (dm *DeviceManager) emit(ctx context.Context, ev PortEvent) {
	select {
	case dm.events <- ev:
	case <-ctx.Done():
	}
}

// IsSystemPort reports endpoints that never carry controller traffic.
func IsSystemPort(name string) bool {
	return strings.Contains(strings.ToLower(name), "midi through")
}

// PickPort returns the first name containing one of the search keys
// (case-insensitive), skipping system ports. Keys are tried in order.
func PickPort(names, searchKeys []string) (string, bool) {
	for _, key := range searchKeys {
		key = strings.ToLower(key)
		if key == "" {
			continue
		}
		for _, name := range names {
			if IsSystemPort(name) {
				continue
			}
			if strings.Contains(strings.ToLower(name), key) {
				return name, true
			}
		}
	}
	return "", false
}
