package bridge

import (
	"errors"

	"mvave-bridge/midi"
)

// Errors returned by the registry, learner and engine. All are recoverable.
var (
	// ErrNotConnected is returned when learning or a manual trigger is
	// attempted without an open output.
	ErrNotConnected = errors.New("bridge: not connected")

	// ErrCapacity is returned when adding beyond the maximum switch count.
	ErrCapacity = errors.New("bridge: switch limit reached")

	// ErrProtected is returned when deleting a default switch.
	ErrProtected = errors.New("bridge: default switch cannot be deleted")

	// ErrUnknownSwitch is returned when a control id is not registered.
	ErrUnknownSwitch = errors.New("bridge: unknown switch")

	// ErrDiverged is returned when a state change could not be emitted, so the
	// receiving device no longer reflects the switch state.
	ErrDiverged = errors.New("bridge: output diverged from switch state")

	// ErrValidation is returned for controller numbers outside 0-127.
	ErrValidation = midi.ErrValidation

	// ErrConnection is returned when ports cannot be opened or written.
	ErrConnection = midi.ErrConnection
)
