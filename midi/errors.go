package midi

import "errors"

// Errors returned by gateways and CC parsing.
var (
	// ErrConnection is returned when an endpoint cannot be opened, read or
	// written. Callers see it wrapped with the endpoint name.
	ErrConnection = errors.New("midi: connection failed")

	// ErrPortNotFound is returned when no endpoint matches the requested name.
	ErrPortNotFound = errors.New("midi: port not found")

	// ErrClosed is returned by Send after the writer has been closed.
	ErrClosed = errors.New("midi: port closed")

	// ErrValidation is returned for controller numbers outside 0-127 or
	// values that are not numbers at all.
	ErrValidation = errors.New("midi: invalid controller number")
)
