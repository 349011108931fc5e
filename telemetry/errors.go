package telemetry

import "errors"

// Sentinel errors for the telemetry sinks and the remote command surface.
var (
	// ErrDisabled is returned by Connect when the sink is switched off in settings.
	ErrDisabled = errors.New("telemetry: disabled in settings")

	// ErrNotConnected is returned when publishing on a disconnected client.
	ErrNotConnected = errors.New("telemetry: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("telemetry: connection failed")

	// ErrPublishFailed is returned when a publish does not complete.
	ErrPublishFailed = errors.New("telemetry: publish failed")

	// ErrSubscribeFailed is returned when a subscription is refused or times out.
	ErrSubscribeFailed = errors.New("telemetry: subscribe failed")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("telemetry: topic cannot be empty")

	// ErrBadCommand is returned for a command topic or payload that cannot be executed.
	ErrBadCommand = errors.New("telemetry: bad command")
)
