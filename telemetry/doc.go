// Package telemetry mirrors the bridge to external systems.
//
// Publisher and InfluxRecorder are bridge.Observer sinks: switch state,
// learn progress and MIDI connection state go to MQTT topics and to
// InfluxDB points. CommandListener is the reverse direction and drives the
// engine from <prefix>/cmd/<action> messages, so a home-automation
// controller can trigger or reconfigure switches remotely.
package telemetry
