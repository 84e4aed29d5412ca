// Package droid is the power-on self-test for a self-balancing droid.
//
// Before the droid is allowed to drive, the self-test checks that it stands
// upright, that the battery is within limits, homes the head servos, probes
// the antenna lights, and then ramps each drive motor while watching the IMU,
// wheel encoder and battery current. From that telemetry it works out how each
// motor is wired: disconnected, reversed, encoder reversed, blocked and so on.
//
// # Installation
//
//	go install github.com/gwillem/droid/cmd/droid@latest
//
// # Usage
//
// Find the servo bus and write droid.json:
//
//	droid setup --i2c /dev/i2c-1
//
// Run the self-test, optionally with live telemetry or injected faults:
//
//	droid selftest --watch
//	droid selftest --fault left:reversed --format yaml
//
// # Packages
//
//   - cmd/droid: CLI with setup, selftest and init-config commands
//   - pkg/droid: Configuration, limits and hardware interfaces
//   - pkg/selftest: Self-test orchestrator and motor fault classifier
//   - pkg/sim: Simulated droid with injectable wiring faults
//   - pkg/feetechbus: Head servos on a Feetech STS bus
//   - pkg/i2cbus: Antenna controller on I²C
//   - pkg/feedback: Cue and console sinks
//   - pkg/telemetry: Live sample stream for the viewer
package droid
