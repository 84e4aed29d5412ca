package droid

import (
	"context"

	"github.com/golang/geo/r3"
)

// AttitudeSensor is the IMU driver. Readings are latched by Update.
type AttitudeSensor interface {
	Available() bool
	// Update reads a new sample. fast skips the filter's slow path.
	Update(fast bool)
	// Acceleration returns the last linear acceleration in g.
	Acceleration() r3.Vector
	// FilteredAttitude returns roll, pitch and heading in degrees.
	// Heading wraps at 360.
	FilteredAttitude() (roll, pitch, heading float64)
	CalibrateGyroBias()
	SampleRateHz() float64
}

// BatteryMonitor is the battery telemetry driver.
type BatteryMonitor interface {
	Available() bool
	RefreshVoltage()
	RefreshCurrent()
	// Voltage returns the last refreshed voltage in volts.
	Voltage() float64
	// Current returns the last refreshed current draw in milliamps.
	Current() float64
}

// MotorActuator drives a DC motor. Power is clamped to [-255, 255].
type MotorActuator interface {
	SetPower(power int)
	SetEnabled(enabled bool)
}

// EncoderSensor reports wheel travel in millimeters.
type EncoderSensor interface {
	Update()
	Position() float64
}

// ServoSettings is what a servo bus reports back for a configured servo.
type ServoSettings struct {
	Lo              float64 `json:"lo"`
	Hi              float64 `json:"hi"`
	Offset          float64 `json:"offset"`
	ProfileVelocity int     `json:"profile_velocity"`
}

// ServoBus controls a chain of position servos addressed by ID.
type ServoBus interface {
	IsRunning() bool
	HasServo(ctx context.Context, id int) bool
	// Home moves the servo to its home position and waits until it is within
	// tolerance degrees. velocity bounds how fast it travels.
	Home(ctx context.Context, id int, tolerance float64, velocity int) error
	SetRange(ctx context.Context, id int, lo, hi float64) error
	SetOffset(ctx context.Context, id int, offset float64) error
	SetProfileVelocity(ctx context.Context, id int, velocity int) error
	Settings(ctx context.Context, id int) (ServoSettings, error)
}

// PeripheralBus is an addressed accessory bus such as I²C.
type PeripheralBus interface {
	// Probe returns nil if a device acknowledges at addr.
	Probe(addr uint16) error
	WriteLevels(addr uint16, levels ...uint8) error
}

// BalanceController receives the rest pitch found during the attitude check.
type BalanceController interface {
	SetGoal(pitch float64)
}

// OverrunExcuser suspends control loop overrun enforcement for one cycle.
type OverrunExcuser interface {
	ExcuseOverrun()
}

// MotionSample is one tick of telemetry taken during a motor ramp.
type MotionSample struct {
	Micros   int64     `json:"us"`
	Power    int       `json:"power"`
	Accel    r3.Vector `json:"accel"`
	Heading  float64   `json:"heading"`
	Position float64   `json:"position"`
	Current  float64   `json:"current"`
}
