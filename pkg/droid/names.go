// Package droid provides the hardware vocabulary shared by the self-test:
// component names, collaborator interfaces, telemetry samples and configuration.
package droid

// ServoName identifies a servo on the droid's servo bus.
type ServoName string

// Servo names for the head and neck assembly.
const (
	ServoNeck        ServoName = "neck"
	ServoHeadPitch   ServoName = "head_pitch"
	ServoHeadHeading ServoName = "head_heading"
	ServoHeadRoll    ServoName = "head_roll"
)

// AllServos returns all servo names in homing order (matching servo IDs 1-4).
func AllServos() []ServoName {
	return []ServoName{
		ServoNeck,
		ServoHeadPitch,
		ServoHeadHeading,
		ServoHeadRoll,
	}
}

// MotorSide identifies one of the drive motors.
type MotorSide string

// Drive motors in test order.
const (
	MotorLeft  MotorSide = "left"
	MotorRight MotorSide = "right"
)

// AllMotors returns the drive motors in the order they are tested.
func AllMotors() []MotorSide {
	return []MotorSide{MotorLeft, MotorRight}
}
