package droid

import "math"

// Feetech STS servos report 4096 steps per revolution.
const stepsPerRevolution = 4096

// HomeDegrees is the center of every servo's travel.
const HomeDegrees = 180.0

// ServoConfig holds the homing and range configuration for a single servo.
type ServoConfig struct {
	Name     ServoName `json:"name" mapstructure:"name"`
	ID       int       `json:"id" mapstructure:"id"`
	Required bool      `json:"required" mapstructure:"required"`
	// Range is the allowed travel either side of HomeDegrees.
	Range         float64 `json:"range" mapstructure:"range"`
	Offset        float64 `json:"offset" mapstructure:"offset"`
	HomeTolerance float64 `json:"home_tolerance" mapstructure:"home_tolerance"`
	HomeVelocity  int     `json:"home_velocity" mapstructure:"home_velocity"`
	// ProfileVelocity is left unchanged on the servo when zero.
	ProfileVelocity int `json:"profile_velocity,omitempty" mapstructure:"profile_velocity"`
}

// Limits returns the lower and upper travel limits in degrees.
func (c ServoConfig) Limits() (lo, hi float64) {
	return HomeDegrees - c.Range, HomeDegrees + c.Range
}

// ServoConfigs holds all servo configurations in homing order.
type ServoConfigs []ServoConfig

// IDs returns the servo IDs in homing order.
func (c ServoConfigs) IDs() []int {
	ids := make([]int, 0, len(c))
	for _, sc := range c {
		ids = append(ids, sc.ID)
	}
	return ids
}

// ByID returns the configuration for a given servo ID.
func (c ServoConfigs) ByID(id int) (ServoConfig, bool) {
	for _, sc := range c {
		if sc.ID == id {
			return sc, true
		}
	}
	return ServoConfig{}, false
}

// DefaultServos returns the stock head and neck configuration.
func DefaultServos() ServoConfigs {
	return ServoConfigs{
		{Name: ServoNeck, ID: 1, Required: true, Range: 120, HomeTolerance: 5, HomeVelocity: 95, ProfileVelocity: 50},
		{Name: ServoHeadPitch, ID: 2, Range: 20, HomeTolerance: 5, HomeVelocity: 50, ProfileVelocity: 50},
		{Name: ServoHeadHeading, ID: 3, Range: 60, HomeTolerance: 5, HomeVelocity: 50},
		{Name: ServoHeadRoll, ID: 4, Range: 20, HomeTolerance: 5, HomeVelocity: 50},
	}
}

// DegreesToSteps converts an angle to a raw servo position.
func DegreesToSteps(deg float64) int {
	return int(math.Round(deg / 360 * stepsPerRevolution))
}

// StepsToDegrees converts a raw servo position to degrees.
func StepsToDegrees(steps int) float64 {
	return float64(steps) / stepsPerRevolution * 360
}
