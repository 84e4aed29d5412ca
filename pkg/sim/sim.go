// Package sim provides a deterministic simulated droid. Every wiring fault
// the self-test can classify can be injected per motor.
package sim

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/gwillem/droid/pkg/droid"
)

// Fault is a wiring or mechanical fault of one drive motor.
type Fault string

const (
	FaultNone                Fault = "none"
	FaultMotorDisconnected   Fault = "disconnected"
	FaultEncoderDisconnected Fault = "encoder_disconnected"
	FaultMotorReversed       Fault = "reversed"
	FaultEncoderReversed     Fault = "encoder_reversed"
	FaultBothReversed        Fault = "both_reversed"
	FaultBlocked             Fault = "blocked"
	FaultIMURotated          Fault = "imu_rotated"
)

// AllFaults returns every fault, FaultNone first.
func AllFaults() []Fault {
	return []Fault{
		FaultNone,
		FaultMotorDisconnected,
		FaultEncoderDisconnected,
		FaultMotorReversed,
		FaultEncoderReversed,
		FaultBothReversed,
		FaultBlocked,
		FaultIMURotated,
	}
}

// ParseFault parses a fault name.
func ParseFault(s string) (Fault, error) {
	for _, f := range AllFaults() {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown fault %q", s)
}

// Drive model. A wheel starts turning once the commanded power exceeds
// stiction; travel, acceleration and turn rate grow with the excess.
const (
	stiction       = 30.0
	mmPerPowerTick = 0.05
	degreesPerMM   = 0.1
	gPerPower      = 0.004
	idleCurrent    = 150.0
	mAPerPower     = 4.0
	stallCurrent   = 2500.0
)

// Options describe the simulated droid.
type Options struct {
	// Faults per motor. Motors not listed are healthy.
	Faults map[droid.MotorSide]Fault

	NoIMU     bool
	NoBattery bool
	Tilted    bool

	Voltage    float64
	Heading    float64
	RestPitch  float64
	SampleRate float64
}

// DefaultOptions returns a healthy, level droid on a full battery.
func DefaultOptions() Options {
	return Options{
		Voltage:    14.8,
		Heading:    5,
		RestPitch:  2.5,
		SampleRate: 100,
	}
}

// World is the shared physical state of the simulated droid.
type World struct {
	mu sync.Mutex

	opts    Options
	heading float64
	accel   r3.Vector
	current float64

	motors   map[droid.MotorSide]*Motor
	encoders map[droid.MotorSide]*Encoder

	updates    int
	calibrated bool
	goal       float64
	excused    int
}

// New creates a simulated droid with a motor and encoder per side.
func New(opts Options) *World {
	w := &World{
		opts:     opts,
		heading:  opts.Heading,
		accel:    restAccel(opts.Tilted),
		current:  idleCurrent,
		motors:   make(map[droid.MotorSide]*Motor),
		encoders: make(map[droid.MotorSide]*Encoder),
	}
	for _, side := range droid.AllMotors() {
		fault := opts.Faults[side]
		if fault == "" {
			fault = FaultNone
		}
		m := &Motor{world: w, fault: fault}
		w.motors[side] = m
		w.encoders[side] = &Encoder{motor: m}
	}
	return w
}

func restAccel(tilted bool) r3.Vector {
	if tilted {
		return r3.Vector{X: 0.35, Y: 0.05, Z: 0.93}
	}
	return r3.Vector{X: 0.01, Y: -0.02, Z: 0.98}
}

// IMU returns the attitude sensor.
func (w *World) IMU() *IMU { return &IMU{world: w} }

// Battery returns the battery monitor.
func (w *World) Battery() *Battery { return &Battery{world: w} }

// Motor returns the motor on the given side.
func (w *World) Motor(side droid.MotorSide) *Motor { return w.motors[side] }

// Encoder returns the encoder on the given side.
func (w *World) Encoder(side droid.MotorSide) *Encoder { return w.encoders[side] }

// SetGoal implements droid.BalanceController.
func (w *World) SetGoal(pitch float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.goal = pitch
}

// Goal returns the last balance setpoint.
func (w *World) Goal() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.goal
}

// ExcuseOverrun implements droid.OverrunExcuser.
func (w *World) ExcuseOverrun() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.excused++
}

// Excused returns how often overrun enforcement was suspended.
func (w *World) Excused() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.excused
}

// Updates returns how many IMU samples were taken.
func (w *World) Updates() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updates
}

// Calibrated reports whether the gyro bias was calibrated.
func (w *World) Calibrated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calibrated
}

// Heading returns the current heading in degrees.
func (w *World) Heading() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.heading
}

// IMU is the simulated attitude sensor.
type IMU struct {
	world *World
}

func (i *IMU) Available() bool { return !i.world.opts.NoIMU }

func (i *IMU) Update(bool) {
	i.world.mu.Lock()
	defer i.world.mu.Unlock()
	i.world.updates++
}

func (i *IMU) Acceleration() r3.Vector {
	i.world.mu.Lock()
	defer i.world.mu.Unlock()
	return i.world.accel
}

func (i *IMU) FilteredAttitude() (roll, pitch, heading float64) {
	i.world.mu.Lock()
	defer i.world.mu.Unlock()
	return 0, i.world.opts.RestPitch, i.world.heading
}

func (i *IMU) CalibrateGyroBias() {
	i.world.mu.Lock()
	defer i.world.mu.Unlock()
	i.world.calibrated = true
}

func (i *IMU) SampleRateHz() float64 { return i.world.opts.SampleRate }

// Battery is the simulated battery monitor.
type Battery struct {
	world *World
}

func (b *Battery) Available() bool {
	return !b.world.opts.NoBattery
}

// RefreshVoltage is a no-op; the simulated voltage is fixed.
func (b *Battery) RefreshVoltage() {}

// RefreshCurrent is a no-op; current follows the motors.
func (b *Battery) RefreshCurrent() {}

func (b *Battery) Voltage() float64 {
	return b.world.opts.Voltage
}

func (b *Battery) Current() float64 {
	b.world.mu.Lock()
	defer b.world.mu.Unlock()
	return b.world.current
}

// Motor is a simulated drive motor. Each SetPower call advances the world
// by one control tick.
type Motor struct {
	world   *World
	fault   Fault
	enabled bool
	power   int
	travel  float64
	history []int
}

func (m *Motor) SetEnabled(enabled bool) {
	m.world.mu.Lock()
	defer m.world.mu.Unlock()
	m.enabled = enabled
}

func (m *Motor) SetPower(power int) {
	w := m.world
	w.mu.Lock()
	defer w.mu.Unlock()

	power = max(-255, min(255, power))
	m.power = power
	m.history = append(m.history, power)

	eff := float64(power)
	if !m.enabled || m.fault == FaultMotorDisconnected {
		eff = 0
	}
	if m.fault == FaultMotorReversed || m.fault == FaultBothReversed {
		eff = -eff
	}

	var drive float64
	if math.Abs(eff) > stiction {
		drive = eff - math.Copysign(stiction, eff)
	}

	w.current = idleCurrent + math.Abs(eff)*mAPerPower
	if m.fault == FaultBlocked {
		if drive != 0 {
			w.current = stallCurrent
		}
		drive = 0
	}

	v := drive * mmPerPowerTick
	m.travel += v
	w.heading = math.Mod(w.heading-v*degreesPerMM+360, 360)

	ax := drive * gPerPower
	if m.fault == FaultIMURotated {
		w.accel = r3.Vector{X: 0, Y: ax, Z: 1}
	} else {
		w.accel = r3.Vector{X: ax, Y: 0, Z: 1}
	}
}

// Enabled reports whether the motor driver is enabled.
func (m *Motor) Enabled() bool {
	m.world.mu.Lock()
	defer m.world.mu.Unlock()
	return m.enabled
}

// Power returns the last commanded power.
func (m *Motor) Power() int {
	m.world.mu.Lock()
	defer m.world.mu.Unlock()
	return m.power
}

// History returns every power level commanded so far.
func (m *Motor) History() []int {
	m.world.mu.Lock()
	defer m.world.mu.Unlock()
	return append([]int(nil), m.history...)
}

// Encoder is the simulated wheel encoder of a motor.
type Encoder struct {
	motor    *Motor
	position float64
}

func (e *Encoder) Update() {
	m := e.motor
	m.world.mu.Lock()
	defer m.world.mu.Unlock()
	switch m.fault {
	case FaultEncoderDisconnected:
		e.position = 0
	case FaultEncoderReversed, FaultBothReversed:
		e.position = -m.travel
	default:
		e.position = m.travel
	}
}

func (e *Encoder) Position() float64 {
	e.motor.world.mu.Lock()
	defer e.motor.world.mu.Unlock()
	return e.position
}
