package selftest

import (
	"fmt"

	"github.com/gwillem/droid/pkg/droid"
)

// Cue identifies a feedback sound or announcement.
type Cue int

const (
	CueStarting Cue = iota
	CueIMU
	CueCalibrating
	CuePower
	CueVoltageTooLow
	CueVoltageTooHigh
	CueServos
	CueLeftMotor
	CueRightMotor
	CueMotor
	CueOK
	CueFailure
	CueUntested
	CueDisconnected
	CueEncoderDisconnected
	CueReversed
	CueEncoderReversed
	CueBlocked

	numCues
)

var cueNames = [numCues]string{
	CueStarting:            "selftest_starting",
	CueIMU:                 "imu",
	CueCalibrating:         "calibrating",
	CuePower:               "power",
	CueVoltageTooLow:       "voltage_too_low",
	CueVoltageTooHigh:      "voltage_too_high",
	CueServos:              "servos",
	CueLeftMotor:           "left_motor",
	CueRightMotor:          "right_motor",
	CueMotor:               "motor",
	CueOK:                  "ok",
	CueFailure:             "failure",
	CueUntested:            "untested",
	CueDisconnected:        "disconnected",
	CueEncoderDisconnected: "encoder_disconnected",
	CueReversed:            "reversed",
	CueEncoderReversed:     "encoder_reversed",
	CueBlocked:             "blocked",
}

func (c Cue) String() string {
	if c < 0 || c >= numCues {
		return fmt.Sprintf("Cue(%d)", int(c))
	}
	return cueNames[c]
}

// motorStatusCues is indexed by MotorStatus; every status has at least one cue.
var motorStatusCues = [numMotorStatuses][]Cue{
	Untested:            {CueUntested},
	Ok:                  {CueOK},
	Disconnected:        {CueDisconnected},
	EncoderDisconnected: {CueEncoderDisconnected},
	Reversed:            {CueReversed},
	EncoderReversed:     {CueEncoderReversed},
	BothReversed:        {CueReversed, CueEncoderReversed},
	Blocked:             {CueBlocked},
	Other:               {CueFailure},
}

// CuesFor returns the cues announcing a motor status.
func CuesFor(s MotorStatus) []Cue {
	if s < 0 || s >= numMotorStatuses {
		return []Cue{CueFailure}
	}
	return motorStatusCues[s]
}

var motorSideCues = map[droid.MotorSide]Cue{
	droid.MotorLeft:  CueLeftMotor,
	droid.MotorRight: CueRightMotor,
}

func sideCue(side droid.MotorSide) Cue {
	if c, ok := motorSideCues[side]; ok {
		return c
	}
	return CueMotor
}

// FeedbackSink receives cues and console lines. It is fire-and-forget:
// a sink cannot fail a self-test.
type FeedbackSink interface {
	Cue(c Cue)
	Log(line string)
}

// SampleObserver receives every telemetry sample taken during a motor ramp.
type SampleObserver interface {
	Observe(side droid.MotorSide, s droid.MotionSample)
}

type nopSink struct{}

func (nopSink) Cue(Cue)    {}
func (nopSink) Log(string) {}

// guardedSink keeps a misbehaving sink from aborting the run.
type guardedSink struct {
	sink FeedbackSink
}

func (g guardedSink) Cue(c Cue) {
	defer func() { _ = recover() }()
	g.sink.Cue(c)
}

func (g guardedSink) Log(line string) {
	defer func() { _ = recover() }()
	g.sink.Log(line)
}

func (g guardedSink) logf(format string, args ...any) {
	g.Log(fmt.Sprintf(format, args...))
}
