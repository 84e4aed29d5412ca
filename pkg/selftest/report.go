package selftest

import "github.com/gwillem/droid/pkg/droid"

// Step names a stage of the self-test.
type Step string

const (
	StepAttitude Step = "attitude"
	StepBattery  Step = "battery"
	StepServos   Step = "servos"
	StepAntennas Step = "antennas"
	StepMotors   Step = "motors"
)

// Outcome is the result of a single step.
type Outcome string

const (
	Untried  Outcome = "untested"
	Pass     Outcome = "pass"
	Degraded Outcome = "degraded"
	Failed   Outcome = "failed"
)

type StepResult struct {
	Step    Step    `json:"step"`
	Outcome Outcome `json:"outcome"`
}

// Report aggregates one self-test run. Steps after a critical failure stay
// untested.
type Report struct {
	Code      ResultCode    `json:"code"`
	Error     string        `json:"error,omitempty"`
	Steps     []StepResult  `json:"steps"`
	RestPitch float64       `json:"rest_pitch"`
	Voltage   float64       `json:"voltage"`
	Current   float64       `json:"current"`
	Servos    []ServoResult `json:"servos"`
	Antennas  bool          `json:"antennas"`
	Motors    []MotorResult `json:"motors"`
}

func newReport(steps []Step, motors []MotorUnit) *Report {
	r := &Report{
		Steps:  make([]StepResult, 0, len(steps)),
		Motors: make([]MotorResult, 0, len(motors)),
	}
	for _, s := range steps {
		r.Steps = append(r.Steps, StepResult{Step: s, Outcome: Untried})
	}
	for _, m := range motors {
		r.Motors = append(r.Motors, MotorResult{Side: m.Side, Status: Untested})
	}
	return r
}

func (r *Report) setOutcome(step Step, o Outcome) {
	for i := range r.Steps {
		if r.Steps[i].Step == step {
			r.Steps[i].Outcome = o
		}
	}
}

// Outcome returns the outcome of a step.
func (r *Report) Outcome(step Step) Outcome {
	for _, s := range r.Steps {
		if s.Step == step {
			return s.Outcome
		}
	}
	return Untried
}

// Motor returns the result for the motor on the given side.
func (r *Report) Motor(side droid.MotorSide) (MotorResult, bool) {
	for _, m := range r.Motors {
		if m.Side == side {
			return m, true
		}
	}
	return MotorResult{}, false
}

// Passed reports whether every step passed without degradation.
func (r *Report) Passed() bool {
	for _, s := range r.Steps {
		if s.Outcome != Pass {
			return false
		}
	}
	return r.Code == ResOK
}
