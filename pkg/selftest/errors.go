package selftest

import "errors"

// Critical failures. Each one stops the self-test where it occurs.
var (
	ErrDependencyMissing = errors.New("hardware dependency missing")
	ErrNotLevel          = errors.New("droid not level")
	ErrServoFailure      = errors.New("servo failure")
	ErrVoltageTooHigh    = errors.New("battery voltage too high")
	ErrVoltageTooLow     = errors.New("battery voltage too low")
	ErrBusy              = errors.New("self-test already running")
)

// ResultCode is the aggregate result of a self-test run.
type ResultCode int

const (
	ResOK ResultCode = iota
	ResDependencyMissing
	ResNotLevel
	ResServoFailure
	ResVoltageTooHigh
	ResVoltageTooLow
	ResBusy
	ResUnknown
)

var resultCodeNames = [...]string{
	ResOK:                "ok",
	ResDependencyMissing: "dependency_missing",
	ResNotLevel:          "not_level",
	ResServoFailure:      "servo_failure",
	ResVoltageTooHigh:    "voltage_too_high",
	ResVoltageTooLow:     "voltage_too_low",
	ResBusy:              "busy",
	ResUnknown:           "unknown",
}

func (c ResultCode) String() string {
	if c < 0 || int(c) >= len(resultCodeNames) {
		return resultCodeNames[ResUnknown]
	}
	return resultCodeNames[c]
}

func (c ResultCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

var resultCodes = []struct {
	err  error
	code ResultCode
}{
	{ErrDependencyMissing, ResDependencyMissing},
	{ErrNotLevel, ResNotLevel},
	{ErrServoFailure, ResServoFailure},
	{ErrVoltageTooHigh, ResVoltageTooHigh},
	{ErrVoltageTooLow, ResVoltageTooLow},
	{ErrBusy, ResBusy},
}

// CodeOf maps an error returned by Run to its result code.
func CodeOf(err error) ResultCode {
	if err == nil {
		return ResOK
	}
	for _, rc := range resultCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return ResUnknown
}
