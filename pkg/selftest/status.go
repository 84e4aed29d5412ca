package selftest

import "fmt"

// MotorStatus is the fault class assigned to a motor/encoder pair after one ramp.
type MotorStatus int

const (
	Untested MotorStatus = iota
	Ok
	Disconnected
	EncoderDisconnected
	Reversed
	EncoderReversed
	BothReversed
	Blocked
	Other

	numMotorStatuses
)

var motorStatusNames = [numMotorStatuses]string{
	Untested:            "untested",
	Ok:                  "ok",
	Disconnected:        "disconnected",
	EncoderDisconnected: "encoder_disconnected",
	Reversed:            "reversed",
	EncoderReversed:     "encoder_reversed",
	BothReversed:        "both_reversed",
	Blocked:             "blocked",
	Other:               "other",
}

// AllMotorStatuses returns every status in declaration order.
func AllMotorStatuses() []MotorStatus {
	all := make([]MotorStatus, 0, numMotorStatuses)
	for s := Untested; s < numMotorStatuses; s++ {
		all = append(all, s)
	}
	return all
}

func (s MotorStatus) String() string {
	if s < 0 || s >= numMotorStatuses {
		return fmt.Sprintf("MotorStatus(%d)", int(s))
	}
	return motorStatusNames[s]
}

func (s MotorStatus) MarshalText() ([]byte, error) {
	if s < 0 || s >= numMotorStatuses {
		return nil, fmt.Errorf("invalid motor status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *MotorStatus) UnmarshalText(text []byte) error {
	for i, name := range motorStatusNames {
		if name == string(text) {
			*s = MotorStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown motor status %q", text)
}

// Direction is the sense in which a motor is ramped.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Direction) sign() int {
	if d == Reverse {
		return -1
	}
	return 1
}

// AbortReason names the criterion that ended a ramp early.
type AbortReason int

const (
	// AbortNone means the ramp reached maximum power.
	AbortNone AbortReason = iota
	AbortDistance
	AbortHeading
	AbortAccelX
	AbortAccelY
	AbortLoad
)

var abortReasonNames = [...]string{
	AbortNone:     "none",
	AbortDistance: "distance",
	AbortHeading:  "heading",
	AbortAccelX:   "accel_x",
	AbortAccelY:   "accel_y",
	AbortLoad:     "load",
}

func (r AbortReason) String() string {
	if r < 0 || int(r) >= len(abortReasonNames) {
		return fmt.Sprintf("AbortReason(%d)", int(r))
	}
	return abortReasonNames[r]
}

func (r AbortReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
