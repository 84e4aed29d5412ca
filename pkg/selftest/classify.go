package selftest

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/gwillem/droid/pkg/droid"
)

// RampStats accumulates the telemetry of one ramp. Peak values keep the sign
// of the reading with the largest magnitude.
type RampStats struct {
	Distance     float64 `json:"distance"`
	HeadingDelta float64 `json:"heading_delta"`
	AccelX       float64 `json:"accel_x"`
	AccelY       float64 `json:"accel_y"`
	BlockedCount int     `json:"blocked_count"`
}

// WrapHeading normalizes a heading difference into (-180, 180].
func WrapHeading(d float64) float64 {
	d = math.Mod(d, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return d
}

func keepPeak(peak *float64, v float64) {
	if math.Abs(v) > math.Abs(*peak) {
		*peak = v
	}
}

func (s *RampStats) update(hdiff float64, accel r3.Vector, distance, current float64, th droid.Thresholds) {
	keepPeak(&s.HeadingDelta, hdiff)
	keepPeak(&s.AccelX, accel.X)
	keepPeak(&s.AccelY, accel.Y)
	s.Distance = distance
	if math.Abs(current) > th.AbortCurrent {
		s.BlockedCount++
	} else {
		s.BlockedCount = 0
	}
}

// abortReason checks the abort criteria in priority order.
func (s RampStats) abortReason(th droid.Thresholds) AbortReason {
	switch {
	case math.Abs(s.Distance) > th.AbortDistance:
		return AbortDistance
	case math.Abs(s.HeadingDelta) > th.AbortHeadingChange:
		return AbortHeading
	case math.Abs(s.AccelX) > th.AbortAccel:
		return AbortAccelX
	case math.Abs(s.AccelY) > th.AbortAccel:
		return AbortAccelY
	case s.BlockedCount > th.BlockedAbortCount:
		return AbortLoad
	}
	return AbortNone
}

// Classify assigns a MotorStatus to the statistics of a finished ramp.
// The returned note explains the decision for the console.
//
// A heading change below MinHeadingChange cannot tell motor reversal from
// encoder reversal; it is treated like a turn in the expected direction.
func Classify(s RampStats, dir Direction, th droid.Thresholds) (MotorStatus, string) {
	if s.BlockedCount > th.BlockedClassifyCount {
		return Blocked, fmt.Sprintf("Motor pulling too much power (%d ticks over %.0fmA). Likely blocked!",
			s.BlockedCount, th.AbortCurrent)
	}

	ax, ay := math.Abs(s.AccelX), math.Abs(s.AccelY)
	if ay > th.MinAccel && ay > ax {
		return Other, fmt.Sprintf("Accel in Y direction %.3f higher than in X %.3f. IMU likely rotated 90°!",
			s.AccelY, s.AccelX)
	}

	if math.Abs(s.Distance) < th.MinDistance {
		if ax > th.MinAccel {
			return EncoderDisconnected, fmt.Sprintf("Distance of %.1fmm (<%.1f) too low, but accel of %.3f measured. Encoder likely disconnected!",
				s.Distance, th.MinDistance, s.AccelX)
		}
		return Disconnected, fmt.Sprintf("Distance of %.1fmm (<%.1f) and accel of %.3f (<%.3f) both too low. Motor likely disconnected!",
			s.Distance, th.MinDistance, s.AccelX, th.MinAccel)
	}

	wrongWay := (dir == Reverse && s.Distance >= 0) || (dir == Forward && s.Distance <= 0)

	var note string
	if math.Abs(s.HeadingDelta) < th.MinHeadingChange {
		note = fmt.Sprintf("Heading change %.1f° too small, motor and encoder reversal cannot be distinguished. ", s.HeadingDelta)
	} else if s.HeadingDelta > 0 {
		if wrongWay {
			return Reversed, fmt.Sprintf("%s, turning in wrong direction, distance %.1fmm in wrong direction. Motor likely reversed.",
				dir, s.Distance)
		}
		return BothReversed, fmt.Sprintf("%s, turning in wrong direction, distance %.1fmm in right direction. Motor and encoder likely reversed.",
			dir, s.Distance)
	}

	if wrongWay {
		return EncoderReversed, note + fmt.Sprintf("%s, turning in right direction, distance %.1fmm in wrong direction. Encoder likely reversed.",
			dir, s.Distance)
	}
	return Ok, note + fmt.Sprintf("%s, distance %.1fmm, heading change %.1f°. Motor OK.", dir, s.Distance, s.HeadingDelta)
}
