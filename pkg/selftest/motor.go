package selftest

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gwillem/droid/pkg/droid"
)

// MotorUnit is a drive motor and the encoder on its wheel.
type MotorUnit struct {
	Side    droid.MotorSide
	Motor   droid.MotorActuator
	Encoder droid.EncoderSensor
}

// MotorResult is the outcome of one motor diagnostic run.
type MotorResult struct {
	Side      droid.MotorSide `json:"side"`
	Direction Direction       `json:"direction"`
	Status    MotorStatus     `json:"status"`
	Abort     AbortReason     `json:"abort"`
	PeakPower int             `json:"peak_power"`
	Stats     RampStats       `json:"stats"`
}

// MotorDiagnostic ramps a single motor and classifies how it is wired.
type MotorDiagnostic struct {
	logger     *zap.Logger
	attitude   droid.AttitudeSensor
	battery    droid.BatteryMonitor
	thresholds droid.Thresholds
	clock      clock.Clock
	sink       guardedSink
	observer   SampleObserver
}

// NewMotorDiagnostic creates a diagnostic that samples attitude and battery
// current while ramping. sink and observer may be nil.
func NewMotorDiagnostic(
	logger *zap.Logger,
	attitude droid.AttitudeSensor,
	battery droid.BatteryMonitor,
	thresholds droid.Thresholds,
	clk clock.Clock,
	sink FeedbackSink,
	observer SampleObserver,
) *MotorDiagnostic {
	if sink == nil {
		sink = nopSink{}
	}
	return &MotorDiagnostic{
		logger:     logger,
		attitude:   attitude,
		battery:    battery,
		thresholds: thresholds,
		clock:      clk,
		sink:       guardedSink{sink: sink},
		observer:   observer,
	}
}

// tickPeriod returns the loop period for the IMU's sample rate.
func tickPeriod(rateHz float64) time.Duration {
	if rateHz <= 0 {
		return 0
	}
	return time.Duration(1e6/rateHz) * time.Microsecond
}

// pace idles away whatever is left of the tick that began at start.
func (d *MotorDiagnostic) pace(start time.Time, period time.Duration) {
	if elapsed := d.clock.Since(start); elapsed < period {
		d.clock.Sleep(period - elapsed)
	}
}

// Run ramps the motor up until an abort criterion triggers or maximum power
// is reached, ramps it back down, and classifies the result. The motor is
// left at zero power on return, and disabled if it was found blocked.
func (d *MotorDiagnostic) Run(unit MotorUnit, dir Direction) (res MotorResult) {
	th := d.thresholds
	mot, enc := unit.Motor, unit.Encoder
	log := d.logger.With(zap.String("motor", string(unit.Side)), zap.Stringer("direction", dir))

	res = MotorResult{Side: unit.Side, Direction: dir, Status: Untested}

	mot.SetPower(0)
	mot.SetEnabled(true)
	defer func() {
		mot.SetPower(0)
		if res.Status == Blocked {
			mot.SetEnabled(false)
		}
	}()

	enc.Update()
	startPosition := enc.Position()

	d.attitude.Update(false)
	_, _, h0 := d.attitude.FilteredAttitude()

	period := tickPeriod(d.attitude.SampleRateHz())
	sign := dir.sign()
	started := d.clock.Now()

	var stats RampStats
	for power := th.MinPower; power <= th.MaxPower; power += th.PowerStep {
		tick := d.clock.Now()
		mot.SetPower(sign * power)
		res.PeakPower = power

		d.battery.RefreshCurrent()
		current := d.battery.Current()

		d.attitude.Update(false)
		_, _, heading := d.attitude.FilteredAttitude()
		accel := d.attitude.Acceleration()

		enc.Update()
		position := enc.Position()

		stats.update(WrapHeading(heading-h0), accel, position-startPosition, current, th)

		if d.observer != nil {
			d.observer.Observe(unit.Side, droid.MotionSample{
				Micros:   d.clock.Since(started).Microseconds(),
				Power:    sign * power,
				Accel:    accel,
				Heading:  heading,
				Position: position,
				Current:  current,
			})
		}

		if reason := stats.abortReason(th); reason != AbortNone {
			res.Abort = reason
			d.logAbort(reason, stats, current)
			break
		}
		d.pace(tick, period)
	}

	d.sink.logf("Power at end: %d", res.PeakPower)

	for power := res.PeakPower; power >= th.MinPower; power -= th.PowerStep {
		tick := d.clock.Now()
		mot.SetPower(sign * power)
		d.pace(tick, period)
	}
	mot.SetPower(0)

	res.Stats = stats
	status, note := Classify(stats, dir, th)
	res.Status = status
	d.sink.Log(note)

	log.Info("Motor diagnostic finished",
		zap.Stringer("status", status),
		zap.Stringer("abort", res.Abort),
		zap.Int("peak_power", res.PeakPower),
		zap.Float64("distance", stats.Distance),
		zap.Float64("heading_delta", stats.HeadingDelta),
		zap.Float64("accel_x", stats.AccelX),
		zap.Float64("accel_y", stats.AccelY),
		zap.Int("blocked_count", stats.BlockedCount))

	return res
}

func (d *MotorDiagnostic) logAbort(reason AbortReason, s RampStats, current float64) {
	th := d.thresholds
	switch reason {
	case AbortDistance:
		d.sink.logf("Distance criterion triggered (|%.1f| > %.1f)", s.Distance, th.AbortDistance)
	case AbortHeading:
		d.sink.logf("Heading criterion triggered (|%.1f| > %.1f)", s.HeadingDelta, th.AbortHeadingChange)
	case AbortAccelX:
		d.sink.logf("X max accel criterion triggered (|%.3f| > %.3f)", s.AccelX, th.AbortAccel)
	case AbortAccelY:
		d.sink.logf("Y max accel criterion triggered (|%.3f| > %.3f)", s.AccelY, th.AbortAccel)
	case AbortLoad:
		d.sink.logf("Motor load criterion triggered %d times (%.0f > %.0f)", s.BlockedCount, current, th.AbortCurrent)
	}
}
