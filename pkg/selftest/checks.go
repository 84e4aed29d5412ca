package selftest

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/gwillem/droid/pkg/droid"
)

// checkAttitude verifies the droid stands level, calibrates the gyro and
// hands the rest pitch to the balance controller.
func (o *Orchestrator) checkAttitude(r *Report) (Outcome, error) {
	imu := o.hw.Attitude
	lim := o.cfg.Attitude

	o.sink.Cue(CueIMU)
	if imu == nil || !imu.Available() {
		o.sink.Log("Critical error: IMU not available!")
		o.sink.Cue(CueFailure)
		return Failed, fmt.Errorf("imu: %w", ErrDependencyMissing)
	}

	imu.Update(true)
	a := imu.Acceleration()
	if !isLevel(a.X, a.Y, a.Z, lim) {
		o.sink.logf("Critical error: Droid not upright (ax %.3f, ay %.3f, az %.3f)!", a.X, a.Y, a.Z)
		o.sink.Cue(CueFailure)
		return Failed, fmt.Errorf("imu: ax %.3f ay %.3f az %.3f: %w", a.X, a.Y, a.Z, ErrNotLevel)
	}
	o.sink.logf("IMU OK. Down vector: %.2f %.2f %.2f", a.X, a.Y, a.Z)

	o.sink.Cue(CueCalibrating)
	imu.CalibrateGyroBias()
	for i := 0; i < lim.SettleSamples; i++ {
		imu.Update(true)
	}
	_, pitch, _ := imu.FilteredAttitude()
	if o.hw.Balance != nil {
		o.hw.Balance.SetGoal(-pitch)
	}
	r.RestPitch = pitch
	o.sink.logf("IMU calibrated. Pitch angle at rest: %.2f", pitch)
	o.logger.Info("Attitude check passed",
		zap.Float64("ax", a.X), zap.Float64("ay", a.Y), zap.Float64("az", a.Z),
		zap.Float64("rest_pitch", pitch))
	o.sink.Cue(CueOK)
	return Pass, nil
}

// isLevel reports whether gravity points straight down the Z axis.
func isLevel(ax, ay, az float64, lim droid.AttitudeLimits) bool {
	return math.Abs(ax) <= lim.MaxTilt && math.Abs(ay) <= lim.MaxTilt && az >= lim.MinVertical
}

// checkBattery verifies the battery voltage is within bounds. Under-voltage
// is only reported unless enforcement is configured.
func (o *Orchestrator) checkBattery(r *Report) (Outcome, error) {
	batt := o.hw.Battery
	lim := o.cfg.Battery

	o.sink.Cue(CuePower)
	if batt == nil || !batt.Available() {
		o.sink.Log("Critical error: Battery monitor not available!")
		o.sink.Cue(CueFailure)
		return Failed, fmt.Errorf("battery: %w", ErrDependencyMissing)
	}

	batt.RefreshVoltage()
	batt.RefreshCurrent()
	r.Voltage, r.Current = batt.Voltage(), batt.Current()
	o.sink.logf("Battery OK. Voltage: %.2fV, current draw: %.2fmA", r.Voltage, r.Current)
	log := o.logger.With(zap.Float64("voltage", r.Voltage), zap.Float64("current", r.Current))

	switch {
	case r.Voltage > lim.MaxVoltage:
		o.sink.Cue(CueVoltageTooHigh)
		log.Error("Battery voltage above limit", zap.Float64("max_voltage", lim.MaxVoltage))
		return Failed, fmt.Errorf("battery: %.2fV > %.2fV: %w", r.Voltage, lim.MaxVoltage, ErrVoltageTooHigh)
	case r.Voltage < lim.MinVoltage:
		o.sink.Cue(CueVoltageTooLow)
		if lim.EnforceUnderVoltage {
			log.Error("Battery voltage below limit", zap.Float64("min_voltage", lim.MinVoltage))
			return Failed, fmt.Errorf("battery: %.2fV < %.2fV: %w", r.Voltage, lim.MinVoltage, ErrVoltageTooLow)
		}
		log.Warn("Battery voltage below limit, not enforced", zap.Float64("min_voltage", lim.MinVoltage))
		return Degraded, nil
	}

	log.Info("Battery check passed")
	o.sink.Cue(CueOK)
	return Pass, nil
}
