package main

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gwillem/droid/pkg/droid"
	"github.com/gwillem/droid/pkg/feetechbus"
	"github.com/gwillem/droid/pkg/i2cbus"
	"github.com/gwillem/droid/pkg/selftest"
	"github.com/gwillem/droid/pkg/sim"
)

// rig is the hardware a self-test runs against. Drive motors, IMU and
// battery are simulated; the servo and antenna buses are real when
// configured.
type rig struct {
	hw      selftest.Hardware
	world   *sim.World
	closers []io.Closer
}

func (r *rig) Close() error {
	var err error
	for _, c := range r.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

func openRig(logger *zap.Logger, cfg *droid.Config, simOpts sim.Options) (*rig, error) {
	w := sim.New(simOpts)
	r := &rig{world: w}
	r.hw = selftest.Hardware{
		Attitude: w.IMU(),
		Battery:  w.Battery(),
		Balance:  w,
		Runloop:  w,
	}
	for _, side := range droid.AllMotors() {
		r.hw.Motors = append(r.hw.Motors, selftest.MotorUnit{
			Side:    side,
			Motor:   w.Motor(side),
			Encoder: w.Encoder(side),
		})
	}

	if cfg.ServoPort != "" {
		bus, err := feetechbus.Open(logger.Named("servos"), cfg.ServoPort)
		if err != nil {
			return nil, fmt.Errorf("servo bus %s: %w", cfg.ServoPort, err)
		}
		r.hw.Servos = bus
		r.closers = append(r.closers, bus)
	} else {
		r.hw.Servos = sim.NewServoBus(cfg.Servos.IDs()...)
	}

	if cfg.I2CBus != "" {
		bus, err := i2cbus.Open(cfg.I2CBus)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("i2c bus %s: %w", cfg.I2CBus, err), r.Close())
		}
		r.hw.Antennas = bus
		r.closers = append(r.closers, bus)
	} else {
		r.hw.Antennas = sim.NewAntennas(cfg.AntennaAddress)
	}

	logger.Debug("Hardware ready",
		zap.String("servos", describe(cfg.ServoPort)),
		zap.String("i2c", describe(cfg.I2CBus)))
	return r, nil
}

func describe(dev string) string {
	if dev == "" {
		return "simulated"
	}
	return dev
}

// parseFaults parses side:fault pairs such as "left:reversed".
func parseFaults(args []string) (map[droid.MotorSide]sim.Fault, error) {
	faults := make(map[droid.MotorSide]sim.Fault, len(args))
	for _, s := range args {
		sideName, faultName, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("fault %q: want side:fault", s)
		}
		side := droid.MotorSide(strings.ToLower(sideName))
		if !validSide(side) {
			return nil, fmt.Errorf("fault %q: unknown motor %q", s, sideName)
		}
		f, err := sim.ParseFault(faultName)
		if err != nil {
			return nil, fmt.Errorf("fault %q: %w", s, err)
		}
		faults[side] = f
	}
	return faults, nil
}

func validSide(side droid.MotorSide) bool {
	for _, s := range droid.AllMotors() {
		if s == side {
			return true
		}
	}
	return false
}
