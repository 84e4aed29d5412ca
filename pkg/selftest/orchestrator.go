// Package selftest implements the droid's power-on self-test: attitude,
// battery, servo and antenna checks followed by a diagnostic ramp of every
// drive motor that classifies wiring faults from live telemetry.
package selftest

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gwillem/droid/pkg/droid"
)

// Hardware bundles the collaborators a self-test drives. Balance and
// Runloop may be nil.
type Hardware struct {
	Attitude droid.AttitudeSensor
	Battery  droid.BatteryMonitor
	Servos   droid.ServoBus
	Antennas droid.PeripheralBus
	Balance  droid.BalanceController
	Runloop  droid.OverrunExcuser
	Motors   []MotorUnit
}

// Orchestrator runs the self-test steps in order. Only one run may be
// active at a time.
type Orchestrator struct {
	logger   *zap.Logger
	hw       Hardware
	cfg      *droid.Config
	clock    clock.Clock
	sink     guardedSink
	observer SampleObserver

	mu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock used for delays and tick pacing.
func WithClock(clk clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = clk }
}

// WithSink sets the feedback sink for cues and console lines.
func WithSink(sink FeedbackSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sink = guardedSink{sink: sink}
		}
	}
}

// WithObserver receives every sample of every motor ramp.
func WithObserver(obs SampleObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// New creates an orchestrator. cfg must have been validated.
func New(logger *zap.Logger, hw Hardware, cfg *droid.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger: logger,
		hw:     hw,
		cfg:    cfg,
		clock:  clock.New(),
		sink:   guardedSink{sink: nopSink{}},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type step struct {
	name Step
	run  func(ctx context.Context, r *Report) (Outcome, error)
}

func (o *Orchestrator) steps() []step {
	return []step{
		{StepAttitude, func(_ context.Context, r *Report) (Outcome, error) { return o.checkAttitude(r) }},
		{StepBattery, func(_ context.Context, r *Report) (Outcome, error) { return o.checkBattery(r) }},
		{StepServos, o.homeServos},
		{StepAntennas, func(_ context.Context, r *Report) (Outcome, error) { return o.probeAntennas(r) }},
		{StepMotors, func(_ context.Context, r *Report) (Outcome, error) { return o.testMotors(r) }},
	}
}

// Run executes the self-test. A critical failure stops the run and is
// returned together with the partial report. Degraded steps are recorded in
// the report and the run continues.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if !o.mu.TryLock() {
		return nil, ErrBusy
	}
	defer o.mu.Unlock()

	if o.hw.Runloop != nil {
		o.hw.Runloop.ExcuseOverrun()
	}

	steps := o.steps()
	names := make([]Step, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.name)
	}
	report := newReport(names, o.hw.Motors)

	o.sink.Cue(CueStarting)
	o.clock.Sleep(o.cfg.StartDelay)
	o.sink.Log("D-O Self Test\n=============")
	o.logger.Info("Self-test started")

	for _, s := range steps {
		outcome, err := s.run(ctx, report)
		report.setOutcome(s.name, outcome)
		if err != nil {
			report.Code = CodeOf(err)
			report.Error = err.Error()
			o.logger.Error("Self-test aborted", zap.String("step", string(s.name)), zap.Error(err))
			return report, fmt.Errorf("%s: %w", s.name, err)
		}
		if outcome == Degraded {
			o.logger.Warn("Self-test step degraded", zap.String("step", string(s.name)))
		}
	}

	o.logger.Info("Self-test finished", zap.Bool("passed", report.Passed()))
	return report, nil
}

func (o *Orchestrator) homeServos(ctx context.Context, r *Report) (Outcome, error) {
	o.sink.Cue(CueServos)
	homer := NewServoHomer(o.logger, o.hw.Servos, o.cfg.Servos, o.sink)
	results, err := homer.HomeAll(ctx)
	r.Servos = results
	if err != nil {
		o.sink.Cue(CueFailure)
		return Failed, err
	}
	o.sink.Cue(CueOK)
	for _, res := range results {
		if res.State != ServoHomed {
			return Degraded, nil
		}
	}
	return Pass, nil
}

func (o *Orchestrator) probeAntennas(r *Report) (Outcome, error) {
	probe := NewPeripheralProbe(o.logger, o.hw.Antennas, o.cfg.AntennaAddress, o.clock, o.sink)
	r.Antennas = probe.Run()
	if !r.Antennas {
		return Degraded, nil
	}
	return Pass, nil
}

// testMotors ramps every motor forward in turn.
func (o *Orchestrator) testMotors(r *Report) (Outcome, error) {
	diag := NewMotorDiagnostic(o.logger, o.hw.Attitude, o.hw.Battery, o.cfg.Motor, o.clock, o.sink, o.observer)

	outcome := Pass
	for i, unit := range o.hw.Motors {
		o.sink.Cue(sideCue(unit.Side))
		res := diag.Run(unit, Forward)
		r.Motors[i] = res
		for _, c := range CuesFor(res.Status) {
			o.sink.Cue(c)
		}
		if res.Status != Ok {
			outcome = Degraded
		}
	}
	return outcome, nil
}
