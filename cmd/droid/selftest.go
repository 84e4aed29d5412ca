package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"go.uber.org/zap"

	"github.com/gwillem/droid/pkg/droid"
	"github.com/gwillem/droid/pkg/feedback"
	"github.com/gwillem/droid/pkg/selftest"
	"github.com/gwillem/droid/pkg/sim"
	"github.com/gwillem/droid/pkg/telemetry"
)

type SelftestCommand struct {
	Faults  []string `long:"fault" value-name:"SIDE:FAULT" description:"Inject a simulated motor fault, e.g. left:reversed (repeatable)"`
	Voltage float64  `long:"voltage" default:"14.8" description:"Simulated battery voltage"`
	Tilted  bool     `long:"tilted" description:"Simulate a droid that is not standing upright"`
	NoIMU   bool     `long:"no-imu" description:"Simulate a missing IMU"`
	Watch   bool     `short:"w" long:"watch" description:"Show live ramp telemetry"`
	Format  string   `long:"format" choice:"text" choice:"json" choice:"yaml" default:"text" description:"Report format"`
	Yes     bool     `short:"y" long:"yes" description:"Do not ask for confirmation before spinning the wheels"`
}

func (c *SelftestCommand) Execute(args []string) error {
	logger, err := newLogger(opts.Verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	faults, err := parseFaults(c.Faults)
	if err != nil {
		return err
	}
	simOpts := sim.DefaultOptions()
	simOpts.Faults = faults
	simOpts.Voltage = c.Voltage
	simOpts.Tilted = c.Tilted
	simOpts.NoIMU = c.NoIMU

	if !c.Yes && !confirmClear() {
		return nil
	}

	r, err := openRig(logger, cfg, simOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			logger.Warn("Closing hardware failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var report *selftest.Report
	if c.Watch {
		report, err = c.runWatched(ctx, logger, r, cfg)
	} else {
		sink := feedback.NewLogger(logger)
		report, err = selftest.New(logger, r.hw, cfg, selftest.WithSink(sink)).Run(ctx)
	}

	if report != nil {
		if rerr := writeReport(os.Stdout, report, c.Format); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return &exitError{code: int(selftest.CodeOf(err)), err: err}
	}
	return nil
}

func (c *SelftestCommand) runWatched(ctx context.Context, logger *zap.Logger, r *rig, cfg *droid.Config) (*selftest.Report, error) {
	stream := telemetry.NewStream(nil)
	orch := selftest.New(logger, r.hw, cfg,
		selftest.WithSink(stream),
		selftest.WithObserver(stream))
	if err := stream.Start(ctx, orch); err != nil {
		return nil, err
	}

	m := initialWatchModel(stream, cfg.Motor)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		// The run keeps the motors powered until it returns.
		stream.Result()
		return nil, fmt.Errorf("run viewer: %w", err)
	}
	return watchOutcome(final, stream)
}

// watchOutcome returns the run result once the viewer has exited. If the
// viewer quit early it waits for the run to finish.
func watchOutcome(final tea.Model, stream *telemetry.Stream) (*selftest.Report, error) {
	if wm, ok := final.(watchModel); ok && wm.result != nil {
		return wm.result.Report, wm.result.Err
	}
	res := stream.Result()
	return res.Report, res.Err
}

func confirmClear() bool {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("The drive wheels will spin.").
				Description("Put the droid on a stand or hold it clear of the ground.").
				Affirmative("Start").
				Negative("Cancel").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false
		}
		fmt.Fprintf(os.Stderr, "Confirmation failed: %v\n", err)
		return false
	}
	return ok
}
