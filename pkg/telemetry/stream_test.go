package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/droid/pkg/droid"
	"github.com/gwillem/droid/pkg/selftest"
)

type runnerFunc func(ctx context.Context) (*selftest.Report, error)

func (f runnerFunc) Run(ctx context.Context) (*selftest.Report, error) { return f(ctx) }

func TestObserveDropsOldest(t *testing.T) {
	s := NewStream(nil)
	for i := 0; i < 100; i++ {
		s.Observe(droid.MotorLeft, droid.MotionSample{Power: i})
	}

	first := <-s.Samples()
	assert.Equal(t, 100-cap(s.sampleCh), first.Power)
	assert.Equal(t, droid.MotorLeft, first.Motor)
	assert.Len(t, s.sampleCh, cap(s.sampleCh)-1)
}

func TestLogFormat(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 4, 13, 37, 42, 0, time.Local))
	s := NewStream(clk)

	s.Log("IMU OK.")
	s.Cue(selftest.CueBlocked)

	assert.Equal(t, "[13:37:42] IMU OK.", <-s.Logs())
	assert.Equal(t, "[13:37:42] <blocked>", <-s.Logs())
}

func TestLogDropsWhenFull(t *testing.T) {
	s := NewStream(nil)
	for i := 0; i < 100; i++ {
		s.Log("line")
	}
	assert.Len(t, s.logCh, cap(s.logCh))
}

func TestStartDeliversResult(t *testing.T) {
	s := NewStream(nil)
	want := &selftest.Report{Code: selftest.ResNotLevel}
	runErr := errors.New("attitude: droid not level")

	err := s.Start(context.Background(), runnerFunc(func(context.Context) (*selftest.Report, error) {
		s.Observe(droid.MotorRight, droid.MotionSample{Power: 20})
		s.Log("working")
		return want, runErr
	}))
	require.NoError(t, err)

	var samples []Sample
	for smp := range s.Samples() {
		samples = append(samples, smp)
	}
	var lines []string
	for line := range s.Logs() {
		lines = append(lines, line)
	}

	res := s.Result()
	assert.Same(t, want, res.Report)
	assert.Equal(t, runErr, res.Err)
	require.Len(t, samples, 1)
	assert.Equal(t, droid.MotorRight, samples[0].Motor)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "working")

	// Late writes after the run are ignored.
	s.Observe(droid.MotorLeft, droid.MotionSample{})
	s.Log("late")
	assert.Error(t, s.Start(context.Background(), runnerFunc(func(context.Context) (*selftest.Report, error) {
		return nil, nil
	})))
}

func TestStartRejectsSecondRun(t *testing.T) {
	s := NewStream(nil)
	release := make(chan struct{})
	require.NoError(t, s.Start(context.Background(), runnerFunc(func(context.Context) (*selftest.Report, error) {
		<-release
		return &selftest.Report{}, nil
	})))

	assert.Error(t, s.Start(context.Background(), runnerFunc(func(context.Context) (*selftest.Report, error) {
		return nil, nil
	})))
	close(release)
	res := s.Result()
	assert.NoError(t, res.Err)
}

func TestResultSeenByEveryWaiter(t *testing.T) {
	s := NewStream(nil)
	release := make(chan struct{})
	want := &selftest.Report{Code: selftest.ResOK}
	require.NoError(t, s.Start(context.Background(), runnerFunc(func(context.Context) (*selftest.Report, error) {
		<-release
		return want, nil
	})))

	// A viewer that quits early leaves its wait behind.
	first := make(chan Result, 1)
	go func() { first <- s.Result() }()

	close(release)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Same(t, want, s.Result().Report)
	assert.Same(t, want, (<-first).Report)
}
