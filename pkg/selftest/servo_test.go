package selftest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gwillem/droid/pkg/droid"
	"github.com/gwillem/droid/pkg/sim"
)

func TestHomeAllAppliesSettings(t *testing.T) {
	ctx := context.Background()
	servos := droid.DefaultServos()
	servos[1].Offset = 3.5
	bus := sim.NewServoBus(servos.IDs()...)
	sink := &recSink{}

	results, err := NewServoHomer(zaptest.NewLogger(t), bus, servos, sink).HomeAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, len(servos))
	assert.Equal(t, servos.IDs(), bus.Homed())

	for i, sc := range servos {
		assert.Equal(t, ServoHomed, results[i].State)
		assert.Equal(t, sc.Name, results[i].Name)

		got, err := bus.Settings(ctx, sc.ID)
		require.NoError(t, err)
		lo, hi := sc.Limits()
		assert.Equal(t, droid.ServoSettings{Lo: lo, Hi: hi, Offset: sc.Offset, ProfileVelocity: sc.ProfileVelocity}, got,
			"settings read back for %s", sc.Name)
	}
	assert.Equal(t, []string{"Servos OK."}, sink.Lines())
}

func TestHomeAllSkipsMissingOptionalServo(t *testing.T) {
	servos := droid.DefaultServos()
	optional := servos[2]
	var present []int
	for _, id := range servos.IDs() {
		if id != optional.ID {
			present = append(present, id)
		}
	}
	bus := sim.NewServoBus(present...)

	results, err := NewServoHomer(zaptest.NewLogger(t), bus, servos, nil).HomeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, len(servos))
	assert.Equal(t, ServoMissing, results[2].State)
	assert.Equal(t, ServoHomed, results[3].State, "homing continues after a missing optional servo")
	assert.Equal(t, present, bus.Homed())
}

func TestHomeAllMissingRequiredServo(t *testing.T) {
	servos := droid.DefaultServos()
	bus := sim.NewServoBus(servos.IDs()[1:]...)

	results, err := NewServoHomer(zaptest.NewLogger(t), bus, servos, nil).HomeAll(context.Background())
	require.ErrorIs(t, err, ErrDependencyMissing)
	assert.Equal(t, ResDependencyMissing, CodeOf(err))
	require.Len(t, results, 1)
	assert.Equal(t, ServoMissing, results[0].State)
	assert.True(t, results[0].Required)
	assert.Empty(t, bus.Homed())
}

func TestHomeAllHomingFailure(t *testing.T) {
	servos := droid.DefaultServos()
	bus := sim.NewServoBus(servos.IDs()...)
	bus.Stick(servos[1].ID)
	sink := &recSink{}

	results, err := NewServoHomer(zaptest.NewLogger(t), bus, servos, sink).HomeAll(context.Background())
	require.ErrorIs(t, err, ErrServoFailure)
	assert.Contains(t, err.Error(), string(servos[1].Name))
	require.Len(t, results, 2)
	assert.Equal(t, ServoFailed, results[1].State)
	assert.NotContains(t, sink.Lines(), "Servos OK.")
}

func TestHomeAllBusNotRunning(t *testing.T) {
	bus := sim.NewServoBus(1)
	bus.Stop()
	_, err := NewServoHomer(zaptest.NewLogger(t), bus, droid.DefaultServos(), nil).HomeAll(context.Background())
	assert.ErrorIs(t, err, ErrDependencyMissing)

	_, err = NewServoHomer(zaptest.NewLogger(t), nil, droid.DefaultServos(), nil).HomeAll(context.Background())
	assert.ErrorIs(t, err, ErrDependencyMissing)
}

type failingRangeBus struct {
	*sim.ServoBus
}

func (failingRangeBus) SetRange(context.Context, int, float64, float64) error {
	return errors.New("checksum mismatch")
}

func TestHomeAllConfigureFailure(t *testing.T) {
	servos := droid.DefaultServos()
	bus := failingRangeBus{sim.NewServoBus(servos.IDs()...)}

	_, err := NewServoHomer(zaptest.NewLogger(t), bus, servos, nil).HomeAll(context.Background())
	require.ErrorIs(t, err, ErrServoFailure)
	assert.Contains(t, err.Error(), "set range: checksum mismatch")
}

func TestHomeAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	servos := droid.DefaultServos()
	_, err := NewServoHomer(zaptest.NewLogger(t), sim.NewServoBus(servos.IDs()...), servos, nil).HomeAll(ctx)
	assert.ErrorIs(t, err, ErrServoFailure)
}
