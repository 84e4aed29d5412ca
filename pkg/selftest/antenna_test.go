package selftest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gwillem/droid/pkg/sim"
)

func TestSweepLevels(t *testing.T) {
	levels := SweepLevels()
	require.Len(t, levels, 97)
	assert.Equal(t, uint8(127), levels[0])
	assert.Equal(t, uint8(127), levels[len(levels)-1])

	peak, trough := levels[0], levels[0]
	for _, v := range levels {
		peak = max(peak, v)
		trough = min(trough, v)
	}
	assert.Equal(t, uint8(255), peak)
	assert.Equal(t, uint8(64), trough)
}

func TestPeripheralProbeSweeps(t *testing.T) {
	ant := sim.NewAntennas(0x17)
	clk := newStepClock()
	start := clk.Now()

	ok := NewPeripheralProbe(zaptest.NewLogger(t), ant, 0x17, clk, nil).Run()
	require.True(t, ok)

	writes := ant.Writes()
	levels := SweepLevels()
	require.Len(t, writes, len(levels))
	for i, w := range writes {
		assert.Equal(t, []uint8{levels[i], levels[i], levels[i]}, w)
	}
	assert.Equal(t, time.Duration(len(levels)-1)*sweepDelay, clk.Since(start))
}

func TestPeripheralProbeAbsent(t *testing.T) {
	ant := sim.NewAntennas(0x17)
	ant.Unplug()
	sink := &recSink{}

	ok := NewPeripheralProbe(zaptest.NewLogger(t), ant, 0x17, newStepClock(), sink).Run()
	assert.False(t, ok)
	assert.Empty(t, ant.Writes())
	require.Len(t, sink.Lines(), 1)
	assert.Contains(t, sink.Lines()[0], "Antenna error")
}

func TestPeripheralProbeWrongAddress(t *testing.T) {
	ant := sim.NewAntennas(0x17)
	ok := NewPeripheralProbe(zaptest.NewLogger(t), ant, 0x18, newStepClock(), nil).Run()
	assert.False(t, ok)
}

func TestPeripheralProbeNoBus(t *testing.T) {
	ok := NewPeripheralProbe(zaptest.NewLogger(t), nil, 0x17, newStepClock(), nil).Run()
	assert.False(t, ok)
}

type flakyBus struct {
	writes int
}

func (b *flakyBus) Probe(uint16) error { return nil }

func (b *flakyBus) WriteLevels(uint16, ...uint8) error {
	b.writes++
	if b.writes%2 == 0 {
		return errors.New("nack")
	}
	return nil
}

func TestPeripheralProbeIgnoresWriteErrors(t *testing.T) {
	bus := &flakyBus{}
	ok := NewPeripheralProbe(zaptest.NewLogger(t), bus, 0x17, newStepClock(), nil).Run()
	assert.True(t, ok)
	assert.Equal(t, len(SweepLevels()), bus.writes)
}
