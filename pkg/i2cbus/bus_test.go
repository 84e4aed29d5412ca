package i2cbus

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/gwillem/droid/pkg/selftest"
)

const antennas = 0x17

func TestProbe(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: antennas, R: []byte{0}}},
		DontPanic: true,
	}
	b := New(pb)
	require.NoError(t, b.Probe(antennas))
	assert.Error(t, b.Probe(antennas), "no more transactions recorded")
	require.NoError(t, pb.Close())
}

func TestProbeWrongAddress(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: antennas, R: []byte{0}}},
		DontPanic: true,
	}
	err := New(pb).Probe(0x40)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe 0x40")
}

func TestWriteLevels(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: antennas, W: []byte{10, 20, 30}}},
		DontPanic: true,
	}
	b := New(pb)
	require.NoError(t, b.WriteLevels(antennas, 10, 20, 30))
	require.NoError(t, pb.Close())
	require.NoError(t, b.Close())
}

type stepClock struct {
	*clock.Mock
}

func (c stepClock) Sleep(d time.Duration) { c.Add(d) }

func TestAntennaSweepTransactions(t *testing.T) {
	ops := []i2ctest.IO{{Addr: antennas, R: []byte{0}}}
	for _, v := range selftest.SweepLevels() {
		ops = append(ops, i2ctest.IO{Addr: antennas, W: []byte{v, v, v}})
	}
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}

	probe := selftest.NewPeripheralProbe(zaptest.NewLogger(t), New(pb), antennas, stepClock{clock.NewMock()}, nil)
	assert.True(t, probe.Run())
	require.NoError(t, pb.Close(), "every recorded transaction replayed")
}
