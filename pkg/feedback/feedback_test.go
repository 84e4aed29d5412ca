package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gwillem/droid/pkg/selftest"
)

type boom struct{}

func (boom) Cue(selftest.Cue) { panic("boom") }
func (boom) Log(string)       { panic("boom") }

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := NewLogger(zap.New(core))

	l.Cue(selftest.CueServos)
	l.Log("D-O Self Test\n=============")

	all := logs.All()
	require.Len(t, all, 3)
	assert.Equal(t, "Cue", all[0].Message)
	assert.Equal(t, "servos", all[0].ContextMap()["cue"])
	assert.Equal(t, "feedback", all[0].LoggerName)
	assert.Equal(t, "D-O Self Test", all[1].Message)
	assert.Equal(t, "=============", all[2].Message)
}

func TestMultiIsolatesPanics(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, boom{}, nil, b}

	assert.NotPanics(t, func() {
		m.Cue(selftest.CueOK)
		m.Log("IMU OK.")
	})

	for _, r := range []*Recorder{a, b} {
		assert.Equal(t, []selftest.Cue{selftest.CueOK}, r.Cues())
		assert.Equal(t, []string{"IMU OK."}, r.Lines())
	}
}

var _ selftest.FeedbackSink = (*Logger)(nil)
var _ selftest.FeedbackSink = (*Recorder)(nil)
var _ selftest.FeedbackSink = Multi(nil)
