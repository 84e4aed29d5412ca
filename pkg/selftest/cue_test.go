package selftest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/droid/pkg/droid"
)

func TestEveryStatusHasCue(t *testing.T) {
	for _, s := range AllMotorStatuses() {
		assert.NotEmpty(t, CuesFor(s), "status %s", s)
	}
	assert.Equal(t, []Cue{CueFailure}, CuesFor(MotorStatus(42)))
	assert.Equal(t, []Cue{CueReversed, CueEncoderReversed}, CuesFor(BothReversed))
}

func TestCueNames(t *testing.T) {
	seen := make(map[string]bool)
	for c := CueStarting; c < numCues; c++ {
		name := c.String()
		assert.NotEmpty(t, name, "cue %d", int(c))
		assert.False(t, seen[name], "duplicate cue name %s", name)
		seen[name] = true
	}
	assert.Equal(t, "Cue(99)", Cue(99).String())
}

func TestSideCue(t *testing.T) {
	assert.Equal(t, CueLeftMotor, sideCue(droid.MotorLeft))
	assert.Equal(t, CueRightMotor, sideCue(droid.MotorRight))
	assert.Equal(t, CueMotor, sideCue("tail"))
}

func TestGuardedSinkRecovers(t *testing.T) {
	g := guardedSink{sink: panicSink{}}
	assert.NotPanics(t, func() {
		g.Cue(CueOK)
		g.Log("hello")
		g.logf("%d", 1)
	})
}

func TestMotorStatusText(t *testing.T) {
	for _, s := range AllMotorStatuses() {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var back MotorStatus
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	var s MotorStatus
	assert.Error(t, s.UnmarshalText([]byte("on fire")))
	_, err := MotorStatus(-1).MarshalText()
	assert.Error(t, err)
}

func TestMotorResultJSON(t *testing.T) {
	res := MotorResult{Side: droid.MotorLeft, Direction: Forward, Status: EncoderReversed, Abort: AbortAccelY}
	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"encoder_reversed"`)
	assert.Contains(t, string(b), `"direction":"forward"`)
	assert.Contains(t, string(b), `"abort":"accel_y"`)
}
