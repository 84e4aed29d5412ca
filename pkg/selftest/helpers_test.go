package selftest

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/gwillem/droid/pkg/droid"
	"github.com/gwillem/droid/pkg/sim"
)

// stepClock is a mock clock whose Sleep advances time instead of blocking.
type stepClock struct {
	*clock.Mock
}

func newStepClock() stepClock {
	return stepClock{Mock: clock.NewMock()}
}

func (c stepClock) Sleep(d time.Duration) {
	c.Add(d)
}

type recSink struct {
	mu    sync.Mutex
	cues  []Cue
	lines []string
}

func (r *recSink) Cue(c Cue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, c)
}

func (r *recSink) Log(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recSink) Cues() []Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Cue(nil), r.cues...)
}

func (r *recSink) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

type panicSink struct{}

func (panicSink) Cue(Cue)    { panic("speaker on fire") }
func (panicSink) Log(string) { panic("console gone") }

type sampleRec struct {
	mu      sync.Mutex
	samples map[droid.MotorSide][]droid.MotionSample
}

func (r *sampleRec) Observe(side droid.MotorSide, s droid.MotionSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.samples == nil {
		r.samples = make(map[droid.MotorSide][]droid.MotionSample)
	}
	r.samples[side] = append(r.samples[side], s)
}

func (r *sampleRec) For(side droid.MotorSide) []droid.MotionSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]droid.MotionSample(nil), r.samples[side]...)
}

// rig is a simulated droid wired up as self-test hardware.
type rig struct {
	world    *sim.World
	servos   *sim.ServoBus
	antennas *sim.Antennas
	hw       Hardware
}

func newRig(opts sim.Options) *rig {
	w := sim.New(opts)
	r := &rig{
		world:    w,
		servos:   sim.NewServoBus(droid.DefaultServos().IDs()...),
		antennas: sim.NewAntennas(0x17),
	}
	r.hw = Hardware{
		Attitude: w.IMU(),
		Battery:  w.Battery(),
		Servos:   r.servos,
		Antennas: r.antennas,
		Balance:  w,
		Runloop:  w,
	}
	for _, side := range droid.AllMotors() {
		r.hw.Motors = append(r.hw.Motors, MotorUnit{Side: side, Motor: w.Motor(side), Encoder: w.Encoder(side)})
	}
	return r
}

func faulted(side droid.MotorSide, f sim.Fault) sim.Options {
	opts := sim.DefaultOptions()
	opts.Faults = map[droid.MotorSide]sim.Fault{side: f}
	return opts
}
