// Package telemetry streams self-test progress to a live viewer.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/gwillem/droid/pkg/droid"
	"github.com/gwillem/droid/pkg/selftest"
)

// Sample is one ramp tick of a single motor.
type Sample struct {
	Motor droid.MotorSide
	droid.MotionSample
}

// Runner is anything that runs a self-test.
type Runner interface {
	Run(ctx context.Context) (*selftest.Report, error)
}

// Result is what a finished run produced.
type Result struct {
	Report *selftest.Report
	Err    error
}

// Stream fans self-test samples and console lines out over channels. Slow
// readers miss samples rather than stall the ramp.
type Stream struct {
	clock clock.Clock

	mu       sync.Mutex
	running  bool
	closed   bool
	sampleCh chan Sample
	logCh    chan string
	doneCh   chan struct{}
	result   Result
}

// NewStream creates a stream. A nil clock uses the wall clock.
func NewStream(clk clock.Clock) *Stream {
	if clk == nil {
		clk = clock.New()
	}
	return &Stream{
		clock:    clk,
		sampleCh: make(chan Sample, 64),
		logCh:    make(chan string, 32),
		doneCh:   make(chan struct{}),
	}
}

// Samples returns a channel that receives ramp samples. It is closed when
// the run finishes.
func (s *Stream) Samples() <-chan Sample {
	return s.sampleCh
}

// Logs returns a channel that receives timestamped console lines. It is
// closed when the run finishes.
func (s *Stream) Logs() <-chan string {
	return s.logCh
}

// Done is closed once the run finishes.
func (s *Stream) Done() <-chan struct{} {
	return s.doneCh
}

// Result waits for the run to finish and returns what it produced. It may be
// called any number of times, from any goroutine.
func (s *Stream) Result() Result {
	<-s.doneCh
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Observe implements selftest.SampleObserver.
func (s *Stream) Observe(side droid.MotorSide, ms droid.MotionSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	smp := Sample{Motor: side, MotionSample: ms}
	select {
	case s.sampleCh <- smp:
	default:
		// Drop the oldest sample to make room
		select {
		case <-s.sampleCh:
		default:
		}
		s.sampleCh <- smp
	}
}

// Cue implements selftest.FeedbackSink.
func (s *Stream) Cue(c selftest.Cue) {
	s.log("<%s>", c)
}

// Log implements selftest.FeedbackSink.
func (s *Stream) Log(line string) {
	s.log("%s", line)
}

func (s *Stream) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", s.clock.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs r in the background. Done is closed after the sample and log
// channels, once the result is available.
func (s *Stream) Start(ctx context.Context, r Runner) error {
	s.mu.Lock()
	if s.running || s.closed {
		s.mu.Unlock()
		return fmt.Errorf("already running")
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		report, err := r.Run(ctx)
		s.finish(Result{Report: report, Err: err})
	}()
	return nil
}

func (s *Stream) finish(res Result) {
	s.mu.Lock()
	s.running = false
	s.closed = true
	s.result = res
	close(s.sampleCh)
	close(s.logCh)
	s.mu.Unlock()
	close(s.doneCh)
}
