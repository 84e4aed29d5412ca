// Package feedback provides sinks for self-test cues and console lines.
package feedback

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gwillem/droid/pkg/selftest"
)

// Logger writes cues and console lines to a zap logger.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a sink that logs at info level.
func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.Named("feedback")}
}

func (l *Logger) Cue(c selftest.Cue) {
	l.logger.Info("Cue", zap.Stringer("cue", c))
}

func (l *Logger) Log(line string) {
	for _, s := range strings.Split(line, "\n") {
		l.logger.Info(s)
	}
}

// Recorder keeps every cue and line in memory.
type Recorder struct {
	mu    sync.Mutex
	cues  []selftest.Cue
	lines []string
}

func (r *Recorder) Cue(c selftest.Cue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, c)
}

func (r *Recorder) Log(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

// Cues returns the cues recorded so far.
func (r *Recorder) Cues() []selftest.Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]selftest.Cue(nil), r.cues...)
}

// Lines returns the console lines recorded so far.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Multi forwards to every sink. A panicking sink does not keep the others
// from being called.
type Multi []selftest.FeedbackSink

func (m Multi) Cue(c selftest.Cue) {
	for _, s := range m {
		if s != nil {
			safely(func() { s.Cue(c) })
		}
	}
}

func (m Multi) Log(line string) {
	for _, s := range m {
		if s != nil {
			safely(func() { s.Log(line) })
		}
	}
}

func safely(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
