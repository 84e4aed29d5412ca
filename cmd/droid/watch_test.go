package main

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/droid/pkg/droid"
	"github.com/gwillem/droid/pkg/selftest"
	"github.com/gwillem/droid/pkg/telemetry"
)

type heldRunner struct {
	release chan struct{}
	report  *selftest.Report
}

func (r heldRunner) Run(ctx context.Context) (*selftest.Report, error) {
	<-r.release
	return r.report, nil
}

func startHeld(t *testing.T) (*telemetry.Stream, heldRunner) {
	t.Helper()
	r := heldRunner{release: make(chan struct{}), report: &selftest.Report{Code: selftest.ResOK}}
	s := telemetry.NewStream(nil)
	require.NoError(t, s.Start(context.Background(), r))
	return s, r
}

func TestWatchQuitEarlyStillReports(t *testing.T) {
	s, r := startHeld(t)
	m := initialWatchModel(s, droid.DefaultConfig().Motor)

	// The viewer's pending wait outlives the program after quitting.
	go func() { waitForDone(s)() }()

	final, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	close(r.release)
	got := make(chan *selftest.Report, 1)
	go func() {
		report, err := watchOutcome(final, s)
		assert.NoError(t, err)
		got <- report
	}()

	select {
	case report := <-got:
		assert.Same(t, r.report, report)
	case <-time.After(2 * time.Second):
		t.Fatal("no report after the viewer quit early")
	}
}

func TestWatchDoneMessageRecordsResult(t *testing.T) {
	s, r := startHeld(t)
	m := initialWatchModel(s, droid.DefaultConfig().Motor)
	close(r.release)

	msg := waitForDone(s)()
	final, _ := m.Update(msg)
	wm := final.(watchModel)
	require.NotNil(t, wm.result)
	assert.Contains(t, wm.logs, "Self-test finished.")

	report, err := watchOutcome(final, s)
	require.NoError(t, err)
	assert.Same(t, r.report, report)
}
