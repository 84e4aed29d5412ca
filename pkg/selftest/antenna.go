package selftest

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gwillem/droid/pkg/droid"
)

const (
	sweepStep  = 4
	sweepDelay = 25 * time.Millisecond
	restLevel  = 127
)

// PeripheralProbe checks that the antenna light controller answers and, if
// it does, plays a brightness sweep across all antennas.
type PeripheralProbe struct {
	logger *zap.Logger
	bus    droid.PeripheralBus
	addr   uint16
	clock  clock.Clock
	sink   guardedSink
}

// NewPeripheralProbe creates a probe for the device at addr.
func NewPeripheralProbe(logger *zap.Logger, bus droid.PeripheralBus, addr uint16, clk clock.Clock, sink FeedbackSink) *PeripheralProbe {
	if sink == nil {
		sink = nopSink{}
	}
	return &PeripheralProbe{
		logger: logger,
		bus:    bus,
		addr:   addr,
		clock:  clk,
		sink:   guardedSink{sink: sink},
	}
}

// Run reports whether the device is present. Absence is not an error.
func (p *PeripheralProbe) Run() bool {
	if p.bus == nil {
		p.sink.Log("Antenna error: no peripheral bus")
		return false
	}
	if err := p.bus.Probe(p.addr); err != nil {
		p.sink.logf("Antenna error: %v", err)
		p.logger.Warn("Antenna controller not found", zap.Uint16("addr", p.addr), zap.Error(err))
		return false
	}
	p.sweep()
	return true
}

// SweepLevels returns the brightness sequence of the presence sweep:
// up from rest to full, down to a quarter, back up, and settle at rest.
func SweepLevels() []uint8 {
	var levels []uint8
	for v := restLevel; v < 255; v += sweepStep {
		levels = append(levels, uint8(v))
	}
	for v := 255; v > 64; v -= sweepStep {
		levels = append(levels, uint8(v))
	}
	for v := 64; v < restLevel; v += sweepStep {
		levels = append(levels, uint8(v))
	}
	return append(levels, restLevel)
}

func (p *PeripheralProbe) sweep() {
	levels := SweepLevels()
	for i, v := range levels {
		if err := p.bus.WriteLevels(p.addr, v, v, v); err != nil {
			p.logger.Debug("Antenna write failed", zap.Uint8("level", v), zap.Error(err))
		}
		if i < len(levels)-1 {
			p.clock.Sleep(sweepDelay)
		}
	}
}
