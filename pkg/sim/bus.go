package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gwillem/droid/pkg/droid"
)

var errNoAck = errors.New("no acknowledge")

// ServoBus is a simulated servo chain. Servos not listed as present do not
// answer; servos listed in Stuck never reach their home position.
type ServoBus struct {
	mu       sync.Mutex
	stopped  bool
	present  map[int]bool
	stuck    map[int]bool
	settings map[int]droid.ServoSettings
	homed    []int
}

// NewServoBus creates a running bus with the given servo IDs present.
func NewServoBus(ids ...int) *ServoBus {
	b := &ServoBus{
		present:  make(map[int]bool),
		stuck:    make(map[int]bool),
		settings: make(map[int]droid.ServoSettings),
	}
	for _, id := range ids {
		b.present[id] = true
	}
	return b
}

// Stop makes the bus report that it is not running.
func (b *ServoBus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
}

// Stick makes homing of the given servo fail.
func (b *ServoBus) Stick(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stuck[id] = true
}

// Homed returns the IDs homed so far, in order.
func (b *ServoBus) Homed() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.homed...)
}

func (b *ServoBus) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.stopped
}

func (b *ServoBus) HasServo(_ context.Context, id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.present[id]
}

func (b *ServoBus) Home(ctx context.Context, id int, tolerance float64, _ int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.present[id] {
		return fmt.Errorf("servo %d: %w", id, errNoAck)
	}
	if b.stuck[id] {
		return fmt.Errorf("servo %d did not reach home within %.1f°", id, tolerance)
	}
	b.homed = append(b.homed, id)
	return nil
}

func (b *ServoBus) update(id int, fn func(*droid.ServoSettings)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.present[id] {
		return fmt.Errorf("servo %d: %w", id, errNoAck)
	}
	s := b.settings[id]
	fn(&s)
	b.settings[id] = s
	return nil
}

func (b *ServoBus) SetRange(_ context.Context, id int, lo, hi float64) error {
	return b.update(id, func(s *droid.ServoSettings) { s.Lo, s.Hi = lo, hi })
}

func (b *ServoBus) SetOffset(_ context.Context, id int, offset float64) error {
	return b.update(id, func(s *droid.ServoSettings) { s.Offset = offset })
}

func (b *ServoBus) SetProfileVelocity(_ context.Context, id int, velocity int) error {
	return b.update(id, func(s *droid.ServoSettings) { s.ProfileVelocity = velocity })
}

func (b *ServoBus) Settings(_ context.Context, id int) (droid.ServoSettings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.present[id] {
		return droid.ServoSettings{}, fmt.Errorf("servo %d: %w", id, errNoAck)
	}
	return b.settings[id], nil
}

// Antennas is a simulated antenna light controller.
type Antennas struct {
	mu     sync.Mutex
	addr   uint16
	absent bool
	writes [][]uint8
}

// NewAntennas creates a controller answering at addr.
func NewAntennas(addr uint16) *Antennas {
	return &Antennas{addr: addr}
}

// Unplug makes the controller stop answering.
func (a *Antennas) Unplug() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.absent = true
}

func (a *Antennas) Probe(addr uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.absent || addr != a.addr {
		return fmt.Errorf("i2c 0x%02x: %w", addr, errNoAck)
	}
	return nil
}

func (a *Antennas) WriteLevels(addr uint16, levels ...uint8) error {
	if err := a.Probe(addr); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes = append(a.writes, append([]uint8(nil), levels...))
	return nil
}

// Writes returns every level triple written so far.
func (a *Antennas) Writes() [][]uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]uint8(nil), a.writes...)
}
