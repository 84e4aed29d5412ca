// Package feetechbus drives the droid's head servos over a Feetech STS bus.
package feetechbus

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gwillem/droid/pkg/droid"
)

const (
	baudRate     = 1_000_000
	busTimeout   = 100 * time.Millisecond
	pollInterval = 20 * time.Millisecond
	// homeSlack is added to the computed travel time before homing gives up.
	homeSlack = 2 * time.Second
	maxSteps  = 4095
)

// Bus implements droid.ServoBus on a serial Feetech bus. Position limits and
// profile velocity are written to the servo and read back from its registers.
// The offset shifts the homing target and is kept on the host.
type Bus struct {
	logger *zap.Logger
	bus    *feetech.Bus
	clock  clock.Clock

	mu      sync.Mutex
	closed  bool
	found   map[int]feetech.FoundServo
	servos  map[int]*feetech.Servo
	offsets map[int]float64
}

// Open connects to the bus on the given serial port.
func Open(logger *zap.Logger, port string) (*Bus, error) {
	return newBus(logger, feetech.BusConfig{
		Port:     port,
		BaudRate: baudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  busTimeout,
	}, clock.New())
}

func newBus(logger *zap.Logger, cfg feetech.BusConfig, clk clock.Clock) (*Bus, error) {
	bus, err := feetech.NewBus(cfg)
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}
	return &Bus{
		logger:  logger.With(zap.String("port", cfg.Port)),
		bus:     bus,
		clock:   clk,
		found:   make(map[int]feetech.FoundServo),
		servos:  make(map[int]*feetech.Servo),
		offsets: make(map[int]float64),
	}, nil
}

// Scan returns the servos answering with IDs in [lo, hi].
func (b *Bus) Scan(ctx context.Context, lo, hi int) ([]feetech.FoundServo, error) {
	found, err := b.bus.Scan(ctx, lo, hi)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range found {
		b.found[s.ID] = s
	}
	return found, nil
}

// Close closes the serial connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return b.bus.Close()
}

func (b *Bus) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

func (b *Bus) HasServo(ctx context.Context, id int) bool {
	_, err := b.servo(ctx, id)
	return err == nil
}

func (b *Bus) servo(ctx context.Context, id int) (*feetech.Servo, error) {
	b.mu.Lock()
	s, ok := b.servos[id]
	found, known := b.found[id]
	b.mu.Unlock()
	if ok {
		return s, nil
	}

	if !known {
		res, err := b.Scan(ctx, id, id)
		if err != nil {
			return nil, fmt.Errorf("scan servo %d: %w", id, err)
		}
		if len(res) == 0 {
			return nil, fmt.Errorf("servo %d not found", id)
		}
		found = res[0]
	}

	s = feetech.NewServo(b.bus, found.ID, found.Model)
	b.mu.Lock()
	b.servos[id] = s
	b.mu.Unlock()
	return s, nil
}

// Home enables torque, moves the servo to its home position at the given
// velocity in degrees per second and waits until it is within tolerance.
// The move is timed, which clears the servo's goal speed.
func (b *Bus) Home(ctx context.Context, id int, tolerance float64, velocity int) error {
	s, err := b.servo(ctx, id)
	if err != nil {
		return err
	}
	log := b.logger.With(zap.Int("id", id))

	raw, err := s.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}

	b.mu.Lock()
	offset := b.offsets[id]
	b.mu.Unlock()

	target := droid.HomeDegrees + offset
	travel := moveTime(droid.StepsToDegrees(raw), target, velocity)
	log.Debug("Homing servo",
		zap.Float64("from", droid.StepsToDegrees(raw)),
		zap.Float64("to", target),
		zap.Duration("travel", travel))

	if err := s.Enable(ctx); err != nil {
		return fmt.Errorf("enable torque: %w", err)
	}
	if err := s.SetPositionWithTime(ctx, droid.DegreesToSteps(target), int(travel.Milliseconds())); err != nil {
		return fmt.Errorf("write goal position: %w", err)
	}

	ctx, cancel := b.clock.WithTimeout(ctx, travel+homeSlack)
	defer cancel()
	ticker := b.clock.Ticker(pollInterval)
	defer ticker.Stop()

	last := droid.StepsToDegrees(raw)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("servo %d stuck at %.1f°, home %.1f° (±%.1f°): %w",
				id, last, target, tolerance, ctx.Err())
		case <-ticker.C:
			raw, err := s.Position(ctx)
			if err != nil {
				log.Debug("Position read failed", zap.Error(err))
				continue
			}
			last = droid.StepsToDegrees(raw)
			if math.Abs(last-target) <= tolerance {
				return nil
			}
		}
	}
}

// moveTime is how long a move from one angle to another takes at velocity
// degrees per second. A non-positive velocity moves as fast as possible.
func moveTime(from, to float64, velocity int) time.Duration {
	if velocity <= 0 {
		return 0
	}
	secs := math.Abs(to-from) / float64(velocity)
	return time.Duration(secs * float64(time.Second)).Round(time.Millisecond)
}

func clampSteps(steps int) int {
	return min(max(steps, 0), maxSteps)
}

// unlocked runs fn with the servo's EEPROM write lock released and restores
// the lock afterwards.
func (b *Bus) unlocked(ctx context.Context, id int, fn func() error) error {
	lock := feetech.RegLock.Address
	if err := b.bus.WriteRegister(ctx, id, lock, []byte{0}); err != nil {
		return fmt.Errorf("unlock eeprom: %w", err)
	}
	err := fn()
	if lerr := b.bus.WriteRegister(ctx, id, lock, []byte{1}); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("lock eeprom: %w", lerr))
	}
	return err
}

// SetRange writes the servo's position limits.
func (b *Bus) SetRange(ctx context.Context, id int, lo, hi float64) error {
	if lo >= hi {
		return fmt.Errorf("servo %d: empty range [%.1f, %.1f]", id, lo, hi)
	}
	s, err := b.servo(ctx, id)
	if err != nil {
		return err
	}
	loSteps := clampSteps(droid.DegreesToSteps(lo))
	hiSteps := clampSteps(droid.DegreesToSteps(hi))
	return b.unlocked(ctx, id, func() error {
		return s.SetPositionLimits(ctx, loSteps, hiSteps)
	})
}

func (b *Bus) SetOffset(ctx context.Context, id int, offset float64) error {
	if _, err := b.servo(ctx, id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offsets[id] = offset
	return nil
}

// SetProfileVelocity writes the goal speed, in degrees per second, used by
// later position moves.
func (b *Bus) SetProfileVelocity(ctx context.Context, id int, velocity int) error {
	if velocity < 0 {
		return fmt.Errorf("servo %d: negative profile velocity %d", id, velocity)
	}
	if _, err := b.servo(ctx, id); err != nil {
		return err
	}
	steps := droid.DegreesToSteps(float64(velocity))
	data := b.bus.Protocol().EncodeWord(uint16(steps))
	if err := b.bus.WriteRegister(ctx, id, feetech.RegGoalVelocity.Address, data); err != nil {
		return fmt.Errorf("write goal speed: %w", err)
	}
	return nil
}

// Settings reads the position limits and goal speed back from the servo.
func (b *Bus) Settings(ctx context.Context, id int) (droid.ServoSettings, error) {
	s, err := b.servo(ctx, id)
	if err != nil {
		return droid.ServoSettings{}, err
	}
	lo, hi, err := s.PositionLimits(ctx)
	if err != nil {
		return droid.ServoSettings{}, fmt.Errorf("read position limits: %w", err)
	}
	reg := feetech.RegGoalVelocity
	data, err := b.bus.ReadRegister(ctx, id, reg.Address, reg.Size)
	if err != nil {
		return droid.ServoSettings{}, fmt.Errorf("read goal speed: %w", err)
	}
	speed := int(b.bus.Protocol().DecodeWord(data)) &^ (1 << reg.SignBit)

	b.mu.Lock()
	defer b.mu.Unlock()
	return droid.ServoSettings{
		Lo:              droid.StepsToDegrees(lo),
		Hi:              droid.StepsToDegrees(hi),
		Offset:          b.offsets[id],
		ProfileVelocity: int(math.Round(droid.StepsToDegrees(speed))),
	}, nil
}

var _ droid.ServoBus = (*Bus)(nil)
