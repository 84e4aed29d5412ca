package selftest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gwillem/droid/pkg/droid"
)

// ServoState is the outcome of homing a single servo.
type ServoState string

const (
	ServoHomed   ServoState = "homed"
	ServoMissing ServoState = "missing"
	ServoFailed  ServoState = "failed"
)

// ServoResult records what happened to one configured servo.
type ServoResult struct {
	Name     droid.ServoName `json:"name"`
	ID       int             `json:"id"`
	Required bool            `json:"required"`
	State    ServoState      `json:"state"`
}

// ServoHomer homes every configured servo and applies its range, offset and
// profile velocity.
type ServoHomer struct {
	logger *zap.Logger
	bus    droid.ServoBus
	servos droid.ServoConfigs
	sink   guardedSink
}

// NewServoHomer creates a homer for the given servos, homed in slice order.
func NewServoHomer(logger *zap.Logger, bus droid.ServoBus, servos droid.ServoConfigs, sink FeedbackSink) *ServoHomer {
	if sink == nil {
		sink = nopSink{}
	}
	return &ServoHomer{
		logger: logger,
		bus:    bus,
		servos: servos,
		sink:   guardedSink{sink: sink},
	}
}

// HomeAll homes the servos in order. A missing optional servo is skipped.
// A missing required servo, or any servo that fails to home or configure,
// stops homing with an error. The results cover every servo attempted.
func (h *ServoHomer) HomeAll(ctx context.Context) ([]ServoResult, error) {
	if h.bus == nil || !h.bus.IsRunning() {
		h.sink.Log("Critical error: Servo subsystem not started!")
		return nil, fmt.Errorf("servo bus: %w", ErrDependencyMissing)
	}

	results := make([]ServoResult, 0, len(h.servos))
	for _, sc := range h.servos {
		res := ServoResult{Name: sc.Name, ID: sc.ID, Required: sc.Required}
		log := h.logger.With(zap.String("servo", string(sc.Name)), zap.Int("id", sc.ID))

		if !h.bus.HasServo(ctx, sc.ID) {
			res.State = ServoMissing
			results = append(results, res)
			if sc.Required {
				h.sink.logf("Critical error: %s servo missing!", sc.Name)
				log.Error("Required servo missing")
				return results, fmt.Errorf("servo %s (id %d): %w", sc.Name, sc.ID, ErrDependencyMissing)
			}
			h.sink.logf("Degraded: %s servo missing.", sc.Name)
			log.Warn("Optional servo missing")
			continue
		}

		if err := h.home(ctx, sc); err != nil {
			res.State = ServoFailed
			results = append(results, res)
			h.sink.logf("Homing servo %s failed: %v", sc.Name, err)
			log.Error("Servo homing failed", zap.Error(err))
			return results, fmt.Errorf("servo %s (id %d): %v: %w", sc.Name, sc.ID, err, ErrServoFailure)
		}

		res.State = ServoHomed
		results = append(results, res)
		log.Info("Servo homed")
	}

	h.sink.Log("Servos OK.")
	return results, nil
}

func (h *ServoHomer) home(ctx context.Context, sc droid.ServoConfig) error {
	if err := h.bus.Home(ctx, sc.ID, sc.HomeTolerance, sc.HomeVelocity); err != nil {
		return fmt.Errorf("home: %w", err)
	}
	lo, hi := sc.Limits()
	if err := h.bus.SetRange(ctx, sc.ID, lo, hi); err != nil {
		return fmt.Errorf("set range: %w", err)
	}
	if err := h.bus.SetOffset(ctx, sc.ID, sc.Offset); err != nil {
		return fmt.Errorf("set offset: %w", err)
	}
	if sc.ProfileVelocity > 0 {
		if err := h.bus.SetProfileVelocity(ctx, sc.ID, sc.ProfileVelocity); err != nil {
			return fmt.Errorf("set profile velocity: %w", err)
		}
	}
	return nil
}
