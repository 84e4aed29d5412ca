package droid

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests use t.Setenv and must not run in parallel.

func TestLoadConfigFrom_Defaults(t *testing.T) {
	cfg, err := LoadConfigFrom("")
	require.NoError(t, err)

	assert.Equal(t, uint16(0x17), cfg.AntennaAddress)
	assert.Equal(t, 2*time.Second, cfg.StartDelay)
	assert.Equal(t, 12.0, cfg.Battery.MinVoltage)
	assert.Equal(t, 17.0, cfg.Battery.MaxVoltage)
	assert.False(t, cfg.Battery.EnforceUnderVoltage)
	assert.Equal(t, 100, cfg.Attitude.SettleSamples)
	assert.Equal(t, DefaultThresholds(), cfg.Motor)
	assert.Equal(t, DefaultServos(), cfg.Servos)
}

func TestLoadConfigFrom_EnvOverride(t *testing.T) {
	t.Setenv("DROID_BATTERY_MAX_VOLTAGE", "16.5")
	t.Setenv("DROID_BATTERY_ENFORCE_UNDER_VOLTAGE", "true")
	t.Setenv("DROID_MOTOR_MAX_POWER", "200")
	t.Setenv("DROID_SERVO_PORT", "/dev/ttyUSB0")

	cfg, err := LoadConfigFrom("")
	require.NoError(t, err)

	assert.Equal(t, 16.5, cfg.Battery.MaxVoltage)
	assert.True(t, cfg.Battery.EnforceUnderVoltage)
	assert.Equal(t, 200, cfg.Motor.MaxPower)
	assert.Equal(t, "/dev/ttyUSB0", cfg.ServoPort)
}

func TestLoadConfigFrom_InvalidFile(t *testing.T) {
	_, err := LoadConfigFrom("/nonexistent/path/droid.json")
	assert.Error(t, err)
}

func TestLoadConfigFrom_RejectsInvalidThresholds(t *testing.T) {
	t.Setenv("DROID_MOTOR_MIN_POWER", "150")

	_, err := LoadConfigFrom("")
	assert.ErrorContains(t, err, "min_power")
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "droid.json")

	cfg := DefaultConfig()
	cfg.ServoPort = "/dev/ttyACM0"
	cfg.Battery.MinVoltage = 11.1
	cfg.Motor.AbortDistance = 150
	cfg.Servos[1].Offset = -2.5
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "droid.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"battery": {"max_voltage": 16.8}}`), 0644))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 16.8, cfg.Battery.MaxVoltage)
	assert.Equal(t, 12.0, cfg.Battery.MinVoltage)
	assert.Equal(t, DefaultServos(), cfg.Servos)
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Thresholds)
		ok     bool
	}{
		{"defaults", func(*Thresholds) {}, true},
		{"zero step", func(th *Thresholds) { th.PowerStep = 0 }, false},
		{"negative accel", func(th *Thresholds) { th.AbortAccel = -0.5 }, false},
		{"inverted power range", func(th *Thresholds) { th.MinPower = 130 }, false},
		{"power above pwm range", func(th *Thresholds) { th.MaxPower = 300 }, false},
		{"equal power bounds", func(th *Thresholds) { th.MinPower = th.MaxPower }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.modify(&th)
			err := th.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfig_ValidateServos(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servos[2].ID = cfg.Servos[0].ID
	assert.ErrorContains(t, cfg.Validate(), "duplicate id")

	cfg = DefaultConfig()
	cfg.Servos[0].Name = ""
	assert.ErrorContains(t, cfg.Validate(), "missing name")
}
