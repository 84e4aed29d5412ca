package droid

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultConfigFile = "droid.json"

// Config holds the droid configuration
type Config struct {
	ServoPort      string         `json:"servo_port" mapstructure:"servo_port"`
	I2CBus         string         `json:"i2c_bus" mapstructure:"i2c_bus"`
	AntennaAddress uint16         `json:"antenna_address" mapstructure:"antenna_address"`
	StartDelay     time.Duration  `json:"start_delay" mapstructure:"start_delay"`
	Battery        BatteryLimits  `json:"battery" mapstructure:"battery"`
	Attitude       AttitudeLimits `json:"attitude" mapstructure:"attitude"`
	Motor          Thresholds     `json:"motor" mapstructure:"motor"`
	Servos         ServoConfigs   `json:"servos" mapstructure:"servos"`
}

// BatteryLimits bounds the accepted battery voltage.
type BatteryLimits struct {
	MinVoltage float64 `json:"min_voltage" mapstructure:"min_voltage"`
	MaxVoltage float64 `json:"max_voltage" mapstructure:"max_voltage"`
	// EnforceUnderVoltage makes a low battery a critical failure.
	// Off by default: a low battery is only reported.
	EnforceUnderVoltage bool `json:"enforce_under_voltage" mapstructure:"enforce_under_voltage"`
}

// AttitudeLimits decides whether the droid stands level enough to be tested.
type AttitudeLimits struct {
	MaxTilt       float64 `json:"max_tilt" mapstructure:"max_tilt"`
	MinVertical   float64 `json:"min_vertical" mapstructure:"min_vertical"`
	SettleSamples int     `json:"settle_samples" mapstructure:"settle_samples"`
}

// Thresholds are the motor ramp limits. Every value is a magnitude compared
// against the absolute value of a live reading.
type Thresholds struct {
	MinPower  int `json:"min_power" mapstructure:"min_power"`
	MaxPower  int `json:"max_power" mapstructure:"max_power"`
	PowerStep int `json:"power_step" mapstructure:"power_step"`

	AbortCurrent       float64 `json:"abort_current" mapstructure:"abort_current"`
	AbortDistance      float64 `json:"abort_distance" mapstructure:"abort_distance"`
	AbortHeadingChange float64 `json:"abort_heading_change" mapstructure:"abort_heading_change"`
	AbortAccel         float64 `json:"abort_accel" mapstructure:"abort_accel"`

	MinDistance      float64 `json:"min_distance" mapstructure:"min_distance"`
	MinAccel         float64 `json:"min_accel" mapstructure:"min_accel"`
	MinHeadingChange float64 `json:"min_heading_change" mapstructure:"min_heading_change"`

	BlockedAbortCount    int `json:"blocked_abort_count" mapstructure:"blocked_abort_count"`
	BlockedClassifyCount int `json:"blocked_classify_count" mapstructure:"blocked_classify_count"`
}

// DefaultThresholds returns the stock ramp limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinPower:             20,
		MaxPower:             120,
		PowerStep:            1,
		AbortCurrent:         1500,
		AbortDistance:        200,
		AbortHeadingChange:   45,
		AbortAccel:           0.5,
		MinDistance:          10,
		MinAccel:             0.05,
		MinHeadingChange:     3,
		BlockedAbortCount:    10,
		BlockedClassifyCount: 5,
	}
}

// Validate reports the first threshold that is not a positive magnitude or
// an inconsistent power range.
func (t Thresholds) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"min_power", float64(t.MinPower)},
		{"max_power", float64(t.MaxPower)},
		{"power_step", float64(t.PowerStep)},
		{"abort_current", t.AbortCurrent},
		{"abort_distance", t.AbortDistance},
		{"abort_heading_change", t.AbortHeadingChange},
		{"abort_accel", t.AbortAccel},
		{"min_distance", t.MinDistance},
		{"min_accel", t.MinAccel},
		{"min_heading_change", t.MinHeadingChange},
		{"blocked_abort_count", float64(t.BlockedAbortCount)},
		{"blocked_classify_count", float64(t.BlockedClassifyCount)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("motor.%s must be positive, got %v", p.name, p.value)
		}
	}
	if t.MinPower > t.MaxPower {
		return fmt.Errorf("motor.min_power %d exceeds max_power %d", t.MinPower, t.MaxPower)
	}
	if t.MaxPower > 255 {
		return fmt.Errorf("motor.max_power %d exceeds 255", t.MaxPower)
	}
	return nil
}

// DefaultConfig returns a configuration for simulated hardware with stock limits.
func DefaultConfig() *Config {
	return &Config{
		AntennaAddress: 0x17,
		StartDelay:     2 * time.Second,
		Battery: BatteryLimits{
			MinVoltage: 12.0,
			MaxVoltage: 17.0,
		},
		Attitude: AttitudeLimits{
			MaxTilt:       0.1,
			MinVertical:   0.9,
			SettleSamples: 100,
		},
		Motor:  DefaultThresholds(),
		Servos: DefaultServos(),
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Motor.Validate(); err != nil {
		return err
	}
	if c.Battery.MinVoltage >= c.Battery.MaxVoltage {
		return fmt.Errorf("battery.min_voltage %.2f must be below max_voltage %.2f",
			c.Battery.MinVoltage, c.Battery.MaxVoltage)
	}
	if c.Attitude.MaxTilt <= 0 || c.Attitude.MinVertical <= 0 {
		return errors.New("attitude limits must be positive")
	}
	if c.Attitude.SettleSamples < 0 {
		return fmt.Errorf("attitude.settle_samples must not be negative, got %d", c.Attitude.SettleSamples)
	}
	seen := make(map[int]bool, len(c.Servos))
	for i, sc := range c.Servos {
		if sc.Name == "" {
			return fmt.Errorf("servos[%d]: missing name", i)
		}
		if sc.ID <= 0 {
			return fmt.Errorf("servo %s: id must be positive, got %d", sc.Name, sc.ID)
		}
		if seen[sc.ID] {
			return fmt.Errorf("servo %s: duplicate id %d", sc.Name, sc.ID)
		}
		seen[sc.ID] = true
	}
	return nil
}

// LoadConfig loads configuration from the default config file, falling back
// to defaults when it does not exist
func LoadConfig() (*Config, error) {
	if !ConfigExists() {
		return LoadConfigFrom("")
	}
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file, then overlays
// environment variables with the DROID_ prefix (e.g. DROID_BATTERY_MAX_VOLTAGE).
// An empty path loads defaults and environment only.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DROID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Servos) == 0 {
		cfg.Servos = DefaultServos()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("servo_port", def.ServoPort)
	v.SetDefault("i2c_bus", def.I2CBus)
	v.SetDefault("antenna_address", def.AntennaAddress)
	v.SetDefault("start_delay", def.StartDelay)

	v.SetDefault("battery.min_voltage", def.Battery.MinVoltage)
	v.SetDefault("battery.max_voltage", def.Battery.MaxVoltage)
	v.SetDefault("battery.enforce_under_voltage", def.Battery.EnforceUnderVoltage)

	v.SetDefault("attitude.max_tilt", def.Attitude.MaxTilt)
	v.SetDefault("attitude.min_vertical", def.Attitude.MinVertical)
	v.SetDefault("attitude.settle_samples", def.Attitude.SettleSamples)

	m := def.Motor
	v.SetDefault("motor.min_power", m.MinPower)
	v.SetDefault("motor.max_power", m.MaxPower)
	v.SetDefault("motor.power_step", m.PowerStep)
	v.SetDefault("motor.abort_current", m.AbortCurrent)
	v.SetDefault("motor.abort_distance", m.AbortDistance)
	v.SetDefault("motor.abort_heading_change", m.AbortHeadingChange)
	v.SetDefault("motor.abort_accel", m.AbortAccel)
	v.SetDefault("motor.min_distance", m.MinDistance)
	v.SetDefault("motor.min_accel", m.MinAccel)
	v.SetDefault("motor.min_heading_change", m.MinHeadingChange)
	v.SetDefault("motor.blocked_abort_count", m.BlockedAbortCount)
	v.SetDefault("motor.blocked_classify_count", m.BlockedClassifyCount)
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
