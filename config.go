package litesim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.viam.com/rdk/logging"
	"gopkg.in/yaml.v3"
)

// Config is loaded once at startup. Zero values are replaced with defaults
// by Validate.
type Config struct {
	// Joint ranges in degrees (default: Lite 6 table)
	JointLimits []JointLimit `json:"joint_limits,omitempty" yaml:"joint_limits,omitempty"`

	// Motion scaling
	SimSpeedFactor  float64 `json:"sim_speed_factor,omitempty" yaml:"sim_speed_factor,omitempty"`   // default: 1.0
	SpeedMultiplier float64 `json:"speed_multiplier,omitempty" yaml:"speed_multiplier,omitempty"`   // default: 1.0
	ZOffsetMM       float64 `json:"z_offset_mm,omitempty" yaml:"z_offset_mm,omitempty"`             // added to FK output Z
	JointSpeed      float64 `json:"joint_speed,omitempty" yaml:"joint_speed,omitempty"`             // deg/s, default: 50
	CartesianSpeed  float64 `json:"cartesian_speed,omitempty" yaml:"cartesian_speed,omitempty"`     // mm/s, default: 100
	CartesianStepMM float64 `json:"cartesian_step_mm,omitempty" yaml:"cartesian_step_mm,omitempty"` // default: 5
	MinPathSteps    int     `json:"min_path_steps,omitempty" yaml:"min_path_steps,omitempty"`       // default: 5

	// Per-path limit tolerances in degrees
	JointClampEpsilon float64 `json:"joint_clamp_epsilon,omitempty" yaml:"joint_clamp_epsilon,omitempty"` // default: 0
	IKLimitTolerance  float64 `json:"ik_limit_tolerance,omitempty" yaml:"ik_limit_tolerance,omitempty"`   // default: 0.1

	// Timing
	StepInterval  time.Duration `json:"step_interval,omitempty" yaml:"step_interval,omitempty"`   // default: 33ms
	PausePoll     time.Duration `json:"pause_poll,omitempty" yaml:"pause_poll,omitempty"`         // default: 100ms
	HardwarePoll  time.Duration `json:"hardware_poll,omitempty" yaml:"hardware_poll,omitempty"`   // default: 50ms
	WaitTimeout   time.Duration `json:"wait_timeout,omitempty" yaml:"wait_timeout,omitempty"`     // default: 15s
	TelemetryRate int           `json:"telemetry_rate,omitempty" yaml:"telemetry_rate,omitempty"` // Hz, default: 30

	// Completion thresholds for hardware waits
	JointTolerance    float64 `json:"joint_tolerance,omitempty" yaml:"joint_tolerance,omitempty"`       // deg, default: 0.5
	PositionTolerance float64 `json:"position_tolerance,omitempty" yaml:"position_tolerance,omitempty"` // mm, default: 1

	// Hardware driver: "xarm" or "none" (default: "none")
	Driver      string        `json:"driver,omitempty" yaml:"driver,omitempty"`
	Address     string        `json:"address,omitempty" yaml:"address,omitempty"`
	DialTimeout time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout,omitempty"` // default: 3s

	limits SafetyLimits
}

// DefaultConfig returns a validated configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// Validate fills defaults and checks ranges.
func (cfg *Config) Validate() error {
	if len(cfg.JointLimits) == 0 {
		cfg.JointLimits = DefaultSafetyLimits().Slice()
	}
	limits, err := NewSafetyLimits(cfg.JointLimits)
	if err != nil {
		return fmt.Errorf("invalid joint_limits: %w", err)
	}
	cfg.limits = limits

	if cfg.SimSpeedFactor == 0 {
		cfg.SimSpeedFactor = 1.0
	}
	if cfg.SpeedMultiplier == 0 {
		cfg.SpeedMultiplier = 1.0
	}
	if cfg.JointSpeed == 0 {
		cfg.JointSpeed = 50
	}
	if cfg.CartesianSpeed == 0 {
		cfg.CartesianSpeed = 100
	}
	if cfg.CartesianStepMM == 0 {
		cfg.CartesianStepMM = 5
	}
	if cfg.MinPathSteps == 0 {
		cfg.MinPathSteps = 5
	}
	if cfg.IKLimitTolerance == 0 {
		cfg.IKLimitTolerance = 0.1
	}
	if cfg.StepInterval == 0 {
		cfg.StepInterval = 33 * time.Millisecond
	}
	if cfg.PausePoll == 0 {
		cfg.PausePoll = 100 * time.Millisecond
	}
	if cfg.HardwarePoll == 0 {
		cfg.HardwarePoll = 50 * time.Millisecond
	}
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = 15 * time.Second
	}
	if cfg.TelemetryRate == 0 {
		cfg.TelemetryRate = 30
	}
	if cfg.JointTolerance == 0 {
		cfg.JointTolerance = 0.5
	}
	if cfg.PositionTolerance == 0 {
		cfg.PositionTolerance = 1.0
	}
	if cfg.Driver == "" {
		cfg.Driver = "none"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	if cfg.SimSpeedFactor < 0 {
		return fmt.Errorf("sim_speed_factor must be positive, got %.3f", cfg.SimSpeedFactor)
	}
	if cfg.SpeedMultiplier < 0 {
		return fmt.Errorf("speed_multiplier must be positive, got %.3f", cfg.SpeedMultiplier)
	}
	if cfg.JointSpeed < 0 || cfg.CartesianSpeed < 0 {
		return fmt.Errorf("speeds must be positive")
	}
	if cfg.CartesianStepMM < 0 || cfg.MinPathSteps < 1 {
		return fmt.Errorf("cartesian_step_mm and min_path_steps must be positive")
	}
	if cfg.JointClampEpsilon < 0 || cfg.IKLimitTolerance < 0 {
		return fmt.Errorf("limit tolerances must not be negative")
	}
	if cfg.TelemetryRate < 1 || cfg.TelemetryRate > 250 {
		return fmt.Errorf("telemetry_rate must be between 1 and 250 Hz, got %d", cfg.TelemetryRate)
	}
	if cfg.StepInterval < 0 || cfg.PausePoll < 0 || cfg.HardwarePoll < 0 || cfg.WaitTimeout < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	if cfg.Driver != "none" && cfg.Driver != "xarm" {
		return fmt.Errorf("driver must be 'none' or 'xarm', got '%s'", cfg.Driver)
	}

	return nil
}

// Limits returns the validated joint range table.
func (cfg *Config) Limits() SafetyLimits {
	return cfg.limits
}

// TelemetryInterval is the monitor tick derived from TelemetryRate.
func (cfg *Config) TelemetryInterval() time.Duration {
	return time.Second / time.Duration(cfg.TelemetryRate)
}

// LoadConfig reads a JSON or YAML file, chosen by extension, and validates
// it. An empty path yields the defaults.
func LoadConfig(path string, logger logging.Logger) (*Config, error) {
	if path == "" {
		if logger != nil {
			logger.Debug("No config file specified, using defaults")
		}
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if logger != nil {
		logger.Infof("Loaded config from %s", path)
	}
	return cfg, nil
}

// SaveConfig writes cfg as indented JSON, or YAML for .yaml/.yml paths.
func SaveConfig(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
