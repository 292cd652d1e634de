package litesim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1.0, cfg.SimSpeedFactor)
	assert.Equal(t, 1.0, cfg.SpeedMultiplier)
	assert.Equal(t, 50.0, cfg.JointSpeed)
	assert.Equal(t, 100.0, cfg.CartesianSpeed)
	assert.Equal(t, 0.0, cfg.JointClampEpsilon)
	assert.Equal(t, 0.1, cfg.IKLimitTolerance)
	assert.Equal(t, 33*time.Millisecond, cfg.StepInterval)
	assert.Equal(t, 15*time.Second, cfg.WaitTimeout)
	assert.Equal(t, "none", cfg.Driver)
	assert.Equal(t, JointLimit{-3.5, 300}, cfg.Limits().Joint(2))
	assert.Equal(t, time.Second/30, cfg.TelemetryInterval())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "wrong limit count",
			cfg:     Config{JointLimits: []JointLimit{{-1, 1}}},
			wantErr: "expected 6 joint limits",
		},
		{
			name: "inverted limit",
			cfg: Config{JointLimits: []JointLimit{
				{-1, 1}, {-1, 1}, {5, -5}, {-1, 1}, {-1, 1}, {-1, 1},
			}},
			wantErr: "joint 3 min",
		},
		{
			name:    "unknown driver",
			cfg:     Config{Driver: "serial"},
			wantErr: "driver must be",
		},
		{
			name:    "negative epsilon",
			cfg:     Config{JointClampEpsilon: -1},
			wantErr: "must not be negative",
		},
		{
			name:    "telemetry rate too high",
			cfg:     Config{TelemetryRate: 1000},
			wantErr: "telemetry_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("empty path yields defaults", func(t *testing.T) {
		cfg, err := LoadConfig("", logger)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().JointLimits, cfg.JointLimits)
	})

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "litesim.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"sim_speed_factor": 4, "z_offset_mm": -190, "driver": "xarm"}`), 0o644))

		cfg, err := LoadConfig(path, logger)
		require.NoError(t, err)
		assert.Equal(t, 4.0, cfg.SimSpeedFactor)
		assert.Equal(t, -190.0, cfg.ZOffsetMM)
		assert.Equal(t, "xarm", cfg.Driver)
		assert.Equal(t, 0.1, cfg.IKLimitTolerance)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "litesim.yaml")
		body := "step_interval: 10ms\njoint_tolerance: 0.25\njoint_limits:\n" +
			"  - {min: -90, max: 90}\n  - {min: -90, max: 90}\n  - {min: 0, max: 180}\n" +
			"  - {min: -90, max: 90}\n  - {min: -90, max: 90}\n  - {min: -90, max: 90}\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		cfg, err := LoadConfig(path, logger)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Millisecond, cfg.StepInterval)
		assert.Equal(t, 0.25, cfg.JointTolerance)
		assert.Equal(t, JointLimit{0, 180}, cfg.Limits().Joint(2))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/litesim.json", logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("saved config loads back", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "saved.json")
		cfg := DefaultConfig()
		cfg.ZOffsetMM = 12.5
		require.NoError(t, SaveConfig(path, cfg))

		loaded, err := LoadConfig(path, logger)
		require.NoError(t, err)
		assert.Equal(t, 12.5, loaded.ZOffsetMM)
		assert.Equal(t, cfg.Limits(), loaded.Limits())
	})
}
