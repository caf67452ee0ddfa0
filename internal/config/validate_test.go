package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayci/slipway/internal/domain"
	"github.com/slipwayci/slipway/internal/errors"
)

// targetFixture builds a complete deployment target descriptor.
func targetFixture(name string) domain.TargetDescriptor {
	return domain.TargetDescriptor{
		Name:      name,
		Host:      "203.0.113.10",
		User:      "deploy",
		KeyRef:    "deploy-key",
		App:       "app",
		DeployDir: "/srv/app",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(cfg *Config)
		contains string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:     "zero step timeout",
			mutate:   func(cfg *Config) { cfg.Runner.StepTimeout = 0 },
			contains: "step_timeout must be positive",
		},
		{
			name:     "negative retention age",
			mutate:   func(cfg *Config) { cfg.Artifacts.Retention.MaxAge = -time.Hour },
			contains: "max_age cannot be negative",
		},
		{
			name:     "negative retention count",
			mutate:   func(cfg *Config) { cfg.Artifacts.Retention.MaxCount = -1 },
			contains: "max_count cannot be negative",
		},
		{
			name:     "zero verify timeout",
			mutate:   func(cfg *Config) { cfg.Deploy.VerifyTimeout = 0 },
			contains: "verify_timeout must be positive",
		},
		{
			name:     "zero poll interval",
			mutate:   func(cfg *Config) { cfg.Deploy.PollInterval = 0 },
			contains: "poll_interval must be positive",
		},
		{
			name: "poll interval exceeds verify timeout",
			mutate: func(cfg *Config) {
				cfg.Deploy.VerifyTimeout = time.Second
				cfg.Deploy.PollInterval = 2 * time.Second
			},
			contains: "exceeds deploy.verify_timeout",
		},
		{
			name:     "empty server addr",
			mutate:   func(cfg *Config) { cfg.Server.Addr = "" },
			contains: "server.addr is required",
		},
		{
			name:     "zero shutdown timeout",
			mutate:   func(cfg *Config) { cfg.Server.ShutdownTimeout = 0 },
			contains: "shutdown_timeout must be positive",
		},
		{
			name:     "unknown log level",
			mutate:   func(cfg *Config) { cfg.Log.Level = "loud" },
			contains: "unknown log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.contains == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errors.ErrConfigInvalid)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}

	t.Run("nil config", func(t *testing.T) {
		require.ErrorIs(t, Validate(nil), errors.ErrConfigInvalid)
	})
}

func TestValidateTargets(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(target *domain.TargetDescriptor)
		contains string
	}{
		{"complete target", func(*domain.TargetDescriptor) {}, ""},
		{"missing name", func(tg *domain.TargetDescriptor) { tg.Name = "" }, "name is required"},
		{"missing host", func(tg *domain.TargetDescriptor) { tg.Host = "" }, "host is required"},
		{"missing user", func(tg *domain.TargetDescriptor) { tg.User = "" }, "user is required"},
		{"missing key ref", func(tg *domain.TargetDescriptor) { tg.KeyRef = "" }, "key_ref is required"},
		{"missing app", func(tg *domain.TargetDescriptor) { tg.App = "" }, "app is required"},
		{"missing deploy dir", func(tg *domain.TargetDescriptor) { tg.DeployDir = "" }, "deploy_dir is required"},
		{"port out of range", func(tg *domain.TargetDescriptor) { tg.Port = 70000 }, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			target := targetFixture("prod-1")
			tt.mutate(&target)
			cfg.Deploy.Targets = []domain.TargetDescriptor{target}

			err := Validate(cfg)
			if tt.contains == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errors.ErrConfigInvalid)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}

	t.Run("duplicate target names", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Deploy.Targets = []domain.TargetDescriptor{
			targetFixture("prod-1"),
			targetFixture("prod-1"),
		}

		err := Validate(cfg)
		require.ErrorIs(t, err, errors.ErrConfigInvalid)
		assert.Contains(t, err.Error(), "duplicate target name")
	})
}
