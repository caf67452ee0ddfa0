package config

import (
	"fmt"

	"github.com/slipwayci/slipway/internal/errors"
)

// validLogLevels lists the accepted log level names.
//
//nolint:gochecknoglobals // Read-only lookup table
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", errors.ErrConfigInvalid)
	}

	if cfg.Runner.StepTimeout <= 0 {
		return fmt.Errorf("%w: runner.step_timeout must be positive, got %s",
			errors.ErrConfigInvalid, cfg.Runner.StepTimeout)
	}

	if cfg.Artifacts.Retention.MaxAge < 0 {
		return fmt.Errorf("%w: artifacts.retention.max_age cannot be negative, got %s",
			errors.ErrConfigInvalid, cfg.Artifacts.Retention.MaxAge)
	}
	if cfg.Artifacts.Retention.MaxCount < 0 {
		return fmt.Errorf("%w: artifacts.retention.max_count cannot be negative, got %d",
			errors.ErrConfigInvalid, cfg.Artifacts.Retention.MaxCount)
	}

	if cfg.Deploy.VerifyTimeout <= 0 {
		return fmt.Errorf("%w: deploy.verify_timeout must be positive, got %s",
			errors.ErrConfigInvalid, cfg.Deploy.VerifyTimeout)
	}
	if cfg.Deploy.PollInterval <= 0 {
		return fmt.Errorf("%w: deploy.poll_interval must be positive, got %s",
			errors.ErrConfigInvalid, cfg.Deploy.PollInterval)
	}
	if cfg.Deploy.PollInterval > cfg.Deploy.VerifyTimeout {
		return fmt.Errorf("%w: deploy.poll_interval (%s) exceeds deploy.verify_timeout (%s)",
			errors.ErrConfigInvalid, cfg.Deploy.PollInterval, cfg.Deploy.VerifyTimeout)
	}

	if err := validateTargets(cfg); err != nil {
		return err
	}

	if cfg.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", errors.ErrConfigInvalid)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: server.shutdown_timeout must be positive, got %s",
			errors.ErrConfigInvalid, cfg.Server.ShutdownTimeout)
	}

	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: unknown log.level %q", errors.ErrConfigInvalid, cfg.Log.Level)
	}

	return nil
}

// validateTargets checks each deployment target for completeness and
// name uniqueness.
func validateTargets(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Deploy.Targets))
	for i := range cfg.Deploy.Targets {
		target := &cfg.Deploy.Targets[i]
		if target.Name == "" {
			return fmt.Errorf("%w: deploy.targets[%d].name is required", errors.ErrConfigInvalid, i)
		}
		if seen[target.Name] {
			return fmt.Errorf("%w: duplicate target name %q", errors.ErrConfigInvalid, target.Name)
		}
		seen[target.Name] = true

		if target.Host == "" {
			return fmt.Errorf("%w: target %q: host is required", errors.ErrConfigInvalid, target.Name)
		}
		if target.User == "" {
			return fmt.Errorf("%w: target %q: user is required", errors.ErrConfigInvalid, target.Name)
		}
		if target.KeyRef == "" {
			return fmt.Errorf("%w: target %q: key_ref is required", errors.ErrConfigInvalid, target.Name)
		}
		if target.App == "" {
			return fmt.Errorf("%w: target %q: app is required", errors.ErrConfigInvalid, target.Name)
		}
		if target.DeployDir == "" {
			return fmt.Errorf("%w: target %q: deploy_dir is required", errors.ErrConfigInvalid, target.Name)
		}
		if target.Port < 0 || target.Port > 65535 {
			return fmt.Errorf("%w: target %q: port %d out of range", errors.ErrConfigInvalid, target.Name, target.Port)
		}
	}
	return nil
}
