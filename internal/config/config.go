// Package config provides configuration management for slipway.
// Configuration is loaded from environment variables (SLIPWAY_* prefix),
// a project config file (.slipway/config.yaml), a global config file
// (~/.slipway/config.yaml), and built-in defaults, in that precedence.
package config

import (
	"time"

	"github.com/slipwayci/slipway/internal/domain"
)

// Config is the root configuration structure.
type Config struct {
	// Runner configures job execution.
	Runner RunnerConfig `mapstructure:"runner" yaml:"runner"`

	// Artifacts configures the artifact store.
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`

	// Deploy configures the deployment agent and its targets.
	Deploy DeployConfig `mapstructure:"deploy" yaml:"deploy"`

	// Server configures the webhook listener.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Log configures CLI logging.
	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// RunnerConfig controls job execution behavior.
type RunnerConfig struct {
	// StepTimeout bounds each pipeline step.
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`

	// Env holds environment variables injected into every step.
	Env map[string]string `mapstructure:"env" yaml:"env,omitempty"`
}

// ArtifactsConfig controls artifact storage and retention.
type ArtifactsConfig struct {
	// Retention controls artifact eviction.
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
}

// RetentionConfig bounds how long and how many artifacts are kept.
// Zero values disable the corresponding dimension.
type RetentionConfig struct {
	// MaxAge evicts artifacts older than this duration.
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age"`

	// MaxCount keeps only the newest MaxCount artifacts.
	MaxCount int `mapstructure:"max_count" yaml:"max_count"`
}

// DeployConfig controls the deployment agent.
type DeployConfig struct {
	// VerifyTimeout bounds the liveness verification phase.
	VerifyTimeout time.Duration `mapstructure:"verify_timeout" yaml:"verify_timeout"`

	// PollInterval is the delay between liveness checks.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// Targets lists the configured deployment targets.
	Targets []domain.TargetDescriptor `mapstructure:"targets" yaml:"targets,omitempty"`
}

// Target returns the configured target with the given name, or nil.
func (d *DeployConfig) Target(name string) *domain.TargetDescriptor {
	for i := range d.Targets {
		if d.Targets[i].Name == name {
			return &d.Targets[i]
		}
	}
	return nil
}

// ServerConfig controls the webhook listener.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string `mapstructure:"addr" yaml:"addr"`

	// WebhookSecretRef names the secret holding the HMAC key used to
	// verify webhook signatures. Empty disables signature verification.
	WebhookSecretRef string `mapstructure:"webhook_secret_ref" yaml:"webhook_secret_ref,omitempty"`

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig controls CLI logging behavior.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `mapstructure:"level" yaml:"level"`
}

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Runner: RunnerConfig{
			StepTimeout: 30 * time.Minute,
		},
		Artifacts: ArtifactsConfig{
			Retention: RetentionConfig{
				MaxAge:   0,
				MaxCount: 50,
			},
		},
		Deploy: DeployConfig{
			VerifyTimeout: 60 * time.Second,
			PollInterval:  2 * time.Second,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8344",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
