package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile writes a YAML config file into a temp directory.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30*time.Minute, cfg.Runner.StepTimeout)
	assert.Equal(t, 50, cfg.Artifacts.Retention.MaxCount)
	assert.Zero(t, cfg.Artifacts.Retention.MaxAge)
	assert.Equal(t, 60*time.Second, cfg.Deploy.VerifyTimeout)
	assert.Equal(t, 2*time.Second, cfg.Deploy.PollInterval)
	assert.Equal(t, "127.0.0.1:8344", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)

	require.NoError(t, Validate(cfg), "defaults must validate")
}

func TestLoadFromPaths_Defaults(t *testing.T) {
	ctx := context.Background()

	cfg, err := LoadFromPaths(ctx, "", "")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Runner.StepTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Deploy.Targets)
}

func TestLoadFromPaths_SingleFile(t *testing.T) {
	ctx := context.Background()

	path := writeConfigFile(t, `
runner:
  step_timeout: 5m
log:
  level: debug
deploy:
  targets:
    - name: prod-1
      host: 203.0.113.10
      user: deploy
      key_ref: deploy-key
      app: app
      deploy_dir: /srv/app
`)

	cfg, err := LoadFromPaths(ctx, path, "")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Runner.StepTimeout, "duration strings decode")
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Deploy.Targets, 1)
	assert.Equal(t, "prod-1", cfg.Deploy.Targets[0].Name)
	assert.Equal(t, "/srv/app", cfg.Deploy.Targets[0].DeployDir)

	// Untouched keys keep their defaults.
	assert.Equal(t, 60*time.Second, cfg.Deploy.VerifyTimeout)
}

func TestLoadFromPaths_ProjectOverridesGlobal(t *testing.T) {
	ctx := context.Background()

	global := writeConfigFile(t, `
log:
  level: warn
runner:
  step_timeout: 10m
`)
	project := writeConfigFile(t, `
log:
  level: debug
`)

	cfg, err := LoadFromPaths(ctx, project, global)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level, "project config wins")
	assert.Equal(t, 10*time.Minute, cfg.Runner.StepTimeout, "global value survives where project is silent")
}

func TestLoadFromPaths_EnvOverrides(t *testing.T) {
	ctx := context.Background()

	t.Setenv("SLIPWAY_LOG_LEVEL", "error")
	path := writeConfigFile(t, `
log:
  level: debug
`)

	cfg, err := LoadFromPaths(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level, "environment wins over files")
}

func TestLoadFromPaths_InvalidConfig(t *testing.T) {
	ctx := context.Background()

	path := writeConfigFile(t, `
log:
  level: loud
`)

	_, err := LoadFromPaths(ctx, path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadFromPaths_MalformedYAML(t *testing.T) {
	ctx := context.Background()

	path := writeConfigFile(t, "log: [unclosed")

	_, err := LoadFromPaths(ctx, path, "")
	require.Error(t, err)
}

func TestDeployConfig_Target(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Deploy.Targets = append(cfg.Deploy.Targets,
		targetFixture("staging"),
		targetFixture("prod-1"),
	)

	t.Run("known target", func(t *testing.T) {
		target := cfg.Deploy.Target("prod-1")
		require.NotNil(t, target)
		assert.Equal(t, "prod-1", target.Name)
	})

	t.Run("unknown target", func(t *testing.T) {
		assert.Nil(t, cfg.Deploy.Target("ghost"))
	})
}
