package deploy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayci/slipway/internal/artifact"
	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	"github.com/slipwayci/slipway/internal/engine"
	"github.com/slipwayci/slipway/internal/run"
	"github.com/slipwayci/slipway/internal/runner"
	"github.com/slipwayci/slipway/internal/secret"
)

// TestPushToDeploymentFlow drives a push event through the engine with
// the real runner, then ships the published artifact with the agent.
// The two jobs share one wave, the build publishes an artifact, and a
// manual deployment of that run reaches Succeeded with the app verified
// running.
func TestPushToDeploymentFlow(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()

	runs, err := run.NewFileStore(home)
	require.NoError(t, err)
	artifacts, err := artifact.NewFileStore(home, nil)
	require.NoError(t, err)
	secrets, err := secret.NewFileStore(home)
	require.NoError(t, err)
	deployments, err := NewFileStore(home)
	require.NoError(t, err)

	p := &domain.Pipeline{
		Name: "app",
		Jobs: []domain.JobDefinition{
			{Name: "test", Steps: []domain.StepDefinition{
				{Name: "unit", Run: "true"},
			}},
			{Name: "build", Steps: []domain.StepDefinition{
				{Name: "compile", Run: "printf 'binary' > app.bin", Publish: "app.bin"},
			}},
		},
	}

	eng := engine.New(runs, artifacts, runner.New(nil), nil, runner.Options{StepTimeout: time.Minute})
	record, err := eng.Execute(ctx, p, domain.TriggerEvent{Kind: constants.TriggerPush, Branch: "main"})
	require.NoError(t, err)

	assert.Equal(t, constants.RunStatusSucceeded, record.Status)
	require.NotNil(t, record.Artifact)
	assert.Equal(t, "app.bin", record.Artifact.Name)
	for _, job := range record.Jobs {
		assert.Equal(t, constants.JobStatusSucceeded, job.Status, job.Name)
	}

	require.NoError(t, secrets.Create(ctx, "deploy-key", secret.Value("-----BEGIN KEY-----"), nil))

	transport := &mockTransport{execOutput: "[]"}
	supervisor := &mockSupervisor{states: []ProcessState{{Known: true, Running: true}}}
	opts := Options{VerifyTimeout: 200 * time.Millisecond, PollInterval: 10 * time.Millisecond}
	agent := NewAgent(deployments, artifacts, secrets, transport, supervisor, nil, opts)

	req, err := agent.Deploy(ctx, record.ID, domain.TargetDescriptor{
		Name:         "prod-1",
		Host:         "203.0.113.10",
		User:         "deploy",
		KeyRef:       "deploy-key",
		App:          "app",
		DeployDir:    "/srv/app",
		StartCommand: "node server.js",
	})
	require.NoError(t, err)

	assert.Equal(t, constants.DeploymentStatusSucceeded, req.Status)
	assert.Equal(t, 1, supervisor.restarts)
	assert.Zero(t, supervisor.starts)
	require.NotEmpty(t, transport.copies)
	assert.Contains(t, transport.copies[0][1], "app.bin")

	stored, err := deployments.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.DeploymentStatusSucceeded, stored.Status)
}
