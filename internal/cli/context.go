package cli

import (
	"context"
	"path/filepath"

	"github.com/slipwayci/slipway/internal/artifact"
	"github.com/slipwayci/slipway/internal/clock"
	"github.com/slipwayci/slipway/internal/config"
	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/deploy"
	"github.com/slipwayci/slipway/internal/engine"
	"github.com/slipwayci/slipway/internal/run"
	"github.com/slipwayci/slipway/internal/runner"
	"github.com/slipwayci/slipway/internal/secret"
)

// appContext bundles the configuration and stores a command needs.
// Every store lives under the slipway home directory.
type appContext struct {
	cfg         *config.Config
	home        string
	runs        *run.FileStore
	artifacts   *artifact.FileStore
	secrets     *secret.FileStore
	deployments *deploy.FileStore
}

// newAppContext loads configuration and opens the stores.
func newAppContext(ctx context.Context) (*appContext, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	home, err := config.HomeDir()
	if err != nil {
		return nil, err
	}

	runs, err := run.NewFileStore(home)
	if err != nil {
		return nil, err
	}
	artifacts, err := artifact.NewFileStore(filepath.Join(home, constants.ArtifactsDir), clock.RealClock{})
	if err != nil {
		return nil, err
	}
	secrets, err := secret.NewFileStore(home)
	if err != nil {
		return nil, err
	}
	deployments, err := deploy.NewFileStore(home)
	if err != nil {
		return nil, err
	}

	return &appContext{
		cfg:         cfg,
		home:        home,
		runs:        runs,
		artifacts:   artifacts,
		secrets:     secrets,
		deployments: deployments,
	}, nil
}

// newEngine wires a pipeline engine from the app context.
func (a *appContext) newEngine() *engine.Engine {
	jobRunner := runner.New(clock.RealClock{})
	opts := runner.Options{
		StepTimeout: a.cfg.Runner.StepTimeout,
		Env:         a.cfg.Runner.Env,
	}
	return engine.New(a.runs, a.artifacts, jobRunner, clock.RealClock{}, opts)
}

// newAgent wires a deployment agent from the app context.
func (a *appContext) newAgent() *deploy.Agent {
	transport := deploy.NewSSHTransport(nil)
	supervisor := deploy.NewPM2Supervisor(transport)
	opts := deploy.Options{
		VerifyTimeout: a.cfg.Deploy.VerifyTimeout,
		PollInterval:  a.cfg.Deploy.PollInterval,
	}
	return deploy.NewAgent(a.deployments, a.artifacts, a.secrets, transport, supervisor, clock.RealClock{}, opts)
}

// retentionPolicy converts the configured retention settings.
func (a *appContext) retentionPolicy() artifact.RetentionPolicy {
	return artifact.RetentionPolicy{
		MaxAge:   a.cfg.Artifacts.Retention.MaxAge,
		MaxCount: a.cfg.Artifacts.Retention.MaxCount,
	}
}
