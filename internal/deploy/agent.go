package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipwayci/slipway/internal/artifact"
	"github.com/slipwayci/slipway/internal/clock"
	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
	"github.com/slipwayci/slipway/internal/flock"
	"github.com/slipwayci/slipway/internal/secret"
)

// Default verification bounds, overridable through Options.
const (
	DefaultVerifyTimeout = 60 * time.Second
	DefaultPollInterval  = 2 * time.Second
)

// Options configures deployment behavior.
type Options struct {
	// VerifyTimeout bounds the liveness verification phase.
	// Zero uses DefaultVerifyTimeout.
	VerifyTimeout time.Duration

	// PollInterval is the delay between liveness checks.
	// Zero uses DefaultPollInterval.
	PollInterval time.Duration
}

// Agent executes deployment requests. Each request walks the fixed
// phase sequence (fetch, connect, transfer, restart-or-start, verify)
// exactly once; there is no automatic retry, and a per-target lock
// guarantees at most one deployment per target in flight.
type Agent struct {
	deployments *FileStore
	artifacts   artifact.Store
	secrets     secret.Store
	transport   Transport
	supervisor  Supervisor
	clock       clock.Clock
	opts        Options
}

// NewAgent creates an Agent.
func NewAgent(deployments *FileStore, artifacts artifact.Store, secrets secret.Store, transport Transport, supervisor Supervisor, clk clock.Clock, opts Options) *Agent {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = DefaultVerifyTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Agent{
		deployments: deployments,
		artifacts:   artifacts,
		secrets:     secrets,
		transport:   transport,
		supervisor:  supervisor,
		clock:       clk,
		opts:        opts,
	}
}

// Deploy dispatches the artifact of the given run to the target and
// drives the request to a terminal state. The returned request is valid
// whenever it is non-nil, including on failure.
//
// Returns ErrNoArtifact if the run never published an artifact and
// ErrDeploymentInFlight if another deployment to the target is active.
func (a *Agent) Deploy(ctx context.Context, runID string, target domain.TargetDescriptor) (*domain.DeploymentRequest, error) {
	logger := zerolog.Ctx(ctx)

	ref, err := a.artifacts.Reference(ctx, runID)
	if err != nil {
		if errors.Is(err, slipwayerrors.ErrArtifactUnavailable) {
			return nil, fmt.Errorf("run '%s': %w", runID, slipwayerrors.ErrNoArtifact)
		}
		return nil, err
	}

	// Single-flight guard: one non-blocking attempt, fail fast when a
	// deployment to this target is already running.
	lockPath, err := a.deployments.TargetLockPath(target.Name)
	if err != nil {
		return nil, err
	}
	lock, err := flock.TryAcquire(lockPath)
	if err != nil {
		return nil, fmt.Errorf("target '%s': %w", target.Name, slipwayerrors.ErrDeploymentInFlight)
	}
	defer func() { _ = lock.Release() }()

	now := a.clock.Now().UTC()
	req := &domain.DeploymentRequest{
		ID:        GenerateID(),
		RunID:     runID,
		Artifact:  *ref,
		Target:    target.Name,
		Status:    constants.DeploymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.deployments.Create(ctx, req); err != nil {
		return nil, err
	}

	logger.Info().
		Str("deployment_id", req.ID).
		Str("run_id", runID).
		Str("target", target.Name).
		Str("digest", ref.Digest).
		Msg("deployment dispatched")

	if err := a.execute(ctx, req, target); err != nil {
		return req, err
	}

	logger.Info().
		Str("deployment_id", req.ID).
		Str("target", target.Name).
		Msg("deployment succeeded")
	return req, nil
}

// execute walks the phase sequence, persisting each transition. Every
// error path, including cancellation between phases, drives the request
// to the Failed terminal state before returning.
func (a *Agent) execute(ctx context.Context, req *domain.DeploymentRequest, target domain.TargetDescriptor) error {
	// Phase 1: fetch the artifact content from the local store.
	content, err := a.artifacts.Get(ctx, &req.Artifact)
	if err != nil {
		return a.fail(ctx, req, slipwayerrors.Wrap(err, "fetch phase"))
	}

	// Phase 2: resolve credentials and establish the remote session.
	sess, cleanup, err := a.openSession(ctx, target)
	if err != nil {
		return a.fail(ctx, req, err)
	}
	defer cleanup()

	if err := a.transport.Connect(ctx, sess); err != nil {
		return a.fail(ctx, req, err)
	}

	// Phase 3: transfer the artifact and activate it atomically.
	if err := a.transition(ctx, req, constants.DeploymentStatusTransferring, "connected"); err != nil {
		return a.fail(ctx, req, err)
	}
	if err := a.transfer(ctx, req, sess, content); err != nil {
		return a.fail(ctx, req, err)
	}

	// Phase 4: restart the process, or start it if the supervisor does
	// not know it yet. The choice is made from one status read and the
	// chosen action runs exactly once.
	if err := a.transition(ctx, req, constants.DeploymentStatusRestarting, "artifact activated"); err != nil {
		return a.fail(ctx, req, err)
	}
	if err := a.restartOrStart(ctx, sess, target); err != nil {
		return a.fail(ctx, req, err)
	}

	// Phase 5: verify the process reaches a running state in time.
	if err := a.transition(ctx, req, constants.DeploymentStatusVerifying, "process signaled"); err != nil {
		return a.fail(ctx, req, err)
	}
	if err := a.verify(ctx, sess, target); err != nil {
		return a.fail(ctx, req, err)
	}

	if err := a.transition(ctx, req, constants.DeploymentStatusSucceeded, "process verified running"); err != nil {
		return a.fail(ctx, req, err)
	}
	return nil
}

// openSession resolves the target's SSH key from the secret store into
// a temporary identity file. The returned cleanup removes it.
func (a *Agent) openSession(ctx context.Context, target domain.TargetDescriptor) (Session, func(), error) {
	noop := func() {}

	record, err := a.secrets.Resolve(ctx, target.KeyRef, target.Name)
	if err != nil {
		return Session{}, noop, fmt.Errorf("credentials for target '%s': %s: %w",
			target.Name, err.Error(), slipwayerrors.ErrConnectionFailed)
	}

	keyFile, err := os.CreateTemp("", "slipway-key-*")
	if err != nil {
		return Session{}, noop, slipwayerrors.Wrap(err, "failed to create identity file")
	}
	cleanup := func() { _ = os.Remove(keyFile.Name()) }

	if err := keyFile.Chmod(0o600); err != nil {
		_ = keyFile.Close()
		cleanup()
		return Session{}, noop, slipwayerrors.Wrap(err, "failed to restrict identity file")
	}
	if _, err := keyFile.WriteString(record.Value.Plaintext()); err != nil {
		_ = keyFile.Close()
		cleanup()
		return Session{}, noop, slipwayerrors.Wrap(err, "failed to write identity file")
	}
	if err := keyFile.Close(); err != nil {
		cleanup()
		return Session{}, noop, slipwayerrors.Wrap(err, "failed to close identity file")
	}

	return Session{Target: target, KeyPath: keyFile.Name()}, cleanup, nil
}

// transfer copies the artifact into a fresh release directory on the
// target and swaps the current symlink to it in a single rename. The
// previous release stays on disk untouched until it is activated again
// or cleaned up manually; an interrupted transfer never replaces it.
func (a *Agent) transfer(ctx context.Context, req *domain.DeploymentRequest, sess Session, content []byte) error {
	logger := zerolog.Ctx(ctx)

	releaseDir := path.Join(sess.Target.DeployDir, "releases", req.ID)
	if _, err := a.transport.Exec(ctx, sess, "mkdir -p "+shellQuote(releaseDir)); err != nil {
		return fmt.Errorf("failed to create release directory: %s: %w", err.Error(), slipwayerrors.ErrTransferFailed)
	}

	localPath, err := a.stageLocally(req.Artifact.Name, content)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(localPath) }()

	remotePath := path.Join(releaseDir, req.Artifact.Name)
	if err := a.transport.Copy(ctx, sess, localPath, remotePath); err != nil {
		return err
	}

	// Activation is a symlink created aside and renamed over the current
	// link. rename(2) is atomic, so observers see either the old release
	// or the new one, never a partial state.
	currentLink := path.Join(sess.Target.DeployDir, "current")
	swap := fmt.Sprintf("ln -s %s %s && mv -Tf %s %s",
		shellQuote(releaseDir), shellQuote(currentLink+".next"),
		shellQuote(currentLink+".next"), shellQuote(currentLink))
	if _, err := a.transport.Exec(ctx, sess, swap); err != nil {
		return fmt.Errorf("failed to activate release: %s: %w", err.Error(), slipwayerrors.ErrTransferFailed)
	}

	req.Release = releaseDir
	logger.Debug().
		Str("deployment_id", req.ID).
		Str("release", releaseDir).
		Msg("release activated")
	return nil
}

// stageLocally writes artifact content to a temp file for scp.
func (a *Agent) stageLocally(name string, content []byte) (string, error) {
	dir, err := os.MkdirTemp("", "slipway-deploy-*")
	if err != nil {
		return "", slipwayerrors.Wrap(err, "failed to stage artifact")
	}
	localPath := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(localPath, content, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", slipwayerrors.Wrap(err, "failed to stage artifact")
	}
	return localPath, nil
}

// restartOrStart restarts the target's app if the supervisor knows it,
// otherwise starts it from the configured entrypoint.
func (a *Agent) restartOrStart(ctx context.Context, sess Session, target domain.TargetDescriptor) error {
	logger := zerolog.Ctx(ctx)

	state, err := a.supervisor.Status(ctx, sess, target.App)
	if err != nil {
		return err
	}

	if state.Known {
		logger.Debug().Str("app", target.App).Msg("restarting known process")
		return a.supervisor.Restart(ctx, sess, target.App)
	}

	logger.Debug().Str("app", target.App).Msg("process unknown, starting")
	return a.supervisor.Start(ctx, sess, target.App, target.StartCommand)
}

// verify polls the supervisor until the app reports running or the
// verification timeout elapses.
func (a *Agent) verify(ctx context.Context, sess Session, target domain.TargetDescriptor) error {
	logger := zerolog.Ctx(ctx)
	deadline := a.clock.Now().Add(a.opts.VerifyTimeout)

	for {
		state, err := a.supervisor.Status(ctx, sess, target.App)
		if err == nil && state.Known && state.Running {
			return nil
		}
		if err != nil {
			logger.Debug().Err(err).Str("app", target.App).Msg("liveness check error")
		}

		if a.clock.Now().After(deadline) {
			return fmt.Errorf("app '%s' not running after %s: %w",
				target.App, a.opts.VerifyTimeout, slipwayerrors.ErrVerificationFailed)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.opts.PollInterval):
		}
	}
}

// transition applies and persists a state change.
func (a *Agent) transition(ctx context.Context, req *domain.DeploymentRequest, to constants.DeploymentStatus, reason string) error {
	if err := Transition(ctx, req, to, reason); err != nil {
		return err
	}
	return a.deployments.Update(context.WithoutCancel(ctx), req)
}

// fail moves the request to the failed terminal state, recording the
// cause, and returns the original error.
func (a *Agent) fail(ctx context.Context, req *domain.DeploymentRequest, cause error) error {
	logger := zerolog.Ctx(ctx)
	logger.Error().
		Err(cause).
		Str("deployment_id", req.ID).
		Str("target", req.Target).
		Msg("deployment failed")

	req.Error = cause.Error()
	if err := Transition(context.WithoutCancel(ctx), req, constants.DeploymentStatusFailed, cause.Error()); err != nil {
		logger.Error().Err(err).Str("deployment_id", req.ID).Msg("failed to record failure transition")
	} else if err := a.deployments.Update(context.WithoutCancel(ctx), req); err != nil {
		logger.Error().Err(err).Str("deployment_id", req.ID).Msg("failed to persist failure")
	}
	return cause
}
