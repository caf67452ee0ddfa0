// Package runner executes pipeline jobs in isolated ephemeral workspaces.
// Each job gets a fresh temporary directory, runs its steps sequentially
// through the shell, and the workspace is discarded when the job finishes.
// Files a step publishes are read out of the workspace before teardown.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipwayci/slipway/internal/clock"
	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

// DefaultStepTimeout bounds a single step when no timeout is configured.
const DefaultStepTimeout = 30 * time.Minute

// maxOutputBytes caps captured step output to keep run records bounded.
const maxOutputBytes = 1 << 20 // 1 MiB

// Options configures job execution.
type Options struct {
	// StepTimeout bounds each step's execution. Zero uses DefaultStepTimeout.
	StepTimeout time.Duration

	// Env holds extra environment variables injected into every step,
	// merged under the step's own env (step values win).
	Env map[string]string
}

// PublishedFile is a file a step marked for publication, read from the
// workspace before it is discarded.
type PublishedFile struct {
	// Name is the workspace-relative path the step declared.
	Name string

	// Content is the file's bytes at the time the step completed.
	Content []byte
}

// Result carries the outcome of running one job.
type Result struct {
	// Record holds per-step execution state for the run record.
	Record domain.JobRecord

	// Published lists files published by succeeded steps, in step order.
	Published []PublishedFile
}

// Runner executes jobs. Safe for concurrent use; each job gets its own
// workspace and no state is shared between executions.
type Runner struct {
	clock clock.Clock
}

// New creates a Runner.
func New(clk clock.Clock) *Runner {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Runner{clock: clk}
}

// Run executes the job's steps sequentially in a fresh workspace.
//
// A failing step marks the job failed and the remaining steps are
// recorded as skipped, unless the failing step is best-effort, in which
// case execution continues and the failure does not affect the job
// status. The returned error wraps ErrJobFailed, and ErrStepFailed for
// the step that caused it, when the job failed; the Result is valid
// either way.
func (r *Runner) Run(ctx context.Context, job domain.JobDefinition, opts Options) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	workspace, err := os.MkdirTemp("", "slipway-job-*")
	if err != nil {
		return nil, slipwayerrors.Wrapf(err, "failed to create workspace for job %q", job.Name)
	}
	defer func() {
		if rmErr := os.RemoveAll(workspace); rmErr != nil {
			logger.Warn().Err(rmErr).Str("workspace", workspace).Msg("failed to remove workspace")
		}
	}()

	logger.Debug().
		Str("job", job.Name).
		Str("workspace", workspace).
		Int("steps", len(job.Steps)).
		Msg("job started")

	result := &Result{
		Record: domain.JobRecord{
			Name:   job.Name,
			Status: constants.JobStatusRunning,
			Steps:  make([]domain.StepRecord, 0, len(job.Steps)),
		},
	}
	started := r.clock.Now().UTC()
	result.Record.StartedAt = &started

	failed := false
	var stepFailure error
	for _, step := range job.Steps {
		if failed {
			result.Record.Steps = append(result.Record.Steps, domain.StepRecord{
				Name:   step.Name,
				Status: constants.StepStatusSkipped,
			})
			continue
		}

		record := r.runStep(ctx, workspace, step, opts)
		result.Record.Steps = append(result.Record.Steps, record)

		if record.Status == constants.StepStatusFailed {
			if step.BestEffort {
				logger.Warn().
					Str("job", job.Name).
					Str("step", step.Name).
					Int("exit_code", record.ExitCode).
					Msg("best-effort step failed, continuing")
				continue
			}
			failed = true
			stepFailure = fmt.Errorf("step %q: %w", step.Name, slipwayerrors.ErrStepFailed)
			continue
		}

		if step.Publish != "" {
			published, pubErr := readPublished(workspace, step.Publish)
			if pubErr != nil {
				logger.Error().
					Err(pubErr).
					Str("job", job.Name).
					Str("step", step.Name).
					Msg("failed to read published file")
				// A publish step whose output is missing failed its purpose.
				last := &result.Record.Steps[len(result.Record.Steps)-1]
				last.Status = constants.StepStatusFailed
				last.Error = pubErr.Error()
				if step.BestEffort {
					continue
				}
				failed = true
				stepFailure = fmt.Errorf("step %q: %w", step.Name, slipwayerrors.ErrStepFailed)
				continue
			}
			result.Published = append(result.Published, *published)
		}
	}

	completed := r.clock.Now().UTC()
	result.Record.CompletedAt = &completed

	if failed {
		result.Record.Status = constants.JobStatusFailed
		logger.Debug().Str("job", job.Name).Msg("job failed")
		return result, fmt.Errorf("job %q: %w: %w", job.Name, stepFailure, slipwayerrors.ErrJobFailed)
	}

	result.Record.Status = constants.JobStatusSucceeded
	logger.Debug().Str("job", job.Name).Msg("job succeeded")
	return result, nil
}

// runStep executes a single step through the shell in the workspace and
// returns its record. Cancellation kills the whole process group so
// child processes do not outlive the step.
func (r *Runner) runStep(ctx context.Context, workspace string, step domain.StepDefinition, opts Options) domain.StepRecord {
	logger := zerolog.Ctx(ctx)

	record := domain.StepRecord{
		Name:   step.Name,
		Status: constants.StepStatusRunning,
	}
	started := r.clock.Now().UTC()
	record.StartedAt = &started

	timeout := opts.StepTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(stepCtx, "sh", "-c", step.Run) //#nosec G204 -- pipeline steps are user-authored shell commands
	cmd.Dir = workspace
	cmd.Env = buildEnv(opts.Env, step.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative PID targets the process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()

	completed := r.clock.Now().UTC()
	record.CompletedAt = &completed
	record.Output = truncateOutput(output.String())

	if err != nil {
		record.Status = constants.StepStatusFailed
		record.ExitCode = exitCode(err)
		switch {
		case stepCtx.Err() == context.DeadlineExceeded:
			record.Error = fmt.Sprintf("step timed out after %s", timeout)
		case ctx.Err() != nil:
			record.Error = "step canceled"
		default:
			record.Error = err.Error()
		}
		logger.Debug().
			Str("step", step.Name).
			Int("exit_code", record.ExitCode).
			Str("error", record.Error).
			Msg("step failed")
		return record
	}

	record.Status = constants.StepStatusSucceeded
	logger.Debug().Str("step", step.Name).Msg("step succeeded")
	return record
}

// readPublished reads a file the step published, rejecting paths that
// escape the workspace.
func readPublished(workspace, name string) (*PublishedFile, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return nil, fmt.Errorf("publish path %q: %w", name, slipwayerrors.ErrPathTraversal)
	}

	content, err := os.ReadFile(filepath.Join(workspace, cleaned)) //#nosec G304 -- path is validated against the workspace root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("published file %q not found in workspace: %w", name, slipwayerrors.ErrNoArtifact)
		}
		return nil, slipwayerrors.Wrapf(err, "failed to read published file %q", name)
	}
	return &PublishedFile{Name: cleaned, Content: content}, nil
}

// buildEnv merges the process environment, runner-level env, and
// step-level env. Later sources win on key collisions.
func buildEnv(runnerEnv, stepEnv map[string]string) []string {
	env := os.Environ()
	for k, v := range runnerEnv {
		env = append(env, k+"="+v)
	}
	for k, v := range stepEnv {
		env = append(env, k+"="+v)
	}
	return env
}

// exitCode extracts a process exit code from a command error.
// Non-exit errors (spawn failures, kills) report -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// truncateOutput bounds captured output, keeping the tail where failure
// detail usually lives.
func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return "...[truncated]...\n" + s[len(s)-maxOutputBytes:]
}
