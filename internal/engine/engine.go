// Package engine coordinates pipeline execution. It turns a trigger
// event plus a pipeline definition into a persisted run: selecting the
// jobs the event activates, resolving the dependency graph into waves,
// executing independent jobs in parallel, and checkpointing the run
// record after every wave so history survives a crash.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/slipwayci/slipway/internal/artifact"
	"github.com/slipwayci/slipway/internal/clock"
	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
	"github.com/slipwayci/slipway/internal/pipeline"
	"github.com/slipwayci/slipway/internal/run"
	"github.com/slipwayci/slipway/internal/runner"
)

// JobRunner executes a single job. Implemented by runner.Runner;
// abstracted for testing.
type JobRunner interface {
	Run(ctx context.Context, job domain.JobDefinition, opts runner.Options) (*runner.Result, error)
}

// Engine executes pipelines against trigger events.
type Engine struct {
	runs      run.Store
	artifacts artifact.Store
	runner    JobRunner
	clock     clock.Clock
	runnerOpt runner.Options
}

// New creates an Engine.
func New(runs run.Store, artifacts artifact.Store, jobRunner JobRunner, clk clock.Clock, opts runner.Options) *Engine {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Engine{
		runs:      runs,
		artifacts: artifacts,
		runner:    jobRunner,
		clock:     clk,
		runnerOpt: opts,
	}
}

// Execute runs the pipeline for the given trigger event and returns the
// final run record.
//
// Jobs whose trigger predicate does not match the event are excluded;
// if no job matches, no run is created and ErrNoJobsMatched is
// returned. Independent jobs within a wave run concurrently, and one
// job failing never interrupts its siblings. A job is skipped when any
// of its dependencies failed, was skipped, or was not selected.
func (e *Engine) Execute(ctx context.Context, p *domain.Pipeline, event domain.TriggerEvent) (*domain.RunRecord, error) {
	logger := zerolog.Ctx(ctx)

	if err := pipeline.Validate(p); err != nil {
		return nil, err
	}

	selected := pipeline.Select(p, event)
	if len(selected) == 0 {
		return nil, fmt.Errorf("pipeline %q, event %s: %w", p.Name, event.Kind, slipwayerrors.ErrNoJobsMatched)
	}

	waves, err := pipeline.ResolveOrder(p)
	if err != nil {
		return nil, err
	}
	waves = pipeline.FilterWaves(waves, selected)

	record, err := e.createRun(ctx, p, event, selected)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("run_id", record.ID).
		Str("pipeline", p.Name).
		Str("event", event.Kind.String()).
		Str("branch", event.Branch).
		Int("jobs", len(selected)).
		Msg("run started")

	// Bookkeeping transitions run detached from cancellation: a canceled
	// run must still reach a persisted terminal state, which executeWaves
	// and the final transition below take care of.
	if err := run.Transition(context.WithoutCancel(ctx), record, constants.RunStatusRunning, "jobs selected"); err != nil {
		return nil, err
	}
	if err := e.runs.Update(context.WithoutCancel(ctx), record); err != nil {
		return nil, err
	}

	canceled := e.executeWaves(ctx, p, record, waves)

	final := constants.RunStatusSucceeded
	reason := "all jobs completed"
	switch {
	case canceled:
		final = constants.RunStatusCanceled
		reason = "run canceled"
	case anyJobFailed(record):
		final = constants.RunStatusFailed
		reason = "one or more jobs failed"
	}

	if err := run.Transition(context.WithoutCancel(ctx), record, final, reason); err != nil {
		return nil, err
	}
	// Final update writes the terminal state; the store rejects anything after.
	if err := e.runs.Update(context.WithoutCancel(ctx), record); err != nil {
		return nil, err
	}

	logger.Info().
		Str("run_id", record.ID).
		Str("status", final.String()).
		Msg("run finished")

	if canceled {
		return record, ctx.Err()
	}
	return record, nil
}

// createRun builds and persists the initial run record with every
// selected job pending.
func (e *Engine) createRun(ctx context.Context, p *domain.Pipeline, event domain.TriggerEvent, selected []domain.JobDefinition) (*domain.RunRecord, error) {
	now := e.clock.Now().UTC()

	record := &domain.RunRecord{
		ID:        run.GenerateRunIDUnique(now, e.runs.Exists),
		Pipeline:  p.Name,
		Event:     event,
		Status:    constants.RunStatusPending,
		Jobs:      make([]domain.JobRecord, 0, len(selected)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, job := range selected {
		record.Jobs = append(record.Jobs, domain.JobRecord{
			Name:   job.Name,
			Status: constants.JobStatusPending,
			Steps:  pendingSteps(job),
		})
	}

	if err := e.runs.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// executeWaves runs each wave in order, jobs within a wave in parallel.
// Returns true if execution stopped because the context was canceled.
func (e *Engine) executeWaves(ctx context.Context, p *domain.Pipeline, record *domain.RunRecord, waves [][]string) bool {
	logger := zerolog.Ctx(ctx)

	for _, wave := range waves {
		if ctx.Err() != nil {
			e.skipRemaining(record, "run canceled")
			return true
		}

		eligible := make([]string, 0, len(wave))
		for _, name := range wave {
			if reason := e.skipReason(p, record, name); reason != "" {
				e.markSkipped(record, name)
				e.appendLog(ctx, record.ID, "info", name, "job skipped: "+reason)
				continue
			}
			eligible = append(eligible, name)
		}

		// Plain errgroup, no shared cancellation: a failing job must not
		// interrupt its siblings.
		var g errgroup.Group
		results := make([]*runner.Result, len(eligible))
		for i, name := range eligible {
			i := i
			jobDef := p.Job(name)
			jobRecord := record.Job(name)
			jobRecord.Status = constants.JobStatusRunning

			g.Go(func() error {
				result, err := e.runner.Run(ctx, *jobDef, e.runnerOpt)
				if err != nil && !errors.Is(err, slipwayerrors.ErrJobFailed) {
					logger.Error().Err(err).Str("job", jobDef.Name).Msg("job execution error")
				}
				results[i] = result
				return nil
			})
		}
		_ = g.Wait()

		for i, name := range eligible {
			e.recordJobResult(ctx, record, name, results[i])
		}

		if err := e.runs.Update(context.WithoutCancel(ctx), record); err != nil {
			logger.Error().Err(err).Str("run_id", record.ID).Msg("failed to checkpoint run")
		}
	}

	if ctx.Err() != nil {
		e.skipRemaining(record, "run canceled")
		return true
	}
	return false
}

// recordJobResult merges a job result into the run record and publishes
// any files the job's steps marked for publication.
func (e *Engine) recordJobResult(ctx context.Context, record *domain.RunRecord, name string, result *runner.Result) {
	jobRecord := record.Job(name)
	if result == nil {
		jobRecord.Status = constants.JobStatusFailed
		e.appendLog(ctx, record.ID, "error", name, "job produced no result")
		return
	}

	*jobRecord = result.Record

	if jobRecord.Status == constants.JobStatusSucceeded {
		e.appendLog(ctx, record.ID, "info", name, "job succeeded")
	} else {
		e.appendLog(ctx, record.ID, "error", name, "job failed")
	}

	for _, pub := range result.Published {
		ref, err := e.artifacts.Put(ctx, record.ID, pub.Name, pub.Content)
		if err != nil {
			// A second publication violates the one-artifact-per-run
			// guarantee and fails the publishing job.
			jobRecord.Status = constants.JobStatusFailed
			e.appendLog(ctx, record.ID, "error", name, "publish failed: "+err.Error())
			return
		}
		record.Artifact = ref
		e.appendLog(ctx, record.ID, "info", name, "published "+ref.Name+" ("+ref.Digest+")")
	}
}

// skipReason returns a human-readable reason the job cannot run, or ""
// if all its dependencies succeeded.
func (e *Engine) skipReason(p *domain.Pipeline, record *domain.RunRecord, name string) string {
	jobDef := p.Job(name)
	if jobDef == nil {
		return "job not defined"
	}
	for _, dep := range jobDef.Needs {
		depRecord := record.Job(dep)
		if depRecord == nil {
			return fmt.Sprintf("dependency %q not selected by trigger", dep)
		}
		if depRecord.Status != constants.JobStatusSucceeded {
			return fmt.Sprintf("dependency %q %s", dep, depRecord.Status)
		}
	}
	return ""
}

// markSkipped marks a job and all its steps skipped.
func (e *Engine) markSkipped(record *domain.RunRecord, name string) {
	jobRecord := record.Job(name)
	if jobRecord == nil {
		return
	}
	jobRecord.Status = constants.JobStatusSkipped
	for i := range jobRecord.Steps {
		jobRecord.Steps[i].Status = constants.StepStatusSkipped
	}
}

// skipRemaining marks every still-pending job skipped.
func (e *Engine) skipRemaining(record *domain.RunRecord, _ string) {
	for i := range record.Jobs {
		if record.Jobs[i].Status == constants.JobStatusPending ||
			record.Jobs[i].Status == constants.JobStatusRunning {
			e.markSkipped(record, record.Jobs[i].Name)
		}
	}
}

// appendLog writes a JSON-lines entry to the run log. Log failures are
// swallowed; the run record remains the source of truth.
func (e *Engine) appendLog(ctx context.Context, runID, level, job, msg string) {
	entry, err := json.Marshal(map[string]string{
		"time":  e.clock.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"level": level,
		"job":   job,
		"msg":   msg,
	})
	if err != nil {
		return
	}
	_ = e.runs.AppendLog(context.WithoutCancel(ctx), runID, entry)
}

// anyJobFailed reports whether any job in the record failed.
func anyJobFailed(record *domain.RunRecord) bool {
	for i := range record.Jobs {
		if record.Jobs[i].Status == constants.JobStatusFailed {
			return true
		}
	}
	return false
}

// pendingSteps builds pending step records for a job definition.
func pendingSteps(job domain.JobDefinition) []domain.StepRecord {
	steps := make([]domain.StepRecord, 0, len(job.Steps))
	for _, s := range job.Steps {
		steps = append(steps, domain.StepRecord{
			Name:   s.Name,
			Status: constants.StepStatusPending,
		})
	}
	return steps
}
