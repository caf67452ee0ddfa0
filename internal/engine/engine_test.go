package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayci/slipway/internal/artifact"
	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
	"github.com/slipwayci/slipway/internal/run"
	"github.com/slipwayci/slipway/internal/runner"
)

// mockRunner implements JobRunner with scripted per-job outcomes and
// records which jobs were executed.
type mockRunner struct {
	mu      sync.Mutex
	ran     []string
	fail    map[string]bool
	publish map[string][]byte
	onRun   func()
}

func (m *mockRunner) Run(_ context.Context, job domain.JobDefinition, _ runner.Options) (*runner.Result, error) {
	m.mu.Lock()
	m.ran = append(m.ran, job.Name)
	m.mu.Unlock()

	if m.onRun != nil {
		m.onRun()
	}

	result := &runner.Result{
		Record: domain.JobRecord{
			Name:   job.Name,
			Status: constants.JobStatusSucceeded,
		},
	}
	if m.fail[job.Name] {
		result.Record.Status = constants.JobStatusFailed
		return result, fmt.Errorf("job %q: %w", job.Name, slipwayerrors.ErrJobFailed)
	}
	if content, ok := m.publish[job.Name]; ok {
		result.Published = []runner.PublishedFile{{Name: "app.tar.gz", Content: content}}
	}
	return result, nil
}

func (m *mockRunner) executed(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.ran {
		if n == name {
			return true
		}
	}
	return false
}

func newTestEngine(t *testing.T, jobRunner JobRunner) (*Engine, run.Store) {
	t.Helper()
	runs, err := run.NewFileStore(t.TempDir())
	require.NoError(t, err)
	artifacts, err := artifact.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	return New(runs, artifacts, jobRunner, nil, runner.Options{}), runs
}

func step(name string) domain.StepDefinition {
	return domain.StepDefinition{Name: name, Run: "true"}
}

func pushEvent(branch string) domain.TriggerEvent {
	return domain.TriggerEvent{Kind: constants.TriggerPush, Branch: branch}
}

func TestEngine_Execute_Success(t *testing.T) {
	ctx := context.Background()
	mock := &mockRunner{}
	e, runs := newTestEngine(t, mock)

	p := &domain.Pipeline{
		Name: "app",
		Jobs: []domain.JobDefinition{
			{Name: "test", Steps: []domain.StepDefinition{step("unit")}},
			{Name: "build", Needs: []string{"test"}, Steps: []domain.StepDefinition{step("compile")}},
		},
	}

	record, err := e.Execute(ctx, p, pushEvent("main"))
	require.NoError(t, err)

	assert.Equal(t, constants.RunStatusSucceeded, record.Status)
	require.NotNil(t, record.CompletedAt)
	assert.True(t, mock.executed("test"))
	assert.True(t, mock.executed("build"))

	// Persisted record matches the returned one.
	stored, err := runs.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusSucceeded, stored.Status)
	require.Len(t, stored.Transitions, 2)
	assert.Equal(t, constants.RunStatusRunning, stored.Transitions[0].ToStatus)
	assert.Equal(t, constants.RunStatusSucceeded, stored.Transitions[1].ToStatus)
}

func TestEngine_Execute_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := &mockRunner{onRun: cancel}
	e, runs := newTestEngine(t, mock)

	p := &domain.Pipeline{
		Name: "app",
		Jobs: []domain.JobDefinition{
			{Name: "test", Steps: []domain.StepDefinition{step("unit")}},
			{Name: "build", Needs: []string{"test"}, Steps: []domain.StepDefinition{step("compile")}},
		},
	}

	record, err := e.Execute(ctx, p, pushEvent("main"))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, record)

	assert.Equal(t, constants.RunStatusCanceled, record.Status)
	require.NotNil(t, record.CompletedAt)
	assert.False(t, mock.executed("build"), "later wave never runs after cancellation")
	assert.Equal(t, constants.JobStatusSkipped, record.Job("build").Status)

	// The terminal state is persisted, not just returned.
	stored, getErr := runs.Get(context.Background(), record.ID)
	require.NoError(t, getErr)
	assert.Equal(t, constants.RunStatusCanceled, stored.Status)
	require.NotNil(t, stored.CompletedAt)
}

func TestEngine_Execute_NoJobsMatched(t *testing.T) {
	ctx := context.Background()
	e, runs := newTestEngine(t, &mockRunner{})

	p := &domain.Pipeline{
		Name: "app",
		Jobs: []domain.JobDefinition{
			{Name: "build", On: domain.TriggerRule{Branches: []string{"main"}}, Steps: []domain.StepDefinition{step("compile")}},
		},
	}

	_, err := e.Execute(ctx, p, pushEvent("feature"))
	require.ErrorIs(t, err, slipwayerrors.ErrNoJobsMatched)

	// No run record is created for an unmatched event.
	records, err := runs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEngine_Execute_InvalidPipeline(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, &mockRunner{})

	_, err := e.Execute(ctx, &domain.Pipeline{Name: "app"}, pushEvent("main"))
	require.ErrorIs(t, err, slipwayerrors.ErrPipelineInvalid)
}

func TestEngine_Execute_SiblingIndependence(t *testing.T) {
	ctx := context.Background()
	mock := &mockRunner{fail: map[string]bool{"lint": true}}
	e, _ := newTestEngine(t, mock)

	p := &domain.Pipeline{
		Name: "app",
		Jobs: []domain.JobDefinition{
			{Name: "lint", Steps: []domain.StepDefinition{step("lint")}},
			{Name: "test", Steps: []domain.StepDefinition{step("unit")}},
		},
	}

	record, err := e.Execute(ctx, p, pushEvent("main"))
	require.NoError(t, err, "a failed job is reported through the record, not the error")

	assert.Equal(t, constants.RunStatusFailed, record.Status)
	assert.True(t, mock.executed("test"), "sibling still ran despite lint failing")
	assert.Equal(t, constants.JobStatusFailed, record.Job("lint").Status)
	assert.Equal(t, constants.JobStatusSucceeded, record.Job("test").Status)
}

func TestEngine_Execute_DependencySkipped(t *testing.T) {
	ctx := context.Background()

	t.Run("dependency failed", func(t *testing.T) {
		mock := &mockRunner{fail: map[string]bool{"test": true}}
		e, _ := newTestEngine(t, mock)

		p := &domain.Pipeline{
			Name: "app",
			Jobs: []domain.JobDefinition{
				{Name: "test", Steps: []domain.StepDefinition{step("unit")}},
				{Name: "build", Needs: []string{"test"}, Steps: []domain.StepDefinition{step("compile")}},
			},
		}

		record, err := e.Execute(ctx, p, pushEvent("main"))
		require.NoError(t, err)

		assert.Equal(t, constants.RunStatusFailed, record.Status)
		assert.False(t, mock.executed("build"), "dependent of a failed job never runs")
		assert.Equal(t, constants.JobStatusSkipped, record.Job("build").Status)
	})

	t.Run("dependency not selected by trigger", func(t *testing.T) {
		mock := &mockRunner{}
		e, _ := newTestEngine(t, mock)

		p := &domain.Pipeline{
			Name: "app",
			Jobs: []domain.JobDefinition{
				{Name: "test", On: domain.TriggerRule{Events: []string{"pull_request"}}, Steps: []domain.StepDefinition{step("unit")}},
				{Name: "build", Needs: []string{"test"}, Steps: []domain.StepDefinition{step("compile")}},
			},
		}

		record, err := e.Execute(ctx, p, pushEvent("main"))
		require.NoError(t, err)

		assert.False(t, mock.executed("build"))
		assert.Equal(t, constants.JobStatusSkipped, record.Job("build").Status)
		assert.Nil(t, record.Job("test"), "unselected job never enters the record")
	})

	t.Run("transitive skip", func(t *testing.T) {
		mock := &mockRunner{fail: map[string]bool{"test": true}}
		e, _ := newTestEngine(t, mock)

		p := &domain.Pipeline{
			Name: "app",
			Jobs: []domain.JobDefinition{
				{Name: "test", Steps: []domain.StepDefinition{step("unit")}},
				{Name: "build", Needs: []string{"test"}, Steps: []domain.StepDefinition{step("compile")}},
				{Name: "package", Needs: []string{"build"}, Steps: []domain.StepDefinition{step("pack")}},
			},
		}

		record, err := e.Execute(ctx, p, pushEvent("main"))
		require.NoError(t, err)

		assert.Equal(t, constants.JobStatusSkipped, record.Job("build").Status)
		assert.Equal(t, constants.JobStatusSkipped, record.Job("package").Status)
	})
}

func TestEngine_Execute_PublishesArtifact(t *testing.T) {
	ctx := context.Background()
	mock := &mockRunner{publish: map[string][]byte{"build": []byte("binary")}}
	e, _ := newTestEngine(t, mock)

	p := &domain.Pipeline{
		Name: "app",
		Jobs: []domain.JobDefinition{
			{Name: "build", Steps: []domain.StepDefinition{step("compile")}},
		},
	}

	record, err := e.Execute(ctx, p, pushEvent("main"))
	require.NoError(t, err)

	require.NotNil(t, record.Artifact)
	assert.Equal(t, record.ID, record.Artifact.RunID)
	assert.Equal(t, "app.tar.gz", record.Artifact.Name)
	assert.Equal(t, int64(len("binary")), record.Artifact.Size)
}

func TestEngine_Execute_WithRealRunner(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, runner.New(nil))

	p := &domain.Pipeline{
		Name: "app",
		Jobs: []domain.JobDefinition{
			{
				Name: "build",
				Steps: []domain.StepDefinition{
					{Name: "compile", Run: "printf binary > app.bin"},
					{Name: "publish", Run: "true", Publish: "app.bin"},
				},
			},
		},
	}

	record, err := e.Execute(ctx, p, pushEvent("main"))
	require.NoError(t, err)

	assert.Equal(t, constants.RunStatusSucceeded, record.Status)
	require.NotNil(t, record.Artifact)
	assert.Equal(t, "app.bin", record.Artifact.Name)

	job := record.Job("build")
	require.NotNil(t, job)
	assert.Equal(t, constants.JobStatusSucceeded, job.Status)
	require.Len(t, job.Steps, 2)
	assert.Equal(t, constants.StepStatusSucceeded, job.Steps[0].Status)
}

func TestEngine_Execute_RunLog(t *testing.T) {
	ctx := context.Background()
	mock := &mockRunner{fail: map[string]bool{"test": true}}
	e, runs := newTestEngine(t, mock)

	p := &domain.Pipeline{
		Name: "app",
		Jobs: []domain.JobDefinition{
			{Name: "test", Steps: []domain.StepDefinition{step("unit")}},
			{Name: "build", Needs: []string{"test"}, Steps: []domain.StepDefinition{step("compile")}},
		},
	}

	record, err := e.Execute(ctx, p, pushEvent("main"))
	require.NoError(t, err)

	data, err := runs.ReadLog(ctx, record.ID)
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "job failed")
	assert.Contains(t, log, "job skipped")
}
