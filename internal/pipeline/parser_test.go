package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

const validPipelineYAML = `name: app
jobs:
  - name: test
    on:
      events: [push, pull_request]
    steps:
      - name: unit tests
        run: npm test
  - name: build
    needs: [test]
    on:
      events: [push]
      branches: [main]
    steps:
      - name: compile
        run: npm run build
      - name: publish
        publish: dist/app.tar.gz
`

func TestParse(t *testing.T) {
	t.Run("valid pipeline", func(t *testing.T) {
		p, err := Parse([]byte(validPipelineYAML))
		require.NoError(t, err)

		assert.Equal(t, "app", p.Name)
		require.Len(t, p.Jobs, 2)
		assert.Equal(t, "test", p.Jobs[0].Name)
		assert.Equal(t, []string{"push", "pull_request"}, p.Jobs[0].On.Events)
		assert.Equal(t, "build", p.Jobs[1].Name)
		assert.Equal(t, []string{"test"}, p.Jobs[1].Needs)
		require.Len(t, p.Jobs[1].Steps, 2)
		assert.Equal(t, "dist/app.tar.gz", p.Jobs[1].Steps[1].Publish)
	})

	t.Run("malformed YAML", func(t *testing.T) {
		_, err := Parse([]byte("name: [unclosed"))
		require.ErrorIs(t, err, slipwayerrors.ErrPipelineParse)
	})

	t.Run("step order is preserved", func(t *testing.T) {
		p, err := Parse([]byte(validPipelineYAML))
		require.NoError(t, err)

		steps := p.Jobs[1].Steps
		assert.Equal(t, "compile", steps[0].Name)
		assert.Equal(t, "publish", steps[1].Name)
	})
}

func TestLoad(t *testing.T) {
	t.Run("reads file from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pipeline.yaml")
		require.NoError(t, os.WriteFile(path, []byte(validPipelineYAML), 0o600))

		p, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "app", p.Name)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read pipeline file")
	})
}

func TestValidate(t *testing.T) {
	step := domain.StepDefinition{Name: "run", Run: "true"}

	tests := []struct {
		name     string
		pipeline *domain.Pipeline
		wantErr  error
		contains string
	}{
		{
			name:     "nil pipeline",
			pipeline: nil,
			wantErr:  slipwayerrors.ErrPipelineInvalid,
			contains: "pipeline is nil",
		},
		{
			name:     "missing name",
			pipeline: &domain.Pipeline{Jobs: []domain.JobDefinition{{Name: "a", Steps: []domain.StepDefinition{step}}}},
			wantErr:  slipwayerrors.ErrPipelineInvalid,
			contains: "name is required",
		},
		{
			name:     "no jobs",
			pipeline: &domain.Pipeline{Name: "app"},
			wantErr:  slipwayerrors.ErrPipelineInvalid,
			contains: "has no jobs",
		},
		{
			name: "job without name",
			pipeline: &domain.Pipeline{Name: "app", Jobs: []domain.JobDefinition{
				{Steps: []domain.StepDefinition{step}},
			}},
			wantErr:  slipwayerrors.ErrPipelineInvalid,
			contains: "job name is required",
		},
		{
			name: "duplicate job names",
			pipeline: &domain.Pipeline{Name: "app", Jobs: []domain.JobDefinition{
				{Name: "a", Steps: []domain.StepDefinition{step}},
				{Name: "a", Steps: []domain.StepDefinition{step}},
			}},
			wantErr:  slipwayerrors.ErrPipelineInvalid,
			contains: "duplicate job name",
		},
		{
			name: "job without steps",
			pipeline: &domain.Pipeline{Name: "app", Jobs: []domain.JobDefinition{
				{Name: "a"},
			}},
			wantErr:  slipwayerrors.ErrPipelineInvalid,
			contains: "has no steps",
		},
		{
			name: "unknown trigger event",
			pipeline: &domain.Pipeline{Name: "app", Jobs: []domain.JobDefinition{
				{Name: "a", On: domain.TriggerRule{Events: []string{"tag"}}, Steps: []domain.StepDefinition{step}},
			}},
			wantErr:  slipwayerrors.ErrPipelineInvalid,
			contains: "unknown trigger event",
		},
		{
			name: "step without name",
			pipeline: &domain.Pipeline{Name: "app", Jobs: []domain.JobDefinition{
				{Name: "a", Steps: []domain.StepDefinition{{Run: "true"}}},
			}},
			wantErr:  slipwayerrors.ErrPipelineInvalid,
			contains: "step name is required",
		},
		{
			name: "step with neither run nor publish",
			pipeline: &domain.Pipeline{Name: "app", Jobs: []domain.JobDefinition{
				{Name: "a", Steps: []domain.StepDefinition{{Name: "noop"}}},
			}},
			wantErr:  slipwayerrors.ErrPipelineInvalid,
			contains: "neither run nor publish",
		},
		{
			name: "unknown dependency",
			pipeline: &domain.Pipeline{Name: "app", Jobs: []domain.JobDefinition{
				{Name: "a", Needs: []string{"ghost"}, Steps: []domain.StepDefinition{step}},
			}},
			wantErr: slipwayerrors.ErrUnknownDependency,
		},
		{
			name: "dependency cycle",
			pipeline: &domain.Pipeline{Name: "app", Jobs: []domain.JobDefinition{
				{Name: "a", Needs: []string{"b"}, Steps: []domain.StepDefinition{step}},
				{Name: "b", Needs: []string{"a"}, Steps: []domain.StepDefinition{step}},
			}},
			wantErr: slipwayerrors.ErrDependencyCycle,
		},
		{
			name: "publish-only step is valid",
			pipeline: &domain.Pipeline{Name: "app", Jobs: []domain.JobDefinition{
				{Name: "a", Steps: []domain.StepDefinition{{Name: "publish", Publish: "out.tar.gz"}}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.pipeline)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}
