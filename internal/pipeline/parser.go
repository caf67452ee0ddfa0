// Package pipeline provides parsing and validation of declarative pipeline
// definitions, trigger predicate matching, and resolution of the job
// dependency graph into an executable order.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/engine, internal/runner, internal/cli
package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

// Parse parses YAML content into a validated Pipeline.
// Step order within each job is fixed at parse time; the engine never
// reorders steps.
func Parse(data []byte) (*domain.Pipeline, error) {
	var p domain.Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", slipwayerrors.ErrPipelineParse, err.Error())
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}

	return &p, nil
}

// Load reads a pipeline definition file and returns a validated Pipeline.
func Load(path string) (*domain.Pipeline, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is operator-supplied configuration
	if err != nil {
		return nil, slipwayerrors.Wrapf(err, "failed to read pipeline file %s", path)
	}
	return Parse(data)
}

// Validate checks structural invariants of a pipeline definition:
// non-empty name, at least one job, unique job names, non-empty steps,
// known trigger event kinds, and a well-formed dependency graph
// (known dependencies, no cycles).
func Validate(p *domain.Pipeline) error {
	if p == nil {
		return fmt.Errorf("%w: pipeline is nil", slipwayerrors.ErrPipelineInvalid)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: pipeline name is required", slipwayerrors.ErrPipelineInvalid)
	}
	if len(p.Jobs) == 0 {
		return fmt.Errorf("%w: pipeline %q has no jobs", slipwayerrors.ErrPipelineInvalid, p.Name)
	}

	seen := make(map[string]bool, len(p.Jobs))
	for i := range p.Jobs {
		job := &p.Jobs[i]
		if err := validateJob(job, seen); err != nil {
			return err
		}
		seen[job.Name] = true
	}

	// Dependency edges must reference declared jobs and form no cycles.
	if _, err := ResolveOrder(p); err != nil {
		return err
	}

	return nil
}

// validateJob checks a single job definition against the pipeline-wide
// uniqueness set accumulated so far.
func validateJob(job *domain.JobDefinition, seen map[string]bool) error {
	if job.Name == "" {
		return fmt.Errorf("%w: job name is required", slipwayerrors.ErrPipelineInvalid)
	}
	if seen[job.Name] {
		return fmt.Errorf("%w: duplicate job name %q", slipwayerrors.ErrPipelineInvalid, job.Name)
	}
	if len(job.Steps) == 0 {
		return fmt.Errorf("%w: job %q has no steps", slipwayerrors.ErrPipelineInvalid, job.Name)
	}

	for _, ev := range job.On.Events {
		if !validEventKind(ev) {
			return fmt.Errorf("%w: job %q: unknown trigger event %q", slipwayerrors.ErrPipelineInvalid, job.Name, ev)
		}
	}

	for i := range job.Steps {
		step := &job.Steps[i]
		if step.Name == "" {
			return fmt.Errorf("%w: job %q: step name is required", slipwayerrors.ErrPipelineInvalid, job.Name)
		}
		if step.Run == "" && step.Publish == "" {
			return fmt.Errorf("%w: job %q: step %q has neither run nor publish", slipwayerrors.ErrPipelineInvalid, job.Name, step.Name)
		}
	}

	return nil
}

// validEventKind reports whether s is a recognized trigger event kind.
func validEventKind(s string) bool {
	switch s {
	case "push", "pull_request", "manual":
		return true
	}
	return false
}
