// Package domain provides shared domain types for the slipway orchestrator.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

// Pipeline is a declarative pipeline definition: an ordered set of jobs,
// each with a trigger predicate and an ordered sequence of steps.
// Step order within a job is significant and fixed at parse time.
//
// Example YAML:
//
//	name: app
//	jobs:
//	  - name: test
//	    on:
//	      events: [push, pull_request]
//	    steps:
//	      - name: unit tests
//	        run: npm test
//	  - name: build
//	    on:
//	      events: [push]
//	      branches: [main]
//	    steps:
//	      - name: compile
//	        run: npm run build
//	      - name: publish
//	        publish: dist/app.tar.gz
type Pipeline struct {
	// Name identifies the pipeline.
	Name string `yaml:"name" json:"name"`

	// Jobs is the ordered set of job definitions.
	Jobs []JobDefinition `yaml:"jobs" json:"jobs"`
}

// Job returns the job definition with the given name, or nil if absent.
func (p *Pipeline) Job(name string) *JobDefinition {
	for i := range p.Jobs {
		if p.Jobs[i].Name == name {
			return &p.Jobs[i]
		}
	}
	return nil
}

// JobDefinition is one job within a pipeline: a trigger predicate, optional
// dependencies on other jobs, and an ordered step sequence.
type JobDefinition struct {
	// Name identifies the job (e.g., "test", "build"). Unique within a pipeline.
	Name string `yaml:"name" json:"name"`

	// On is the trigger predicate. A job runs only when the trigger event
	// matches. An empty predicate matches every event.
	On TriggerRule `yaml:"on,omitempty" json:"on,omitempty"`

	// Needs lists jobs that must succeed before this job starts.
	// Jobs without dependency edges between them may run in parallel.
	Needs []string `yaml:"needs,omitempty" json:"needs,omitempty"`

	// Steps is the ordered list of steps. Execution is strictly sequential;
	// the first non-zero exit short-circuits the remaining steps unless the
	// failing step is marked best-effort.
	Steps []StepDefinition `yaml:"steps" json:"steps"`
}

// TriggerRule is a job's trigger predicate: which event kinds activate it
// and, optionally, which branches.
type TriggerRule struct {
	// Events lists the event kinds that activate the job
	// ("push", "pull_request", "manual"). Empty means all kinds.
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`

	// Branches restricts activation to the listed branch names.
	// Empty means all branches.
	Branches []string `yaml:"branches,omitempty" json:"branches,omitempty"`
}

// StepDefinition is a single named shell invocation within a job.
type StepDefinition struct {
	// Name identifies the step for logs and the run record.
	Name string `yaml:"name" json:"name"`

	// Run is the shell command to execute. Executed via `sh -c` in the
	// job's workspace directory.
	Run string `yaml:"run,omitempty" json:"run,omitempty"`

	// Publish names a workspace-relative file to store as the run's
	// artifact when the step (and its Run command, if any) succeeds.
	Publish string `yaml:"publish,omitempty" json:"publish,omitempty"`

	// Env holds additional environment variables for the command.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// BestEffort marks the step as non-fatal: a non-zero exit is recorded
	// but does not fail the job or short-circuit later steps.
	BestEffort bool `yaml:"best_effort,omitempty" json:"best_effort,omitempty"`
}
