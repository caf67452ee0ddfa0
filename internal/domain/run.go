package domain

import (
	"time"

	"github.com/slipwayci/slipway/internal/constants"
)

// RunRecord is one execution of a pipeline against a specific trigger event.
// It owns zero-or-one ArtifactReference and is immutable once terminal:
// the store rejects updates to succeeded, failed, or canceled runs.
//
// Example JSON representation:
//
//	{
//	    "id": "run-20260829-101500",
//	    "pipeline": "app",
//	    "event": {"kind": "push", "branch": "main", "commit_sha": "abc123"},
//	    "status": "succeeded",
//	    "jobs": [...],
//	    "artifact": {"run_id": "run-20260829-101500", "digest": "sha256:..."},
//	    "schema_version": 1
//	}
type RunRecord struct {
	// ID is the unique identifier for the run.
	// Format: run-YYYYMMDD-HHMMSS (with optional ms suffix for uniqueness).
	ID string `json:"id"`

	// Pipeline is the name of the pipeline definition this run executed.
	Pipeline string `json:"pipeline"`

	// Event is the trigger event that activated the run.
	Event TriggerEvent `json:"event"`

	// Status is the current state in the run lifecycle.
	Status constants.RunStatus `json:"status"`

	// Jobs records per-job execution state, in pipeline order.
	Jobs []JobRecord `json:"jobs"`

	// Artifact references the published build output, if any.
	// The content itself is owned by the artifact store; the run record
	// only carries the reference.
	Artifact *ArtifactReference `json:"artifact,omitempty"`

	// Transitions is the audit trail of status changes.
	Transitions []RunTransition `json:"transitions,omitempty"`

	// CreatedAt is when the run was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the run was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedAt is when the run reached a terminal state (nil until then).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// SchemaVersion indicates the version of the RunRecord struct schema.
	SchemaVersion int `json:"schema_version"`
}

// Job returns the job record with the given name, or nil if absent.
func (r *RunRecord) Job(name string) *JobRecord {
	for i := range r.Jobs {
		if r.Jobs[i].Name == name {
			return &r.Jobs[i]
		}
	}
	return nil
}

// JobRecord tracks the execution state of one job within a run.
type JobRecord struct {
	// Name identifies the job.
	Name string `json:"name"`

	// Status is the current state of this job.
	Status constants.JobStatus `json:"status"`

	// Steps records per-step results in declared order.
	Steps []StepRecord `json:"steps"`

	// StartedAt is when job execution began (nil if not yet started).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when job execution finished (nil if not yet complete).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Step returns the step record with the given name, or nil if absent.
func (j *JobRecord) Step(name string) *StepRecord {
	for i := range j.Steps {
		if j.Steps[i].Name == name {
			return &j.Steps[i]
		}
	}
	return nil
}

// StepRecord captures the outcome of executing one step.
type StepRecord struct {
	// Name identifies the step.
	Name string `json:"name"`

	// Status is the step's state (pending, running, succeeded, failed, skipped).
	Status string `json:"status"`

	// ExitCode is the process exit code (zero on success).
	ExitCode int `json:"exit_code"`

	// Output contains the combined stdout/stderr of the command.
	Output string `json:"output,omitempty"`

	// Error contains the error message if the step failed.
	Error string `json:"error,omitempty"`

	// StartedAt is when step execution began (nil if not started).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when step execution finished (nil if not complete).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunTransition records a single run status change for the audit trail.
type RunTransition struct {
	// FromStatus is the status before the transition.
	FromStatus constants.RunStatus `json:"from_status"`

	// ToStatus is the status after the transition.
	ToStatus constants.RunStatus `json:"to_status"`

	// Timestamp is when the transition occurred (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Reason is an optional explanation for the transition.
	Reason string `json:"reason,omitempty"`
}
