// Package errors provides centralized error handling for slipway.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrStepFailed indicates a pipeline step exited with a non-zero status.
	// The failure is local to the owning job: remaining steps in that job are
	// short-circuited, but sibling jobs continue to their own terminal state.
	ErrStepFailed = errors.New("step failed")

	// ErrJobFailed indicates a job reached a failed terminal state.
	ErrJobFailed = errors.New("job failed")

	// ErrArtifactUnavailable indicates the requested artifact content does not
	// exist in the artifact store.
	ErrArtifactUnavailable = errors.New("artifact unavailable")

	// ErrArtifactExists indicates a second Put was attempted for a run that
	// already published an artifact. Artifact content is immutable once stored.
	ErrArtifactExists = errors.New("artifact already exists for run")

	// ErrConnectionFailed indicates the remote session to a deployment target
	// could not be established (unreachable host or rejected credentials).
	// Deployments are never retried automatically; re-dispatch manually.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrTransferFailed indicates the artifact copy to the target did not
	// complete. A partial copy is never treated as success.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrVerificationFailed indicates the deployed process never reached a
	// running state within the verification timeout.
	ErrVerificationFailed = errors.New("deployment verification failed")

	// ErrDeploymentInFlight indicates another deployment to the same target
	// is still in a non-terminal state. At most one deployment per target
	// may be in flight at a time.
	ErrDeploymentInFlight = errors.New("deployment already in flight for target")

	// ErrInvalidTransition indicates an attempt to make an invalid state transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRunNotFound indicates the requested run record does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunExists indicates an attempt to create a run that already exists.
	ErrRunExists = errors.New("run already exists")

	// ErrDeploymentNotFound indicates the requested deployment request does not exist.
	ErrDeploymentNotFound = errors.New("deployment not found")

	// ErrSecretNotFound indicates no secret is stored under the requested name.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretExists indicates an attempt to create a secret that already
	// exists. Secrets are write-once: use Rotate to replace a value.
	ErrSecretExists = errors.New("secret already exists")

	// ErrSecretScope indicates a secret was resolved outside the target scope
	// it was created for.
	ErrSecretScope = errors.New("secret not in scope for target")

	// ErrPipelineInvalid indicates a pipeline definition failed validation.
	ErrPipelineInvalid = errors.New("invalid pipeline definition")

	// ErrPipelineParse indicates the pipeline definition file has invalid YAML syntax.
	ErrPipelineParse = errors.New("pipeline parse error")

	// ErrDependencyCycle indicates the job dependency graph contains a cycle.
	ErrDependencyCycle = errors.New("job dependency cycle")

	// ErrUnknownDependency indicates a job names a dependency that does not exist.
	ErrUnknownDependency = errors.New("unknown job dependency")

	// ErrNoJobsMatched indicates a trigger event activated none of the
	// pipeline's jobs, so no run was created.
	ErrNoJobsMatched = errors.New("no jobs matched trigger event")

	// ErrTargetNotFound indicates the named deployment target is not configured.
	ErrTargetNotFound = errors.New("target not found")

	// ErrLockTimeout indicates a file lock could not be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrPathTraversal indicates an attempt to use path traversal in a filename.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrConfigInvalid indicates an invalid configuration value.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrSupervisorStatus indicates the remote supervisor returned a status
	// that could not be interpreted.
	ErrSupervisorStatus = errors.New("unreadable supervisor status")

	// ErrNoArtifact indicates a run completed without publishing an artifact,
	// so there is nothing to deploy.
	ErrNoArtifact = errors.New("run has no artifact")
)
