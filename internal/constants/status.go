package constants

// RunStatus represents the state of a pipeline run in the slipway state machine.
// Status values use snake_case for JSON serialization compatibility.
type RunStatus string

// Run status constants define the valid states a run can be in.
// These follow the run state machine:
//
//	Pending → Running
//	Running → Succeeded, Failed, Canceled
const (
	// RunStatusPending indicates a run was created but job execution has not started.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning indicates one or more jobs are actively executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every selected job reached a successful terminal state.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates at least one job failed. Sibling jobs still
	// reach their own terminal state before the run is marked failed.
	RunStatusFailed RunStatus = "failed"

	// RunStatusCanceled indicates the run was canceled before completion.
	RunStatusCanceled RunStatus = "canceled"
)

// String returns the string representation of the RunStatus.
// This implements fmt.Stringer for convenient logging and debugging.
func (s RunStatus) String() string {
	return string(s)
}

// JobStatus represents the state of a single job within a run.
type JobStatus string

// Job status constants define the valid states a job can be in.
const (
	// JobStatusPending indicates the job is selected but not yet started.
	JobStatusPending JobStatus = "pending"

	// JobStatusRunning indicates the job's steps are executing.
	JobStatusRunning JobStatus = "running"

	// JobStatusSucceeded indicates every required step exited zero.
	JobStatusSucceeded JobStatus = "succeeded"

	// JobStatusFailed indicates a required step exited non-zero.
	// Remaining steps in the job are short-circuited (fail-fast).
	JobStatusFailed JobStatus = "failed"

	// JobStatusSkipped indicates the job's trigger predicate did not match
	// or an upstream dependency failed.
	JobStatusSkipped JobStatus = "skipped"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// Step status constants define the states a step result can report.
const (
	// StepStatusPending indicates a step has not started.
	StepStatusPending = "pending"

	// StepStatusRunning indicates a step is executing.
	StepStatusRunning = "running"

	// StepStatusSucceeded indicates a step exited zero.
	StepStatusSucceeded = "succeeded"

	// StepStatusFailed indicates a step exited non-zero.
	StepStatusFailed = "failed"

	// StepStatusSkipped indicates a step was short-circuited by an
	// earlier failure in the same job.
	StepStatusSkipped = "skipped"
)

// DeploymentStatus represents the state of a deployment request.
// Status values use snake_case for JSON serialization compatibility.
type DeploymentStatus string

// Deployment status constants define the valid states a deployment can be in.
// These follow the deployment state machine:
//
//	Pending → Transferring
//	Transferring → Restarting, Failed
//	Restarting → Verifying, Failed
//	Verifying → Succeeded, Failed
//
// Succeeded and Failed are terminal. There is no automatic transition back
// to Pending: a failed deployment requires manual re-dispatch.
const (
	// DeploymentStatusPending indicates the request was created but the
	// artifact has not been fetched yet.
	DeploymentStatusPending DeploymentStatus = "pending"

	// DeploymentStatusTransferring indicates the artifact is being copied
	// to the target host's staging directory.
	DeploymentStatusTransferring DeploymentStatus = "transferring"

	// DeploymentStatusRestarting indicates the remote process is being
	// restarted (or started fresh if none was running).
	DeploymentStatusRestarting DeploymentStatus = "restarting"

	// DeploymentStatusVerifying indicates the agent is polling the remote
	// supervisor until the process reports running or the timeout elapses.
	DeploymentStatusVerifying DeploymentStatus = "verifying"

	// DeploymentStatusSucceeded indicates the process reached a running
	// state within the verification timeout.
	DeploymentStatusSucceeded DeploymentStatus = "succeeded"

	// DeploymentStatusFailed indicates a terminal failure in any phase.
	// The request is never retried automatically.
	DeploymentStatusFailed DeploymentStatus = "failed"
)

// String returns the string representation of the DeploymentStatus.
func (s DeploymentStatus) String() string {
	return string(s)
}
