// Package constants provides shared constant values for slipway.
// Centralizing these prevents magic strings scattered across packages
// and keeps status values consistent between state machines and JSON.
package constants

// Schema versions enable forward-compatible migrations of persisted state.
const (
	// RunSchemaVersion is the current version of the RunRecord JSON schema.
	RunSchemaVersion = 1

	// DeploymentSchemaVersion is the current version of the DeploymentRequest JSON schema.
	DeploymentSchemaVersion = 1
)

// TriggerKind identifies the kind of event that activated a pipeline.
type TriggerKind string

// Trigger kind constants. These mirror the event kinds supplied by the
// version control hosting provider plus manual dispatch.
const (
	// TriggerPush is a branch push event.
	TriggerPush TriggerKind = "push"

	// TriggerPullRequest is a pull request event.
	TriggerPullRequest TriggerKind = "pull_request"

	// TriggerManual is an operator-initiated dispatch.
	TriggerManual TriggerKind = "manual"
)

// String returns the string representation of the TriggerKind.
func (k TriggerKind) String() string {
	return string(k)
}
