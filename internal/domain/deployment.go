package domain

import (
	"time"

	"github.com/slipwayci/slipway/internal/constants"
)

// DeploymentRequest references one artifact and one deployment target.
// It is created on manual dispatch, terminal on success or failure, and
// never retried automatically: a failed deployment requires a new request.
//
// Lifecycle: Pending → Transferring → Restarting → Verifying → {Succeeded, Failed}.
type DeploymentRequest struct {
	// ID is the unique identifier for the request (UUID).
	ID string `json:"id"`

	// RunID is the run whose artifact is being deployed.
	RunID string `json:"run_id"`

	// Artifact is the content reference being deployed.
	Artifact ArtifactReference `json:"artifact"`

	// Target is the name of the configured deployment target.
	// Credential material is resolved through the secret store at deploy
	// time and is never persisted here.
	Target string `json:"target"`

	// Status is the current state in the deployment lifecycle.
	Status constants.DeploymentStatus `json:"status"`

	// Release is the remote release directory created by the transfer
	// phase, recorded once the atomic swap completes.
	Release string `json:"release,omitempty"`

	// Error contains the failure message if Status is failed.
	Error string `json:"error,omitempty"`

	// Transitions is the audit trail of status changes.
	Transitions []DeploymentTransition `json:"transitions,omitempty"`

	// CreatedAt is when the request was dispatched.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the request was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedAt is when the request reached a terminal state (nil until then).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// SchemaVersion indicates the version of the DeploymentRequest struct schema.
	SchemaVersion int `json:"schema_version"`
}

// DeploymentTransition records a single deployment status change.
type DeploymentTransition struct {
	// FromStatus is the status before the transition.
	FromStatus constants.DeploymentStatus `json:"from_status"`

	// ToStatus is the status after the transition.
	ToStatus constants.DeploymentStatus `json:"to_status"`

	// Timestamp is when the transition occurred (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Reason is an optional explanation for the transition.
	Reason string `json:"reason,omitempty"`
}

// TargetDescriptor describes a deployment target: the remote host, the
// account to connect as, and a reference to the credential in the secret
// store. Key material itself never appears in this struct.
type TargetDescriptor struct {
	// Name identifies the target (e.g., "production").
	Name string `yaml:"name" json:"name"`

	// Host is the remote hostname or address.
	Host string `yaml:"host" json:"host"`

	// Port is the SSH port. Zero means the default (22).
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// User is the remote account name.
	User string `yaml:"user" json:"user"`

	// KeyRef names the secret holding the SSH private key material.
	KeyRef string `yaml:"key_ref" json:"key_ref"`

	// App is the supervisor process name for the deployed application.
	// Restart and status operations address this name only, never the
	// supervisor's full process list.
	App string `yaml:"app" json:"app"`

	// DeployDir is the remote base directory. Releases are staged under
	// it and activated with an atomic symlink swap.
	DeployDir string `yaml:"deploy_dir" json:"deploy_dir"`

	// StartCommand is the remote entrypoint used when no process with the
	// app name exists yet (the start half of restart-or-start).
	StartCommand string `yaml:"start_command,omitempty" json:"start_command,omitempty"`
}
