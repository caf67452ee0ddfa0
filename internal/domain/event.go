package domain

import (
	"time"

	"github.com/slipwayci/slipway/internal/constants"
)

// TriggerEvent is an occurrence that may activate a pipeline: a branch push,
// a pull request, or a manual dispatch. The orchestrator only consumes event
// metadata; it never talks to the hosting provider itself.
type TriggerEvent struct {
	// Kind is the trigger type (push, pull_request, manual).
	Kind constants.TriggerKind `json:"kind"`

	// Branch is the branch the event refers to.
	Branch string `json:"branch"`

	// CommitSHA is the commit the event refers to.
	CommitSHA string `json:"commit_sha"`

	// ReceivedAt is when the orchestrator accepted the event.
	ReceivedAt time.Time `json:"received_at"`
}
