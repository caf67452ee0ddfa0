// Package deploy moves published artifacts onto remote targets and
// brings the application process up. A deployment walks a fixed phase
// sequence with a persisted state machine; there is no automatic retry,
// and at most one deployment per target may be in flight at a time.
package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

// ValidTransitions defines all allowed state transitions in the
// deployment lifecycle. Format: from_status -> []to_statuses
//
// The state machine follows the phase sequence:
//
//	Pending → Transferring, Failed
//	Transferring → Restarting, Failed
//	Restarting → Verifying, Failed
//	Verifying → Succeeded, Failed
//
// Every non-terminal state may fail; Succeeded and Failed are terminal.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.DeploymentStatus][]constants.DeploymentStatus{
	constants.DeploymentStatusPending: {
		constants.DeploymentStatusTransferring,
		constants.DeploymentStatusFailed,
	},
	constants.DeploymentStatusTransferring: {
		constants.DeploymentStatusRestarting,
		constants.DeploymentStatusFailed,
	},
	constants.DeploymentStatusRestarting: {
		constants.DeploymentStatusVerifying,
		constants.DeploymentStatusFailed,
	},
	constants.DeploymentStatusVerifying: {
		constants.DeploymentStatusSucceeded,
		constants.DeploymentStatusFailed,
	},
}

// terminalStatuses defines states where no further transitions are allowed.
//
//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalStatuses = map[constants.DeploymentStatus]bool{
	constants.DeploymentStatusSucceeded: true,
	constants.DeploymentStatusFailed:    true,
}

// IsValidTransition checks if a transition from one status to another is allowed.
func IsValidTransition(from, to constants.DeploymentStatus) bool {
	if from == to {
		return false
	}

	validTargets, exists := ValidTransitions[from]
	if !exists {
		return false // Terminal state or unknown state
	}
	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus returns true for states where no further transitions
// are allowed. Terminal states: Succeeded, Failed
func IsTerminalStatus(status constants.DeploymentStatus) bool {
	return terminalStatuses[status]
}

// Transition validates and applies a state transition to the deployment
// request, recording it in the audit trail. The caller persists the
// updated request.
func Transition(ctx context.Context, req *domain.DeploymentRequest, to constants.DeploymentStatus, reason string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if req == nil {
		return fmt.Errorf("%w: deployment request is nil", slipwayerrors.ErrInvalidTransition)
	}

	from := req.Status
	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s",
			slipwayerrors.ErrInvalidTransition, from, to)
	}

	now := time.Now().UTC()

	req.Transitions = append(req.Transitions, domain.DeploymentTransition{
		FromStatus: from,
		ToStatus:   to,
		Timestamp:  now,
		Reason:     reason,
	})

	req.Status = to
	req.UpdatedAt = now

	if IsTerminalStatus(to) {
		req.CompletedAt = &now
	}

	return nil
}
