// Package run provides run record persistence and lifecycle management.
//
// This file implements the run state machine, which enforces valid state
// transitions and maintains an audit trail of all status changes.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/engine, internal/cli
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

// ValidTransitions defines all allowed state transitions in the run lifecycle.
// Format: from_status -> []to_statuses
//
// The state machine follows this flow:
//
//	Pending → Running, Canceled
//	Running → Succeeded, Failed, Canceled
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.RunStatus][]constants.RunStatus{
	constants.RunStatusPending: {constants.RunStatusRunning, constants.RunStatusCanceled},
	constants.RunStatusRunning: {
		constants.RunStatusSucceeded,
		constants.RunStatusFailed,
		constants.RunStatusCanceled,
	},
}

// terminalStatuses defines states where no further transitions are allowed.
// A run is immutable once terminal; the store rejects updates.
//
//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalStatuses = map[constants.RunStatus]bool{
	constants.RunStatusSucceeded: true,
	constants.RunStatusFailed:    true,
	constants.RunStatusCanceled:  true,
}

// IsValidTransition checks if a transition from one status to another is allowed.
// Returns false for transitions from terminal states or to the same state.
func IsValidTransition(from, to constants.RunStatus) bool {
	// Same status is not a valid transition
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

// IsTerminalStatus returns true for states where no further transitions are allowed.
// Terminal states: Succeeded, Failed, Canceled
func IsTerminalStatus(status constants.RunStatus) bool {
	return terminalStatuses[status]
}

// Transition validates and applies a state transition to the run record.
// It records the transition in the run's history and updates timestamps.
// The caller is responsible for persisting the updated record.
//
// Returns an error if:
//   - ctx is canceled
//   - record is nil
//   - The transition is invalid (returns wrapped ErrInvalidTransition)
func Transition(ctx context.Context, record *domain.RunRecord, to constants.RunStatus, reason string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if record == nil {
		return fmt.Errorf("%w: run record is nil", slipwayerrors.ErrInvalidTransition)
	}

	from := record.Status
	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s",
			slipwayerrors.ErrInvalidTransition, from, to)
	}

	now := time.Now().UTC()

	record.Transitions = append(record.Transitions, domain.RunTransition{
		FromStatus: from,
		ToStatus:   to,
		Timestamp:  now,
		Reason:     reason,
	})

	record.Status = to
	record.UpdatedAt = now

	if IsTerminalStatus(to) {
		record.CompletedAt = &now
	}

	return nil
}
