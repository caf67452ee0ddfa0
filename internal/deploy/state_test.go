package deploy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  constants.DeploymentStatus
		to    constants.DeploymentStatus
		valid bool
	}{
		{"pending to transferring", constants.DeploymentStatusPending, constants.DeploymentStatusTransferring, true},
		{"pending to failed", constants.DeploymentStatusPending, constants.DeploymentStatusFailed, true},
		{"transferring to restarting", constants.DeploymentStatusTransferring, constants.DeploymentStatusRestarting, true},
		{"transferring to failed", constants.DeploymentStatusTransferring, constants.DeploymentStatusFailed, true},
		{"restarting to verifying", constants.DeploymentStatusRestarting, constants.DeploymentStatusVerifying, true},
		{"verifying to succeeded", constants.DeploymentStatusVerifying, constants.DeploymentStatusSucceeded, true},
		{"verifying to failed", constants.DeploymentStatusVerifying, constants.DeploymentStatusFailed, true},
		{"pending cannot skip to restarting", constants.DeploymentStatusPending, constants.DeploymentStatusRestarting, false},
		{"pending cannot skip to succeeded", constants.DeploymentStatusPending, constants.DeploymentStatusSucceeded, false},
		{"no backward transition", constants.DeploymentStatusVerifying, constants.DeploymentStatusTransferring, false},
		{"succeeded is terminal", constants.DeploymentStatusSucceeded, constants.DeploymentStatusPending, false},
		{"failed is terminal", constants.DeploymentStatusFailed, constants.DeploymentStatusPending, false},
		{"same status", constants.DeploymentStatusVerifying, constants.DeploymentStatusVerifying, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(constants.DeploymentStatusSucceeded))
	assert.True(t, IsTerminalStatus(constants.DeploymentStatusFailed))
	assert.False(t, IsTerminalStatus(constants.DeploymentStatusPending))
	assert.False(t, IsTerminalStatus(constants.DeploymentStatusTransferring))
	assert.False(t, IsTerminalStatus(constants.DeploymentStatusRestarting))
	assert.False(t, IsTerminalStatus(constants.DeploymentStatusVerifying))
}

func TestTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("records audit trail", func(t *testing.T) {
		req := &domain.DeploymentRequest{
			ID:     GenerateID(),
			Status: constants.DeploymentStatusPending,
		}

		err := Transition(ctx, req, constants.DeploymentStatusTransferring, "connected")
		require.NoError(t, err)

		assert.Equal(t, constants.DeploymentStatusTransferring, req.Status)
		require.Len(t, req.Transitions, 1)
		assert.Equal(t, constants.DeploymentStatusPending, req.Transitions[0].FromStatus)
		assert.Equal(t, "connected", req.Transitions[0].Reason)
		assert.Nil(t, req.CompletedAt)
	})

	t.Run("terminal transition sets completed timestamp", func(t *testing.T) {
		req := &domain.DeploymentRequest{
			ID:     GenerateID(),
			Status: constants.DeploymentStatusVerifying,
		}

		err := Transition(ctx, req, constants.DeploymentStatusSucceeded, "process verified running")
		require.NoError(t, err)

		require.NotNil(t, req.CompletedAt)
		assert.WithinDuration(t, time.Now().UTC(), *req.CompletedAt, 5*time.Second)
	})

	t.Run("invalid transition", func(t *testing.T) {
		req := &domain.DeploymentRequest{
			ID:     GenerateID(),
			Status: constants.DeploymentStatusSucceeded,
		}

		err := Transition(ctx, req, constants.DeploymentStatusPending, "")
		require.ErrorIs(t, err, slipwayerrors.ErrInvalidTransition)
		assert.Empty(t, req.Transitions)
	})

	t.Run("nil request", func(t *testing.T) {
		err := Transition(ctx, nil, constants.DeploymentStatusTransferring, "")
		require.ErrorIs(t, err, slipwayerrors.ErrInvalidTransition)
	})
}
