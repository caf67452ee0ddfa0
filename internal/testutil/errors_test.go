package testutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMockErrors verifies mock errors are distinct and wrappable.
func TestMockErrors(t *testing.T) {
	mockErrs := []error{
		ErrMockTransport,
		ErrMockSupervisor,
		ErrMockStoreUnavailable,
		ErrMockNotFound,
		ErrMockRunner,
	}

	t.Run("errors are distinct", func(t *testing.T) {
		seen := make(map[string]bool, len(mockErrs))
		for _, err := range mockErrs {
			require.Error(t, err)
			assert.False(t, seen[err.Error()], "duplicate error message: %s", err.Error())
			seen[err.Error()] = true
		}
	})

	t.Run("errors support wrapping", func(t *testing.T) {
		for _, err := range mockErrs {
			wrapped := fmt.Errorf("context: %w", err)
			assert.True(t, errors.Is(wrapped, err))
		}
	})
}
