package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "context"))
	})

	t.Run("preserves the chain", func(t *testing.T) {
		err := Wrap(ErrRunNotFound, "failed to load run")
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, ErrRunNotFound))
		assert.Equal(t, "failed to load run: run not found", err.Error())
	})
}

func TestWrapf(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, Wrapf(nil, "run %s", "run-20260829-101500"))
	})

	t.Run("formats and preserves the chain", func(t *testing.T) {
		err := Wrapf(ErrArtifactExists, "run %q", "run-20260829-101500")
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, ErrArtifactExists))
		assert.Contains(t, err.Error(), `run "run-20260829-101500"`)
	})
}
