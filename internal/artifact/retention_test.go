package artifact

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayci/slipway/internal/clock"
)

func TestRetentionPolicy_Enabled(t *testing.T) {
	assert.False(t, RetentionPolicy{}.Enabled())
	assert.True(t, RetentionPolicy{MaxAge: time.Hour}.Enabled())
	assert.True(t, RetentionPolicy{MaxCount: 1}.Enabled())
}

func TestFileStore_Evict_ByAge(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFrozen(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	store := newTestStore(t, clk)

	_, err := store.Put(ctx, "run-20260829-080000", "old.tar.gz", []byte("old"))
	require.NoError(t, err)

	clk.Advance(90 * time.Minute)
	_, err = store.Put(ctx, "run-20260829-093000", "new.tar.gz", []byte("new"))
	require.NoError(t, err)

	evicted, err := store.Evict(ctx, RetentionPolicy{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	refs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "run-20260829-093000", refs[0].RunID)
}

func TestFileStore_Evict_ByCount(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFrozen(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	store := newTestStore(t, clk)

	for i := 0; i < 5; i++ {
		runID := fmt.Sprintf("run-20260829-10000%d", i)
		_, err := store.Put(ctx, runID, "a.tar.gz", []byte(runID))
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}

	evicted, err := store.Evict(ctx, RetentionPolicy{MaxCount: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, evicted)

	refs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "run-20260829-100004", refs[0].RunID)
	assert.Equal(t, "run-20260829-100003", refs[1].RunID)
}

func TestFileStore_Evict_Disabled(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	_, err := store.Put(ctx, "run-20260829-100000", "a.tar.gz", []byte("x"))
	require.NoError(t, err)

	evicted, err := store.Evict(ctx, RetentionPolicy{})
	require.NoError(t, err)
	assert.Zero(t, evicted)

	refs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestFileStore_Evict_RemovesOrphanBlobs(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFrozen(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	store := newTestStore(t, clk)

	_, err := store.Put(ctx, "run-20260829-100000", "a.tar.gz", []byte("unique content"))
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	evicted, err := store.Evict(ctx, RetentionPolicy{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	entries, err := os.ReadDir(store.blobsDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "unreferenced blob is deleted")
}

func TestFileStore_Evict_KeepsSharedBlob(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFrozen(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	store := newTestStore(t, clk)

	content := []byte("shared content")
	_, err := store.Put(ctx, "run-20260829-080000", "a.tar.gz", content)
	require.NoError(t, err)

	clk.Advance(90 * time.Minute)
	_, err = store.Put(ctx, "run-20260829-093000", "a.tar.gz", content)
	require.NoError(t, err)

	// Only the older reference falls outside the window; the blob must
	// survive because the newer reference still points at it.
	evicted, err := store.Evict(ctx, RetentionPolicy{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	entries, err := os.ReadDir(store.blobsDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	ref, err := store.Reference(ctx, "run-20260829-093000")
	require.NoError(t, err)
	got, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSelectVictims(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFrozen(now.Add(-3 * time.Hour))
	store := newTestStore(t, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		runID := fmt.Sprintf("run-20260829-0%d0000", 7+i)
		_, err := store.Put(ctx, runID, "a.tar.gz", []byte(runID))
		require.NoError(t, err)
		clk.Advance(time.Hour)
	}

	refs, err := store.List(ctx)
	require.NoError(t, err)

	t.Run("age and count combine", func(t *testing.T) {
		victims := selectVictims(refs, RetentionPolicy{MaxAge: 150 * time.Minute, MaxCount: 2}, now)
		require.Len(t, victims, 1)
		assert.Equal(t, "run-20260829-070000", victims[0].RunID)
	})

	t.Run("count alone", func(t *testing.T) {
		victims := selectVictims(refs, RetentionPolicy{MaxCount: 1}, now)
		require.Len(t, victims, 2)
	})
}
