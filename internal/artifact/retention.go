package artifact

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/slipwayci/slipway/internal/ctxutil"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
	"github.com/slipwayci/slipway/internal/flock"
)

// RetentionPolicy controls artifact eviction. It is configuration, never
// hardcoded: zero values disable the corresponding dimension.
type RetentionPolicy struct {
	// MaxAge evicts references older than this duration. Zero disables.
	MaxAge time.Duration

	// MaxCount keeps only the newest MaxCount references. Zero disables.
	MaxCount int
}

// Enabled reports whether the policy evicts anything at all.
func (p RetentionPolicy) Enabled() bool {
	return p.MaxAge > 0 || p.MaxCount > 0
}

// Evict applies the retention policy and returns the number of references
// removed. Blobs are deleted only once no remaining reference points at
// them, since content-addressed blobs may be shared between runs.
func (s *FileStore) Evict(ctx context.Context, policy RetentionPolicy) (int, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return 0, err
	}
	if !policy.Enabled() {
		return 0, nil
	}

	lock, err := flock.Acquire(ctx, s.lockPath(), LockTimeout)
	if err != nil {
		return 0, slipwayerrors.Wrap(err, "failed to evict artifacts")
	}
	defer func() { _ = lock.Release() }()

	refs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	victims := selectVictims(refs, policy, s.clock.Now().UTC())
	if len(victims) == 0 {
		return 0, nil
	}

	evicted := 0
	for _, ref := range victims {
		if err := os.Remove(s.refPath(ref.RunID)); err != nil && !os.IsNotExist(err) {
			return evicted, slipwayerrors.Wrapf(err, "failed to evict artifact for run %q", ref.RunID)
		}
		evicted++
	}

	// Second pass: remove blobs no surviving reference points at.
	if err := s.removeOrphanBlobs(ctx); err != nil {
		return evicted, err
	}

	return evicted, nil
}

// selectVictims returns the references the policy removes. refs must be
// sorted newest first (as List returns them).
func selectVictims(refs []*domain.ArtifactReference, policy RetentionPolicy, now time.Time) []*domain.ArtifactReference {
	var victims []*domain.ArtifactReference
	for i, ref := range refs {
		tooOld := policy.MaxAge > 0 && now.Sub(ref.CreatedAt) > policy.MaxAge
		overCount := policy.MaxCount > 0 && i >= policy.MaxCount
		if tooOld || overCount {
			victims = append(victims, ref)
		}
	}
	return victims
}

// removeOrphanBlobs deletes blobs that no reference points at.
func (s *FileStore) removeOrphanBlobs(ctx context.Context) error {
	refs, err := s.List(ctx)
	if err != nil {
		return err
	}

	live := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if path, err := s.blobPath(ref.Digest); err == nil {
			live[path] = true
		}
	}

	entries, err := os.ReadDir(s.blobsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return slipwayerrors.Wrap(err, "failed to scan blobs")
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.blobsDir(), entry.Name())
		if live[path] {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return slipwayerrors.Wrap(err, "failed to remove orphan blob")
		}
	}
	return nil
}

// blobsDir returns the blob directory path.
func (s *FileStore) blobsDir() string {
	return filepath.Join(s.root, "blobs")
}
