// Package artifact provides content-addressed storage for build outputs.
// Content is keyed by sha256 digest and referenced by run identifier.
// Artifacts are immutable once stored, and at most one writer per run
// ID is enforced through an exclusive lock plus a create-exclusive
// reference file.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/slipwayci/slipway/internal/clock"
	"github.com/slipwayci/slipway/internal/ctxutil"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
	"github.com/slipwayci/slipway/internal/flock"
)

// LockTimeout is the maximum duration to wait for the store lock.
const LockTimeout = 5 * time.Second

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// Store is the artifact storage interface.
type Store interface {
	// Put stores content for a run and returns its reference.
	// Returns ErrArtifactExists if the run already published an artifact.
	Put(ctx context.Context, runID, name string, content []byte) (*domain.ArtifactReference, error)

	// Get retrieves artifact content by reference.
	// Returns ErrArtifactUnavailable if the content is missing.
	Get(ctx context.Context, ref *domain.ArtifactReference) ([]byte, error)

	// Reference returns the stored reference for a run.
	// Returns ErrArtifactUnavailable if the run has no artifact.
	Reference(ctx context.Context, runID string) (*domain.ArtifactReference, error)

	// List returns all stored references, newest first.
	List(ctx context.Context) ([]*domain.ArtifactReference, error)

	// Evict applies the retention policy, removing references (and any
	// blobs left unreferenced) that fall outside the policy.
	Evict(ctx context.Context, policy RetentionPolicy) (int, error)
}

// FileStore implements Store on the local filesystem.
//
// Layout under root:
//
//	refs/<run-id>.json      reference metadata, one per run
//	blobs/<hex-digest>      content, shared between identical artifacts
type FileStore struct {
	root  string
	clock clock.Clock
}

// NewFileStore creates a FileStore rooted at the given directory.
func NewFileStore(root string, clk clock.Clock) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact store root %w", slipwayerrors.ErrEmptyValue)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	for _, dir := range []string{filepath.Join(root, "refs"), filepath.Join(root, "blobs")} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, slipwayerrors.Wrap(err, "failed to create artifact store directory")
		}
	}
	return &FileStore{root: root, clock: clk}, nil
}

// Put stores content for a run and returns its reference.
// The reference file is created with O_EXCL under the store lock, which
// guarantees at most one writer per run ID even across processes.
func (s *FileStore) Put(ctx context.Context, runID, name string, content []byte) (*domain.ArtifactReference, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, fmt.Errorf("failed to store artifact: run ID %w", slipwayerrors.ErrEmptyValue)
	}
	if name == "" {
		return nil, fmt.Errorf("failed to store artifact: name %w", slipwayerrors.ErrEmptyValue)
	}
	if err := validateRefName(runID); err != nil {
		return nil, err
	}

	lock, err := flock.Acquire(ctx, s.lockPath(), LockTimeout)
	if err != nil {
		return nil, slipwayerrors.Wrap(err, "failed to store artifact")
	}
	defer func() { _ = lock.Release() }()

	refPath := s.refPath(runID)
	if _, err := os.Stat(refPath); err == nil {
		return nil, fmt.Errorf("run %q: %w", runID, slipwayerrors.ErrArtifactExists)
	}

	sum := sha256.Sum256(content)
	digest := "sha256:" + hex.EncodeToString(sum[:])

	// Blob first: a crash between blob and ref leaves an orphan blob,
	// never a dangling reference.
	if err := s.writeBlob(digest, content); err != nil {
		return nil, err
	}

	ref := &domain.ArtifactReference{
		RunID:     runID,
		Digest:    digest,
		Name:      filepath.Base(name),
		Size:      int64(len(content)),
		CreatedAt: s.clock.Now().UTC(),
	}

	data, err := json.MarshalIndent(ref, "", "  ")
	if err != nil {
		return nil, slipwayerrors.Wrap(err, "failed to encode artifact reference")
	}

	// O_EXCL backs up the existence check above.
	f, err := os.OpenFile(refPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("run %q: %w", runID, slipwayerrors.ErrArtifactExists)
		}
		return nil, slipwayerrors.Wrap(err, "failed to create artifact reference")
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(refPath)
		return nil, slipwayerrors.Wrap(err, "failed to write artifact reference")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(refPath)
		return nil, slipwayerrors.Wrap(err, "failed to sync artifact reference")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(refPath)
		return nil, slipwayerrors.Wrap(err, "failed to close artifact reference")
	}

	return ref, nil
}

// Get retrieves artifact content by reference and verifies its digest.
func (s *FileStore) Get(ctx context.Context, ref *domain.ArtifactReference) ([]byte, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if ref == nil || ref.Digest == "" {
		return nil, fmt.Errorf("artifact reference %w", slipwayerrors.ErrEmptyValue)
	}

	blobPath, err := s.blobPath(ref.Digest)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(blobPath) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("digest %s: %w", ref.Digest, slipwayerrors.ErrArtifactUnavailable)
		}
		return nil, slipwayerrors.Wrap(err, "failed to read artifact content")
	}

	// Immutability check: stored content must still match its address.
	sum := sha256.Sum256(content)
	if "sha256:"+hex.EncodeToString(sum[:]) != ref.Digest {
		return nil, fmt.Errorf("digest mismatch for %s: %w", ref.Digest, slipwayerrors.ErrArtifactUnavailable)
	}

	return content, nil
}

// Reference returns the stored reference for a run.
func (s *FileStore) Reference(ctx context.Context, runID string) (*domain.ArtifactReference, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if err := validateRefName(runID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.refPath(runID)) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %q: %w", runID, slipwayerrors.ErrArtifactUnavailable)
		}
		return nil, slipwayerrors.Wrap(err, "failed to read artifact reference")
	}

	var ref domain.ArtifactReference
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, slipwayerrors.Wrapf(err, "corrupted artifact reference for run %q", runID)
	}
	return &ref, nil
}

// List returns all stored references, newest first.
func (s *FileStore) List(ctx context.Context) ([]*domain.ArtifactReference, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, "refs"))
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.ArtifactReference{}, nil
		}
		return nil, slipwayerrors.Wrap(err, "failed to list artifacts")
	}

	refs := make([]*domain.ArtifactReference, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		runID := strings.TrimSuffix(entry.Name(), ".json")
		ref, err := s.Reference(ctx, runID)
		if err != nil {
			// Skip unreadable references; eviction may be mid-flight.
			continue
		}
		refs = append(refs, ref)
	}

	sortRefsNewestFirst(refs)
	return refs, nil
}

// writeBlob stores content at its digest address if not already present.
// Identical content is shared between runs; blobs are immutable.
func (s *FileStore) writeBlob(digest string, content []byte) error {
	blobPath, err := s.blobPath(digest)
	if err != nil {
		return err
	}
	if _, err := os.Stat(blobPath); err == nil {
		return nil // already stored, content-addressed dedupe
	}

	tmpPath := blobPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return slipwayerrors.Wrap(err, "failed to create blob temp file")
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return slipwayerrors.Wrap(err, "failed to write blob")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return slipwayerrors.Wrap(err, "failed to sync blob")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return slipwayerrors.Wrap(err, "failed to close blob")
	}
	if err := os.Rename(tmpPath, blobPath); err != nil {
		_ = os.Remove(tmpPath)
		return slipwayerrors.Wrap(err, "failed to rename blob")
	}
	return nil
}

// refPath returns the reference file path for a run.
func (s *FileStore) refPath(runID string) string {
	return filepath.Join(s.root, "refs", runID+".json")
}

// blobPath returns the blob file path for a digest.
func (s *FileStore) blobPath(digest string) (string, error) {
	hexPart, ok := strings.CutPrefix(digest, "sha256:")
	if !ok || hexPart == "" {
		return "", fmt.Errorf("malformed digest %q: %w", digest, slipwayerrors.ErrArtifactUnavailable)
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return "", fmt.Errorf("malformed digest %q: %w", digest, slipwayerrors.ErrArtifactUnavailable)
	}
	return filepath.Join(s.root, "blobs", hexPart), nil
}

// lockPath returns the store-wide lock file path.
func (s *FileStore) lockPath() string {
	return filepath.Join(s.root, "store.lock")
}

// validateRefName rejects run IDs that could traverse outside the store.
func validateRefName(runID string) error {
	if runID == "" {
		return fmt.Errorf("run ID %w", slipwayerrors.ErrEmptyValue)
	}
	if strings.Contains(runID, "..") || strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("run ID %q: %w", runID, slipwayerrors.ErrPathTraversal)
	}
	return nil
}

// sortRefsNewestFirst orders references by creation time, newest first.
func sortRefsNewestFirst(refs []*domain.ArtifactReference) {
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].CreatedAt.After(refs[j].CreatedAt)
	})
}
