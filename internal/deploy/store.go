package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slipwayci/slipway/internal/constants"
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

// Store defines deployment request persistence operations.
type Store interface {
	// Create persists a new deployment request.
	Create(ctx context.Context, req *domain.DeploymentRequest) error

	// Get retrieves a request by ID.
	// Returns ErrDeploymentNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.DeploymentRequest, error)

	// Update saves the current request state (atomic write).
	// Returns ErrInvalidTransition if the stored request is terminal.
	Update(ctx context.Context, req *domain.DeploymentRequest) error

	// List returns all requests, sorted by creation time (newest first).
	List(ctx context.Context) ([]*domain.DeploymentRequest, error)
}

// FileStore implements Store using the local filesystem.
//
// Layout under home:
//
//	deployments/<id>.json          deployment request
//	deployments/.lock              store lock
//	deployments/targets/<name>.lock  per-target single-flight lock
type FileStore struct {
	home string // Usually ~/.slipway
}

// NewFileStore creates a FileStore with the given home directory.
// If home is empty, uses the default ~/.slipway directory.
func NewFileStore(home string) (*FileStore, error) {
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(userHome, constants.SlipwayHome)
	}
	return &FileStore{home: home}, nil
}

// GenerateID creates a new deployment request identifier.
func GenerateID() string {
	return uuid.NewString()
}

// Create persists a new deployment request.
func (s *FileStore) Create(ctx context.Context, req *domain.DeploymentRequest) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if req == nil {
		return fmt.Errorf("failed to create deployment: request %w", slipwayerrors.ErrEmptyValue)
	}
	if err := validateID(req.ID); err != nil {
		return slipwayerrors.Wrap(err, "failed to create deployment")
	}

	if err := os.MkdirAll(s.deploymentsDir(), dirPerm); err != nil {
		return fmt.Errorf("failed to create deployments directory: %w", err)
	}

	req.SchemaVersion = constants.DeploymentSchemaVersion

	lock, err := flock.Acquire(ctx, s.lockPath(), LockTimeout)
	if err != nil {
		return fmt.Errorf("failed to create deployment '%s': %w", req.ID, err)
	}
	defer func() { _ = lock.Release() }()

	path := s.requestPath(req.ID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("failed to create deployment '%s': already exists", req.ID)
	}

	return s.writeRequest(path, req)
}

// Get retrieves a request by ID.
func (s *FileStore) Get(ctx context.Context, id string) (*domain.DeploymentRequest, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := validateID(id); err != nil {
		return nil, slipwayerrors.Wrap(err, "failed to get deployment")
	}
	return s.readRequest(id)
}

// Update saves the current request state (atomic write).
// Terminal requests are immutable.
func (s *FileStore) Update(ctx context.Context, req *domain.DeploymentRequest) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if req == nil {
		return fmt.Errorf("failed to update deployment: request %w", slipwayerrors.ErrEmptyValue)
	}
	if err := validateID(req.ID); err != nil {
		return slipwayerrors.Wrap(err, "failed to update deployment")
	}

	lock, err := flock.Acquire(ctx, s.lockPath(), LockTimeout)
	if err != nil {
		return fmt.Errorf("failed to update deployment '%s': %w", req.ID, err)
	}
	defer func() { _ = lock.Release() }()

	stored, err := s.readRequest(req.ID)
	if err != nil {
		return slipwayerrors.Wrapf(err, "failed to update deployment '%s'", req.ID)
	}
	if IsTerminalStatus(stored.Status) {
		return fmt.Errorf("failed to update deployment '%s': deployment is %s: %w",
			req.ID, stored.Status, slipwayerrors.ErrInvalidTransition)
	}

	req.UpdatedAt = time.Now().UTC()
	return s.writeRequest(s.requestPath(req.ID), req)
}

// List returns all requests, sorted by creation time (newest first).
func (s *FileStore) List(ctx context.Context) ([]*domain.DeploymentRequest, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(s.deploymentsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.DeploymentRequest{}, nil
		}
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	requests := make([]*domain.DeploymentRequest, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		req, err := s.readRequest(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		requests = append(requests, req)
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}

// TargetLockPath returns the per-target single-flight lock file path.
// The agent takes this lock with a single non-blocking attempt; holding
// it means a deployment to the target is in flight.
func (s *FileStore) TargetLockPath(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("target name %w", slipwayerrors.ErrEmptyValue)
	}
	if strings.Contains(target, "..") || strings.ContainsAny(target, `/\`) {
		return "", fmt.Errorf("target name %q: %w", target, slipwayerrors.ErrPathTraversal)
	}

	dir := filepath.Join(s.deploymentsDir(), "targets")
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create target lock directory: %w", err)
	}
	return filepath.Join(dir, target+".lock"), nil
}

// readRequest loads and parses a deployment request file.
func (s *FileStore) readRequest(id string) (*domain.DeploymentRequest, error) {
	data, err := os.ReadFile(s.requestPath(id)) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("deployment '%s': %w", id, slipwayerrors.ErrDeploymentNotFound)
		}
		return nil, fmt.Errorf("failed to read deployment '%s': %w", id, err)
	}

	var req domain.DeploymentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse deployment '%s': corrupted state file: %w", id, err)
	}
	return &req, nil
}

// writeRequest serializes a request atomically.
func (s *FileStore) writeRequest(path string, req *domain.DeploymentRequest) error {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode deployment: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create deployment temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write deployment temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync deployment temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close deployment temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename deployment temp file: %w", err)
	}
	return nil
}

// deploymentsDir returns the deployments directory path.
func (s *FileStore) deploymentsDir() string {
	return filepath.Join(s.home, constants.DeploymentsDir)
}

// requestPath returns the file path for a deployment request.
func (s *FileStore) requestPath(id string) string {
	return filepath.Join(s.deploymentsDir(), id+".json")
}

// lockPath returns the store-wide lock file path.
func (s *FileStore) lockPath() string {
	return filepath.Join(s.deploymentsDir(), ".lock")
}

// validateID rejects empty IDs and path traversal attempts.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("deployment ID %w", slipwayerrors.ErrEmptyValue)
	}
	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("deployment ID %q: %w", id, slipwayerrors.ErrPathTraversal)
	}
	return nil
}
