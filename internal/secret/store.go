package secret

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/slipwayci/slipway/internal/constants"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
	"github.com/slipwayci/slipway/internal/flock"
)

// LockTimeout is the maximum duration to wait for the store lock.
const LockTimeout = 5 * time.Second

// File permission constants. Secret files are owner-only.
const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// Store defines secret persistence operations.
type Store interface {
	// Create stores a new secret. Secrets are write-once:
	// returns ErrSecretExists if the name is already taken.
	Create(ctx context.Context, name string, value Value, scopes []string) error

	// Rotate replaces the value of an existing secret, incrementing its
	// version. Returns ErrSecretNotFound for unknown names.
	Rotate(ctx context.Context, name string, value Value) error

	// Resolve returns the secret for use by the given target.
	// Returns ErrSecretNotFound for unknown names and ErrSecretScope
	// when the target is outside the secret's scope.
	Resolve(ctx context.Context, name, target string) (*Record, error)

	// List returns secret metadata (never values), sorted by name.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes a secret.
	Delete(ctx context.Context, name string) error
}

// diskRecord is the on-disk representation. It is the only place the
// plaintext is serialized.
type diskRecord struct {
	Name      string     `json:"name"`
	Value     string     `json:"value"`
	Scopes    []string   `json:"scopes,omitempty"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
}

// FileStore implements Store using owner-only files under
// <home>/secrets/<name>.json.
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

// Create stores a new secret.
func (s *FileStore) Create(ctx context.Context, name string, value Value, scopes []string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := validateName(name); err != nil {
		return slipwayerrors.Wrap(err, "failed to create secret")
	}
	if value.Plaintext() == "" {
		return fmt.Errorf("failed to create secret '%s': value %w", name, slipwayerrors.ErrEmptyValue)
	}

	if err := os.MkdirAll(s.secretsDir(), dirPerm); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}

	lock, err := flock.Acquire(ctx, s.lockPath(), LockTimeout)
	if err != nil {
		return fmt.Errorf("failed to create secret '%s': %w", name, err)
	}
	defer func() { _ = lock.Release() }()

	path := s.secretPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("failed to create secret '%s': %w", name, slipwayerrors.ErrSecretExists)
	}

	record := diskRecord{
		Name:      name,
		Value:     value.Plaintext(),
		Scopes:    scopes,
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
	return s.write(path, &record, true)
}

// Rotate replaces the value of an existing secret.
func (s *FileStore) Rotate(ctx context.Context, name string, value Value) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := validateName(name); err != nil {
		return slipwayerrors.Wrap(err, "failed to rotate secret")
	}
	if value.Plaintext() == "" {
		return fmt.Errorf("failed to rotate secret '%s': value %w", name, slipwayerrors.ErrEmptyValue)
	}

	lock, err := flock.Acquire(ctx, s.lockPath(), LockTimeout)
	if err != nil {
		return fmt.Errorf("failed to rotate secret '%s': %w", name, err)
	}
	defer func() { _ = lock.Release() }()

	record, err := s.read(name)
	if err != nil {
		return slipwayerrors.Wrapf(err, "failed to rotate secret '%s'", name)
	}

	now := time.Now().UTC()
	record.Value = value.Plaintext()
	record.Version++
	record.RotatedAt = &now

	return s.write(s.secretPath(name), record, false)
}

// Resolve returns the secret for use by the given target.
func (s *FileStore) Resolve(ctx context.Context, name, target string) (*Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := validateName(name); err != nil {
		return nil, slipwayerrors.Wrap(err, "failed to resolve secret")
	}

	disk, err := s.read(name)
	if err != nil {
		return nil, slipwayerrors.Wrapf(err, "failed to resolve secret '%s'", name)
	}

	record := fromDisk(disk)
	if !record.InScope(target) {
		return nil, fmt.Errorf("secret '%s', target '%s': %w", name, target, slipwayerrors.ErrSecretScope)
	}
	return record, nil
}

// List returns secret metadata, sorted by name. Values are zeroed.
func (s *FileStore) List(ctx context.Context) ([]*Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(s.secretsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}

	records := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		disk, err := s.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		record := fromDisk(disk)
		record.Value = ""
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// Delete removes a secret.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := validateName(name); err != nil {
		return slipwayerrors.Wrap(err, "failed to delete secret")
	}

	if err := os.Remove(s.secretPath(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("failed to delete secret '%s': %w", name, slipwayerrors.ErrSecretNotFound)
		}
		return fmt.Errorf("failed to delete secret '%s': %w", name, err)
	}
	return nil
}

// read loads and parses a secret file.
func (s *FileStore) read(name string) (*diskRecord, error) {
	data, err := os.ReadFile(s.secretPath(name)) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, slipwayerrors.ErrSecretNotFound
		}
		return nil, err
	}

	var record diskRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("corrupted secret file: %w", err)
	}
	return &record, nil
}

// write serializes a secret file atomically with owner-only permissions.
// When exclusive is set the final rename is preceded by a create-exclusive
// check so two concurrent Creates cannot both win.
func (s *FileStore) write(path string, record *diskRecord, exclusive bool) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode secret: %w", err)
	}

	if exclusive {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm) //#nosec G304 -- path is constructed internally
		if err != nil {
			if os.IsExist(err) {
				return slipwayerrors.ErrSecretExists
			}
			return fmt.Errorf("failed to create secret file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return fmt.Errorf("failed to write secret file: %w", err)
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return fmt.Errorf("failed to sync secret file: %w", err)
		}
		return f.Close()
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create secret temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write secret temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync secret temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close secret temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename secret temp file: %w", err)
	}
	return nil
}

// fromDisk converts the on-disk representation to the public Record.
func fromDisk(d *diskRecord) *Record {
	return &Record{
		Name:      d.Name,
		Value:     Value(d.Value),
		Scopes:    d.Scopes,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		RotatedAt: d.RotatedAt,
	}
}

// validateName rejects empty names and path traversal attempts.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("secret name %w", slipwayerrors.ErrEmptyValue)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("secret name %q: %w", name, slipwayerrors.ErrPathTraversal)
	}
	return nil
}

// secretsDir returns the secrets directory path.
func (s *FileStore) secretsDir() string {
	return filepath.Join(s.home, constants.SecretsDir)
}

// secretPath returns the file path for a named secret.
func (s *FileStore) secretPath(name string) string {
	return filepath.Join(s.secretsDir(), name+".json")
}

// lockPath returns the store-wide lock file path.
func (s *FileStore) lockPath() string {
	return filepath.Join(s.secretsDir(), ".lock")
}
