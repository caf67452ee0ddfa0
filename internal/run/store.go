package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/domain"
	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
	"github.com/slipwayci/slipway/internal/flock"
)

// LockTimeout is the maximum duration to wait for acquiring a file lock.
const LockTimeout = 5 * time.Second

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// validRunIDRegex matches valid run IDs (run-YYYYMMDD-HHMMSS with optional ms suffix).
var validRunIDRegex = regexp.MustCompile(`^run-\d{8}-\d{6}(-\d{3})?$`)

// Store defines the interface for run record persistence operations.
type Store interface {
	// Create creates a new run record.
	// Returns ErrRunExists if the run already exists.
	Create(ctx context.Context, record *domain.RunRecord) error

	// Get retrieves a run record by ID.
	// Returns ErrRunNotFound if the run doesn't exist.
	Get(ctx context.Context, runID string) (*domain.RunRecord, error)

	// Exists reports whether a run record exists for the ID.
	// Invalid IDs report false.
	Exists(runID string) bool

	// Update saves the current run state (atomic write).
	// Returns ErrRunNotFound if the run doesn't exist and
	// ErrInvalidTransition if the stored record is already terminal.
	Update(ctx context.Context, record *domain.RunRecord) error

	// List returns all run records, sorted by creation time (newest first).
	List(ctx context.Context) ([]*domain.RunRecord, error)

	// Delete removes a run record and its log.
	Delete(ctx context.Context, runID string) error

	// AppendLog appends a log entry to the run's log file (JSON-lines format).
	AppendLog(ctx context.Context, runID string, entry []byte) error

	// ReadLog returns the raw contents of the run's log file.
	ReadLog(ctx context.Context, runID string) ([]byte, error)
}

// FileStore implements Store using the local filesystem.
//
// Layout under home:
//
//	runs/<run-id>/run.json   run record
//	runs/<run-id>/run.log    execution log, JSON lines
//	runs/<run-id>/.lock      advisory lock for concurrent access
type FileStore struct {
	home string // Usually ~/.slipway
}

// NewFileStore creates a new FileStore with the given home directory.
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

// GenerateRunID creates a run ID from the current time.
// Format: run-YYYYMMDD-HHMMSS
func GenerateRunID(t time.Time) string {
	return "run-" + t.UTC().Format("20060102-150405")
}

// GenerateRunIDUnique creates a run ID that does not collide with an
// existing run directory, appending a millisecond suffix when the
// second-resolution ID is already taken.
func GenerateRunIDUnique(t time.Time, exists func(id string) bool) string {
	id := GenerateRunID(t)
	if exists == nil || !exists(id) {
		return id
	}
	return fmt.Sprintf("%s-%03d", id, t.UTC().Nanosecond()/1e6)
}

// ValidateRunID checks that a run ID is well formed and free of path
// traversal characters.
func ValidateRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("run ID %w", slipwayerrors.ErrEmptyValue)
	}
	if strings.Contains(runID, "..") || strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("run ID %q: %w", runID, slipwayerrors.ErrPathTraversal)
	}
	if !validRunIDRegex.MatchString(runID) {
		return fmt.Errorf("run ID %q: %w", runID, slipwayerrors.ErrRunNotFound)
	}
	return nil
}

// Exists reports whether a run directory exists for the given ID.
func (s *FileStore) Exists(runID string) bool {
	if ValidateRunID(runID) != nil {
		return false
	}
	_, err := os.Stat(s.runDir(runID))
	return err == nil
}

// Create creates a new run record.
func (s *FileStore) Create(ctx context.Context, record *domain.RunRecord) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if record == nil {
		return fmt.Errorf("failed to create run: record %w", slipwayerrors.ErrEmptyValue)
	}
	if err := ValidateRunID(record.ID); err != nil {
		return slipwayerrors.Wrap(err, "failed to create run")
	}

	runDir := s.runDir(record.ID)

	if _, err := os.Stat(runDir); err == nil {
		return fmt.Errorf("failed to create run '%s': %w", record.ID, slipwayerrors.ErrRunExists)
	}

	if err := os.MkdirAll(runDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	record.SchemaVersion = constants.RunSchemaVersion

	lock, err := flock.Acquire(ctx, s.lockPath(record.ID), LockTimeout)
	if err != nil {
		_ = os.RemoveAll(runDir)
		return fmt.Errorf("failed to create run '%s': %w", record.ID, err)
	}
	defer func() { _ = lock.Release() }()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		_ = os.RemoveAll(runDir)
		return fmt.Errorf("failed to create run '%s': %w", record.ID, err)
	}

	if err := atomicWrite(s.recordPath(record.ID), data); err != nil {
		_ = os.RemoveAll(runDir)
		return fmt.Errorf("failed to create run '%s': %w", record.ID, err)
	}

	return nil
}

// Get retrieves a run record by ID.
func (s *FileStore) Get(ctx context.Context, runID string) (*domain.RunRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := ValidateRunID(runID); err != nil {
		return nil, slipwayerrors.Wrap(err, "failed to get run")
	}

	if _, err := os.Stat(s.runDir(runID)); os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to get run '%s': %w", runID, slipwayerrors.ErrRunNotFound)
	}

	lock, err := flock.Acquire(ctx, s.lockPath(runID), LockTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to get run '%s': %w", runID, err)
	}
	defer func() { _ = lock.Release() }()

	return s.readRecord(runID)
}

// Update saves the current run state (atomic write).
// Terminal records are immutable: updating a run whose stored state is
// already succeeded, failed, or canceled returns ErrInvalidTransition.
func (s *FileStore) Update(ctx context.Context, record *domain.RunRecord) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if record == nil {
		return fmt.Errorf("failed to update run: record %w", slipwayerrors.ErrEmptyValue)
	}
	if err := ValidateRunID(record.ID); err != nil {
		return slipwayerrors.Wrap(err, "failed to update run")
	}

	if _, err := os.Stat(s.runDir(record.ID)); os.IsNotExist(err) {
		return fmt.Errorf("failed to update run '%s': %w", record.ID, slipwayerrors.ErrRunNotFound)
	}

	lock, err := flock.Acquire(ctx, s.lockPath(record.ID), LockTimeout)
	if err != nil {
		return fmt.Errorf("failed to update run '%s': %w", record.ID, err)
	}
	defer func() { _ = lock.Release() }()

	stored, err := s.readRecord(record.ID)
	if err != nil {
		return err
	}
	if IsTerminalStatus(stored.Status) {
		return fmt.Errorf("failed to update run '%s': run is %s: %w",
			record.ID, stored.Status, slipwayerrors.ErrInvalidTransition)
	}

	record.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to update run '%s': %w", record.ID, err)
	}

	if err := atomicWrite(s.recordPath(record.ID), data); err != nil {
		return fmt.Errorf("failed to update run '%s': %w", record.ID, err)
	}

	return nil
}

// List returns all run records, sorted by creation time (newest first).
func (s *FileStore) List(ctx context.Context) ([]*domain.RunRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	runsDir := filepath.Join(s.home, constants.RunsDir)
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.RunRecord{}, nil
		}
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	records := make([]*domain.RunRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !validRunIDRegex.MatchString(entry.Name()) {
			continue
		}
		record, err := s.readRecord(entry.Name())
		if err != nil {
			// Skip unreadable records; a writer may be mid-create.
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// Delete removes a run record and its log.
func (s *FileStore) Delete(ctx context.Context, runID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := ValidateRunID(runID); err != nil {
		return slipwayerrors.Wrap(err, "failed to delete run")
	}

	runDir := s.runDir(runID)
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run '%s': %w", runID, slipwayerrors.ErrRunNotFound)
	}

	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to delete run '%s': %w", runID, err)
	}
	return nil
}

// AppendLog appends a log entry to the run's log file (JSON-lines format).
func (s *FileStore) AppendLog(ctx context.Context, runID string, entry []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := ValidateRunID(runID); err != nil {
		return slipwayerrors.Wrap(err, "failed to append run log")
	}
	if _, err := os.Stat(s.runDir(runID)); os.IsNotExist(err) {
		return fmt.Errorf("failed to append run log '%s': %w", runID, slipwayerrors.ErrRunNotFound)
	}

	logPath := filepath.Join(s.runDir(runID), constants.RunLogFileName)
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		return fmt.Errorf("failed to open run log '%s': %w", runID, err)
	}
	defer func() { _ = f.Close() }()

	if len(entry) == 0 || entry[len(entry)-1] != '\n' {
		entry = append(entry, '\n')
	}
	if _, err := f.Write(entry); err != nil {
		return fmt.Errorf("failed to append run log '%s': %w", runID, err)
	}
	return nil
}

// ReadLog returns the raw contents of the run's log file.
// A run with no log yet returns empty content, not an error.
func (s *FileStore) ReadLog(ctx context.Context, runID string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := ValidateRunID(runID); err != nil {
		return nil, slipwayerrors.Wrap(err, "failed to read run log")
	}
	if _, err := os.Stat(s.runDir(runID)); os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read run log '%s': %w", runID, slipwayerrors.ErrRunNotFound)
	}

	data, err := os.ReadFile(filepath.Join(s.runDir(runID), constants.RunLogFileName)) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("failed to read run log '%s': %w", runID, err)
	}
	return data, nil
}

// readRecord reads and parses a run record without locking.
// Callers hold the lock where consistency matters.
func (s *FileStore) readRecord(runID string) (*domain.RunRecord, error) {
	data, err := os.ReadFile(s.recordPath(runID)) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to get run '%s': %w", runID, slipwayerrors.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to read run '%s': %w", runID, err)
	}

	var record domain.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse run '%s': corrupted state file: %w", runID, err)
	}
	return &record, nil
}

// runDir returns the directory for a run.
func (s *FileStore) runDir(runID string) string {
	return filepath.Join(s.home, constants.RunsDir, runID)
}

// recordPath returns the record file path for a run.
func (s *FileStore) recordPath(runID string) string {
	return filepath.Join(s.runDir(runID), constants.RunFileName)
}

// lockPath returns the lock file path for a run.
func (s *FileStore) lockPath(runID string) string {
	return filepath.Join(s.runDir(runID), ".lock")
}

// atomicWrite writes data to a temp file, syncs it, then renames into
// place. Readers never observe a partially written record.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
