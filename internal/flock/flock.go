// Package flock provides file locking utilities for slipway's state stores.
//
// Every on-disk store (runs, deployments, artifacts, secrets) serializes
// writers through an exclusive lock file next to the state it protects.
// Locks are advisory and non-blocking; Acquire retries until the timeout
// elapses or the context is canceled.
//
// Usage:
//
//	lock, err := flock.Acquire(ctx, path, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = lock.Release() }()
package flock

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	slipwayerrors "github.com/slipwayci/slipway/internal/errors"
)

// retryInterval is the delay between lock acquisition attempts.
const retryInterval = 50 * time.Millisecond

// filePerm is the permission mode for lock files.
const filePerm = 0o600

// Lock represents a held exclusive file lock.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if needed) the lock file at path and acquires an
// exclusive advisory lock on it. It retries every 50ms until the timeout
// elapses, returning ErrLockTimeout wrapped with the path on expiry.
// Context cancellation aborts the retry loop immediately.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G304 -- lock paths are constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		default:
		}

		// LOCK_EX = exclusive lock, LOCK_NB = non-blocking
		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
			return &Lock{f: f}, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("lock %s: %w", path, slipwayerrors.ErrLockTimeout)
		}

		time.Sleep(retryInterval)
	}
}

// TryAcquire attempts to acquire the lock exactly once without retrying.
// It is used for single-flight guards where waiting would be wrong:
// a second deployment to a locked target must fail fast, not queue.
func TryAcquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G304 -- lock paths are constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock %s held elsewhere: %w", path, slipwayerrors.ErrLockTimeout)
	}

	return &Lock{f: f}, nil
}

// Release unlocks and closes the underlying lock file.
// It is safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}

	if err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}

	err := l.f.Close()
	l.f = nil
	return err
}
