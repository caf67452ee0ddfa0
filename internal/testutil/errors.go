// Package testutil provides testing utilities for slipway.
//
// This package contains mock errors and test helpers used across test files.
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
// These errors are used to simulate various failure scenarios in tests.
var (
	// ErrMockTransport indicates a mock remote transport failure (used in tests).
	ErrMockTransport = errors.New("transport error")

	// ErrMockSupervisor indicates a mock supervisor command failure (used in tests).
	ErrMockSupervisor = errors.New("supervisor command failed")

	// ErrMockStoreUnavailable indicates a mock store is unavailable (used in tests).
	ErrMockStoreUnavailable = errors.New("store unavailable")

	// ErrMockNotFound indicates a mock resource was not found (used in tests).
	ErrMockNotFound = errors.New("not found")

	// ErrMockRunner indicates a mock job runner failure (used in tests).
	ErrMockRunner = errors.New("runner error")
)
