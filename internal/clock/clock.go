// Package clock provides an abstraction for time operations to improve testability.
// Instead of calling time.Now() directly, code that timestamps state transitions
// or polls for liveness can use the Clock interface, which can be frozen in tests
// to control time-dependent behavior.
package clock

import "time"

// Clock is an interface for time operations.
// This allows code to be tested with mock clocks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}

// Frozen implements Clock with a fixed time, advanced manually.
// Useful for testing retention eviction and verification timeouts.
type Frozen struct {
	t time.Time
}

// NewFrozen creates a Frozen clock pinned to t.
func NewFrozen(t time.Time) *Frozen {
	return &Frozen{t: t}
}

// Now returns the frozen time.
func (f *Frozen) Now() time.Time {
	return f.t
}

// Advance moves the frozen clock forward by d.
func (f *Frozen) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}

// Ensure Frozen implements Clock.
var _ Clock = (*Frozen)(nil)
