// Package secret provides write-once, read-many named secret storage
// scoped to deployment targets. Plaintext values are kept out of logs:
// the Value type redacts itself in every formatting path, and records
// are stored with owner-only file permissions.
package secret

import (
	"time"
)

// Redacted replaces secret values in any formatted output.
const Redacted = "[REDACTED]"

// Value is a secret's plaintext. It implements Stringer and the JSON
// marshalers so that accidental formatting or structured logging of a
// record never emits the plaintext; persistence uses Plaintext()
// explicitly.
type Value string

// String implements fmt.Stringer and always redacts.
func (v Value) String() string { return Redacted }

// GoString implements fmt.GoStringer (%#v) and always redacts.
func (v Value) GoString() string { return Redacted }

// MarshalJSON redacts the value. The store serializes plaintext through
// a dedicated on-disk representation, never through this method.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Redacted + `"`), nil
}

// Plaintext returns the underlying secret material.
func (v Value) Plaintext() string { return string(v) }

// Record is a stored secret's metadata plus its value.
type Record struct {
	// Name identifies the secret.
	Name string `json:"name"`

	// Value is the secret material. Redacted in all formatted output.
	Value Value `json:"-"`

	// Scopes lists the deployment target names allowed to resolve the
	// secret. Empty means every target may resolve it.
	Scopes []string `json:"scopes,omitempty"`

	// Version starts at 1 and increments on each rotation.
	Version int `json:"version"`

	// CreatedAt is when the secret was first created.
	CreatedAt time.Time `json:"created_at"`

	// RotatedAt is when the value was last rotated (nil if never).
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
}

// InScope reports whether the record may be resolved for the given
// target. An empty scope list admits every target.
func (r *Record) InScope(target string) bool {
	if len(r.Scopes) == 0 {
		return true
	}
	for _, s := range r.Scopes {
		if s == target {
			return true
		}
	}
	return false
}
