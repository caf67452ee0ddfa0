package domain

import "time"

// ArtifactReference is an opaque content handle plus metadata for a stored
// build output. The content itself is owned by the artifact store; run
// records and deployment requests hold references, never copies.
type ArtifactReference struct {
	// RunID is the run that published the artifact.
	RunID string `json:"run_id"`

	// Digest is the sha256 content address, in "sha256:<hex>" form.
	Digest string `json:"digest"`

	// Name is the original filename of the published file.
	Name string `json:"name"`

	// Size is the content length in bytes.
	Size int64 `json:"size"`

	// CreatedAt is when the artifact was stored.
	CreatedAt time.Time `json:"created_at"`
}
