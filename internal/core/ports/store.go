// Package ports defines the interfaces between the orchestration core and its
// collaborators: the config store, the plugin registry, and the process
// supervisor. Infrastructure packages provide the implementations; the
// orchestrator depends only on these contracts.
package ports

import (
	"scorehub.io/cli/internal/core/domain"
	"scorehub.io/cli/internal/core/schema"
)

// StagedHandle identifies one uncommitted candidate document held by the
// store. Only the transaction that created a handle may commit or discard it.
type StagedHandle struct {
	// ID correlates the handle with its temp file.
	ID string
	// Path is the staged file's location, distinct from the canonical path.
	Path string
	// BaseChecksum is the checksum of the canonical document at stage time;
	// commit refuses the handle if the canonical document has moved since.
	BaseChecksum string
}

// ConfigStore owns the canonical configuration document on disk.
//
// Read never observes staged state: readers see pre-transaction truth until a
// commit lands. Commit follows write-temp, fsync, rename, fsync-dir
// discipline, so on any failure the canonical document is unchanged.
type ConfigStore interface {
	// Read returns the current canonical document. It fails with
	// domain.ErrStoreUnavailable when the backing file is missing or corrupt;
	// the caller must Seed defaults in that case.
	Read() (domain.ConfigDocument, error)

	// Seed writes an initial canonical document. It refuses to overwrite an
	// existing readable document.
	Seed(doc domain.ConfigDocument) error

	// Validate checks a candidate against the given effective schema. Pure;
	// no I/O.
	Validate(candidate domain.ConfigDocument, effective *schema.Schema) error

	// Stage writes the candidate to a temporary location without affecting
	// Read.
	Stage(candidate domain.ConfigDocument) (StagedHandle, error)

	// Commit atomically replaces the canonical document with the staged one.
	// It fails with domain.ErrStaleStage when the canonical document changed
	// after the handle was created.
	Commit(handle StagedHandle) error

	// Discard removes the staged copy. Best effort: an underlying remove
	// failure is logged, never fatal.
	Discard(handle StagedHandle)

	// CanonicalPath returns the location of the canonical document, for
	// display and watching.
	CanonicalPath() string
}
