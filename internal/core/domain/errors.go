package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across the core. Callers match these with errors.Is.
var (
	// ErrStoreUnavailable means the canonical config file is missing or
	// unreadable; the caller must seed defaults before anything else works.
	ErrStoreUnavailable = errors.New("config store unavailable")

	// ErrStaleStage means the canonical document changed after the staged
	// copy was taken; the commit is refused and must be retried from a fresh
	// read.
	ErrStaleStage = errors.New("staged document is stale")

	// ErrTransactionBusy means another applyChange is in flight for the same
	// target process. Callers retry after the in-flight transaction resolves.
	ErrTransactionBusy = errors.New("another transaction is in progress")

	// ErrPluginNotFound means no record exists for the requested identifier.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrDuplicatePlugin means an install collides with an existing record.
	ErrDuplicatePlugin = errors.New("plugin already installed")

	// ErrSupervisorUnreachable means the supervisor daemon did not answer.
	ErrSupervisorUnreachable = errors.New("supervisor unreachable")
)

// ValidationError reports one schema violation in a candidate document.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field %q: %s", e.Field, e.Reason)
}

// ValidationErrors aggregates every violation found in one validation pass.
type ValidationErrors struct {
	Errors []ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	parts := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		parts[i] = v.Error()
	}
	return fmt.Sprintf("%d config validation errors: %s", len(e.Errors), strings.Join(parts, "; "))
}

// BadManifestError reports a structurally invalid plugin manifest.
type BadManifestError struct {
	Reason string
}

func (e *BadManifestError) Error() string {
	return "bad plugin manifest: " + e.Reason
}

// FileCollisionError reports that an installing plugin would overwrite a file
// owned by another plugin.
type FileCollisionError struct {
	Path  string
	Owner string
}

func (e *FileCollisionError) Error() string {
	return fmt.Sprintf("file %q already owned by plugin %q", e.Path, e.Owner)
}

// MissingDependencyError reports a dependency that does not resolve to an
// installed plugin.
type MissingDependencyError struct {
	Plugin     string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("plugin %q requires %q, which is not installed", e.Plugin, e.Dependency)
}

// VersionMismatchError reports a dependency present at an incompatible
// version.
type VersionMismatchError struct {
	Plugin     string
	Dependency string
	Required   string
	Found      string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("plugin %q requires %q >= %s (same major), found %s",
		e.Plugin, e.Dependency, e.Required, e.Found)
}

// CyclicDependencyError reports a cycle in the dependency graph. Chain is the
// identifier path that closes the cycle, e.g. [a b a].
type CyclicDependencyError struct {
	Chain []string
}

func (e *CyclicDependencyError) Error() string {
	return "dependency cycle: " + strings.Join(e.Chain, " -> ")
}

// HasDependentsError refuses an uninstall or disable while enabled dependents
// exist.
type HasDependentsError struct {
	Plugin     string
	Dependents []string
}

func (e *HasDependentsError) Error() string {
	return fmt.Sprintf("plugin %q has enabled dependents: %s", e.Plugin, strings.Join(e.Dependents, ", "))
}

// RestartError reports a failed restart request, before any verification ran.
// Canonical state is untouched when this surfaces.
type RestartError struct {
	Process string
	Timeout bool
	Err     error
}

func (e *RestartError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("restart of %q timed out: %v", e.Process, e.Err)
	}
	return fmt.Sprintf("restart of %q failed: %v", e.Process, e.Err)
}

func (e *RestartError) Unwrap() error { return e.Err }

// HealthCheckFailedError reports that the restarted process never verified
// healthy. RollbackRestarted tells the caller whether the restart back to the
// previous configuration succeeded; when it is false the caller should treat
// the situation as UnrecoverableError instead.
type HealthCheckFailedError struct {
	Attempts          int
	Err               error
	RollbackRestarted bool
}

func (e *HealthCheckFailedError) Error() string {
	return fmt.Sprintf("health check failed after %d attempts (rolled back, restart ok=%t): %v",
		e.Attempts, e.RollbackRestarted, e.Err)
}

func (e *HealthCheckFailedError) Unwrap() error { return e.Err }

// SnapshotRestoreError means a rollback could not put the pre-transaction
// snapshot back on disk. Cause is the failure that triggered the rollback;
// RestoreErr is the restore failure itself. Canonical state must be treated
// as suspect until an operator checks it.
type SnapshotRestoreError struct {
	Cause      error
	RestoreErr error
}

func (e *SnapshotRestoreError) Error() string {
	return fmt.Sprintf("%v; restoring pre-transaction snapshot also failed: %v", e.Cause, e.RestoreErr)
}

func (e *SnapshotRestoreError) Unwrap() error { return e.Cause }

// UnrecoverableError means the rollback restart itself failed: canonical
// state was restored on disk but the running process could not be brought
// back to it. Operator intervention is required; the orchestrator does not
// retry further within the same call.
type UnrecoverableError struct {
	Cause       error
	RollbackErr error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("unrecoverable: %v; rollback restart also failed: %v", e.Cause, e.RollbackErr)
}

func (e *UnrecoverableError) Unwrap() error { return e.Cause }
