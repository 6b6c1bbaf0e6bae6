package ports

import "scorehub.io/cli/internal/core/domain"

// EnablePlan is the ordered set of records that must be enabled, dependencies
// first, for the requested plugin to become enabled. The requested plugin is
// always last.
type EnablePlan struct {
	Target string
	// Order lists plugin identifiers in enable order, transitive
	// dependencies included. Already-enabled plugins are included so the
	// orchestrator can verify the whole chain when staging.
	Order []string
}

// DisablePlan authorizes disabling one plugin after the registry verified no
// enabled dependent exists.
type DisablePlan struct {
	Target string
}

// PluginPackage is an opened plugin package: a parsed manifest plus the
// package's file payload keyed by relative path. Bytes are opaque beyond the
// manifest.
type PluginPackage struct {
	Manifest domain.PluginManifest
	Files    map[string][]byte
}

// RecordStage identifies an uncommitted plugin-record set persisted to the
// registry's side file during a transaction.
type RecordStage struct {
	ID   string
	Path string
}

// PluginRegistry owns the catalog of installed plugins and their lifecycle
// state. All state transitions flow through orchestrator transactions; the
// registry itself only plans, stages, and persists.
type PluginRegistry interface {
	// List returns all known records ordered by identifier.
	List() ([]domain.PluginRecord, error)

	// Get returns the record for one identifier, or
	// domain.ErrPluginNotFound.
	Get(id string) (domain.PluginRecord, error)

	// CheckInstall verifies a package can be installed against the current
	// records: no duplicate id, valid manifest, every declared dependency
	// resolving to an installed plugin, and no filename collisions with
	// other plugins' files.
	CheckInstall(pkg PluginPackage) error

	// CheckUpdate verifies a package can replace an installed plugin: the
	// record exists, the manifest is valid, the version moves forward, and
	// every dependent's version constraint still holds against the new
	// version.
	CheckUpdate(pkg PluginPackage) error

	// PlaceFiles copies the package's files into the plugin's namespace
	// under the plugins directory. Called during the Applying phase;
	// RemoveFiles undoes it on rollback.
	PlaceFiles(pkg PluginPackage) error

	// RemoveFiles deletes a plugin's file namespace.
	RemoveFiles(id string) error

	// StashFiles moves a plugin's namespace aside so an update can place
	// the replacement payload. RestoreFiles puts it back on rollback;
	// DropStash discards it after commit.
	StashFiles(id string) error

	// RestoreFiles replaces the plugin's namespace with the stashed one.
	RestoreFiles(id string) error

	// DropStash removes the stashed namespace. Best effort.
	DropStash(id string)

	// PlanEnable computes the dependency-ordered enable plan for id. Pure
	// read: detects cycles (domain.CyclicDependencyError with the offending
	// chain), missing dependencies, and version mismatches.
	PlanEnable(id string) (EnablePlan, error)

	// PlanDisable refuses to disable a plugin while an enabled dependent
	// exists (domain.HasDependentsError).
	PlanDisable(id string) (DisablePlan, error)

	// CheckUninstall refuses to uninstall while any enabled plugin depends
	// on id.
	CheckUninstall(id string) error

	// StageRecords persists a candidate record set to a side file, leaving
	// the canonical records untouched.
	StageRecords(records []domain.PluginRecord) (RecordStage, error)

	// CommitRecords atomically replaces the canonical record file with the
	// staged set.
	CommitRecords(stage RecordStage) error

	// DiscardRecords removes the staged set. Best effort.
	DiscardRecords(stage RecordStage)
}
