// Package registry implements the file-backed plugin registry: the catalog of
// installed plugins, their lifecycle state, dependency planning, and the
// plugin file namespace on disk.
//
// Canonical records live in plugins.json next to the scoreboard installation,
// in the same shape the display process reads. State transitions are staged
// to a side file during a transaction and only land canonically when the
// orchestrator commits.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"scorehub.io/cli/internal/core/domain"
	"scorehub.io/cli/internal/core/ports"
	"scorehub.io/cli/internal/infrastructure/atomicfile"
)

// recordsFile is the persisted shape of plugins.json.
type recordsFile struct {
	Plugins []domain.PluginRecord `json:"plugins"`
}

// FileRegistry is the on-disk ports.PluginRegistry.
type FileRegistry struct {
	recordsPath string
	examplePath string
	pluginsDir  string
	logger      hclog.Logger
}

var _ ports.PluginRegistry = (*FileRegistry)(nil)

// New creates a registry rooted at the scoreboard directory. Records are kept
// in plugins.json, plugin files under plugins/<id>/.
func New(scoreboardDir string, logger hclog.Logger) *FileRegistry {
	return &FileRegistry{
		recordsPath: filepath.Join(scoreboardDir, "plugins.json"),
		examplePath: filepath.Join(scoreboardDir, "plugins.json.example"),
		pluginsDir:  filepath.Join(scoreboardDir, "plugins"),
		logger:      logger.Named("plugin-registry"),
	}
}

// RecordsPath returns the canonical record file location.
func (r *FileRegistry) RecordsPath() string { return r.recordsPath }

// PluginDir returns the file namespace for one plugin.
func (r *FileRegistry) PluginDir(id string) string {
	return filepath.Join(r.pluginsDir, id)
}

// List returns all known records ordered by identifier.
func (r *FileRegistry) List() ([]domain.PluginRecord, error) {
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	domain.SortRecords(records)
	return records, nil
}

// Get returns the record for id, or domain.ErrPluginNotFound.
func (r *FileRegistry) Get(id string) (domain.PluginRecord, error) {
	records, err := r.load()
	if err != nil {
		return domain.PluginRecord{}, err
	}
	for _, rec := range records {
		if rec.Manifest.ID == id {
			return rec, nil
		}
	}
	return domain.PluginRecord{}, fmt.Errorf("%w: %q", domain.ErrPluginNotFound, id)
}

// CheckInstall verifies a package against the current records without
// touching disk state: duplicate id, manifest validity, unresolved
// dependencies, and filename collisions with other plugins.
func (r *FileRegistry) CheckInstall(pkg ports.PluginPackage) error {
	if err := pkg.Manifest.Validate(); err != nil {
		return err
	}
	records, err := r.load()
	if err != nil {
		return err
	}
	installed := make(map[string]domain.PluginRecord, len(records))
	for _, rec := range records {
		installed[rec.Manifest.ID] = rec
	}
	if _, dup := installed[pkg.Manifest.ID]; dup {
		return fmt.Errorf("%w: %q", domain.ErrDuplicatePlugin, pkg.Manifest.ID)
	}
	for _, dep := range pkg.Manifest.Dependencies {
		if _, ok := installed[dep.ID]; !ok {
			return &domain.MissingDependencyError{Plugin: pkg.Manifest.ID, Dependency: dep.ID}
		}
	}
	return r.checkFileCollisions(pkg, records)
}

// CheckUpdate verifies a package can replace an installed plugin. The version
// must move forward; a version going sideways or backwards means a stale
// package, not an update.
func (r *FileRegistry) CheckUpdate(pkg ports.PluginPackage) error {
	if err := pkg.Manifest.Validate(); err != nil {
		return err
	}
	records, err := r.load()
	if err != nil {
		return err
	}
	installed := make(map[string]domain.PluginRecord, len(records))
	for _, rec := range records {
		installed[rec.Manifest.ID] = rec
	}
	current, ok := installed[pkg.Manifest.ID]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrPluginNotFound, pkg.Manifest.ID)
	}
	newer, err := semver.NewVersion(pkg.Manifest.Version)
	if err != nil {
		return &domain.BadManifestError{Reason: fmt.Sprintf("version %q is not valid semver", pkg.Manifest.Version)}
	}
	have, err := semver.NewVersion(current.InstalledVersion)
	if err != nil {
		return fmt.Errorf("installed version %q of %q is not valid semver", current.InstalledVersion, pkg.Manifest.ID)
	}
	if !newer.GreaterThan(have) {
		return fmt.Errorf("update version %s of %q is not newer than installed %s",
			pkg.Manifest.Version, pkg.Manifest.ID, current.InstalledVersion)
	}
	for _, dep := range pkg.Manifest.Dependencies {
		if _, ok := installed[dep.ID]; !ok {
			return &domain.MissingDependencyError{Plugin: pkg.Manifest.ID, Dependency: dep.ID}
		}
	}
	// Dependents pinned to the current major must still resolve.
	for _, rec := range records {
		if rec.Manifest.ID == pkg.Manifest.ID {
			continue
		}
		for _, dep := range rec.Manifest.Dependencies {
			if dep.ID != pkg.Manifest.ID {
				continue
			}
			ok, err := domain.SatisfiesDependency(dep.MinVersion, pkg.Manifest.Version)
			if err != nil {
				return err
			}
			if !ok {
				return &domain.VersionMismatchError{
					Plugin:     rec.Manifest.ID,
					Dependency: dep.ID,
					Required:   dep.MinVersion,
					Found:      pkg.Manifest.Version,
				}
			}
		}
	}
	return nil
}

// checkFileCollisions rejects a package whose relative paths already exist in
// another plugin's namespace. Plugins share the scoreboard's board-name space,
// so two plugins shipping the same file would shadow each other.
func (r *FileRegistry) checkFileCollisions(pkg ports.PluginPackage, records []domain.PluginRecord) error {
	for _, rec := range records {
		dir := r.PluginDir(rec.Manifest.ID)
		for rel := range pkg.Files {
			if _, err := os.Stat(filepath.Join(dir, filepath.Clean(rel))); err == nil {
				return &domain.FileCollisionError{Path: rel, Owner: rec.Manifest.ID}
			}
		}
	}
	return nil
}

// PlaceFiles copies the package's payload into the plugin's namespace.
func (r *FileRegistry) PlaceFiles(pkg ports.PluginPackage) error {
	dir := r.PluginDir(pkg.Manifest.ID)
	for rel, data := range pkg.Files {
		clean := filepath.Clean(rel)
		if clean == ".." || filepath.IsAbs(clean) || len(clean) > 1 && clean[:2] == ".." {
			return fmt.Errorf("package path %q escapes the plugin namespace", rel)
		}
		dest := filepath.Join(dir, clean)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("failed to create plugin directory: %w", err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("failed to write plugin file %q: %w", rel, err)
		}
	}
	r.logger.Info("placed plugin files", "plugin", pkg.Manifest.ID, "files", len(pkg.Files))
	return nil
}

// RemoveFiles deletes a plugin's file namespace.
func (r *FileRegistry) RemoveFiles(id string) error {
	dir := r.PluginDir(id)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove plugin files for %q: %w", id, err)
	}
	return nil
}

func (r *FileRegistry) stashDir(id string) string {
	return r.PluginDir(id) + ".prev"
}

// StashFiles moves a plugin's namespace aside for an update. A stash left
// over from an interrupted earlier update is discarded first.
func (r *FileRegistry) StashFiles(id string) error {
	stash := r.stashDir(id)
	if err := os.RemoveAll(stash); err != nil {
		return fmt.Errorf("failed to clear old stash for %q: %w", id, err)
	}
	if err := os.Rename(r.PluginDir(id), stash); err != nil {
		return fmt.Errorf("failed to stash plugin files for %q: %w", id, err)
	}
	return nil
}

// RestoreFiles replaces the plugin's namespace with the stashed one.
func (r *FileRegistry) RestoreFiles(id string) error {
	dir := r.PluginDir(id)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear plugin files for %q: %w", id, err)
	}
	if err := os.Rename(r.stashDir(id), dir); err != nil {
		return fmt.Errorf("failed to restore stashed files for %q: %w", id, err)
	}
	return nil
}

// DropStash removes the stashed namespace after a committed update. Best
// effort.
func (r *FileRegistry) DropStash(id string) {
	if err := os.RemoveAll(r.stashDir(id)); err != nil {
		r.logger.Warn("failed to remove stashed plugin files", "plugin", id, "error", err)
	}
}

// PlanEnable computes the dependency-ordered enable plan for id using an
// iterative depth-first traversal with unvisited/visiting/visited marking.
// The first cycle found is reported with the identifier chain that closes it.
func (r *FileRegistry) PlanEnable(id string) (ports.EnablePlan, error) {
	records, err := r.load()
	if err != nil {
		return ports.EnablePlan{}, err
	}
	byID := make(map[string]domain.PluginRecord, len(records))
	for _, rec := range records {
		byID[rec.Manifest.ID] = rec
	}
	if _, ok := byID[id]; !ok {
		return ports.EnablePlan{}, fmt.Errorf("%w: %q", domain.ErrPluginNotFound, id)
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	mark := make(map[string]int, len(byID))
	var order []string

	// Explicit stack instead of recursion: manifests are untrusted input and
	// a deep chain must not blow the stack.
	type frame struct {
		id   string
		next int
	}
	stack := []frame{{id: id}}
	chain := []string{id}
	mark[id] = visiting

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		rec := byID[top.id]

		if top.next < len(rec.Manifest.Dependencies) {
			dep := rec.Manifest.Dependencies[top.next]
			top.next++

			depRec, ok := byID[dep.ID]
			if !ok {
				return ports.EnablePlan{}, &domain.MissingDependencyError{Plugin: rec.Manifest.ID, Dependency: dep.ID}
			}
			ok, err := domain.SatisfiesDependency(dep.MinVersion, depRec.InstalledVersion)
			if err != nil {
				return ports.EnablePlan{}, err
			}
			if !ok {
				return ports.EnablePlan{}, &domain.VersionMismatchError{
					Plugin:     rec.Manifest.ID,
					Dependency: dep.ID,
					Required:   dep.MinVersion,
					Found:      depRec.InstalledVersion,
				}
			}

			switch mark[dep.ID] {
			case visiting:
				return ports.EnablePlan{}, &domain.CyclicDependencyError{Chain: closeCycle(chain, dep.ID)}
			case unvisited:
				mark[dep.ID] = visiting
				stack = append(stack, frame{id: dep.ID})
				chain = append(chain, dep.ID)
			}
			continue
		}

		mark[top.id] = visited
		order = append(order, top.id)
		stack = stack[:len(stack)-1]
		chain = chain[:len(chain)-1]
	}

	return ports.EnablePlan{Target: id, Order: order}, nil
}

// closeCycle trims the visiting chain to start at the repeated identifier and
// appends it again, yielding e.g. [a b a].
func closeCycle(chain []string, repeat string) []string {
	start := 0
	for i, id := range chain {
		if id == repeat {
			start = i
			break
		}
	}
	out := append([]string(nil), chain[start:]...)
	return append(out, repeat)
}

// PlanDisable refuses to disable a plugin while an enabled dependent exists.
func (r *FileRegistry) PlanDisable(id string) (ports.DisablePlan, error) {
	dependents, err := r.enabledDependents(id)
	if err != nil {
		return ports.DisablePlan{}, err
	}
	if len(dependents) > 0 {
		return ports.DisablePlan{}, &domain.HasDependentsError{Plugin: id, Dependents: dependents}
	}
	return ports.DisablePlan{Target: id}, nil
}

// CheckUninstall refuses to uninstall while any enabled plugin depends on id.
func (r *FileRegistry) CheckUninstall(id string) error {
	dependents, err := r.enabledDependents(id)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		return &domain.HasDependentsError{Plugin: id, Dependents: dependents}
	}
	return nil
}

func (r *FileRegistry) enabledDependents(id string) ([]string, error) {
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	found := false
	var dependents []string
	for _, rec := range records {
		if rec.Manifest.ID == id {
			found = true
			continue
		}
		if rec.State != domain.StateEnabled {
			continue
		}
		for _, dep := range rec.Manifest.Dependencies {
			if dep.ID == id {
				dependents = append(dependents, rec.Manifest.ID)
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", domain.ErrPluginNotFound, id)
	}
	sort.Strings(dependents)
	return dependents, nil
}

// StageRecords persists a candidate record set to a side file.
func (r *FileRegistry) StageRecords(records []domain.PluginRecord) (ports.RecordStage, error) {
	id := uuid.NewString()
	path := fmt.Sprintf("%s.staged.%s", r.recordsPath, id)
	sorted := domain.CloneRecords(records)
	domain.SortRecords(sorted)
	data, err := json.MarshalIndent(recordsFile{Plugins: sorted}, "", "  ")
	if err != nil {
		return ports.RecordStage{}, fmt.Errorf("failed to encode plugin records: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ports.RecordStage{}, fmt.Errorf("failed to create records directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ports.RecordStage{}, fmt.Errorf("failed to write staged records: %w", err)
	}
	return ports.RecordStage{ID: id, Path: path}, nil
}

// CommitRecords atomically replaces plugins.json with the staged set.
func (r *FileRegistry) CommitRecords(stage ports.RecordStage) error {
	data, err := os.ReadFile(stage.Path)
	if err != nil {
		return fmt.Errorf("failed to read staged records %s: %w", stage.ID, err)
	}
	if err := atomicfile.Write(r.recordsPath, data, 0o644); err != nil {
		return err
	}
	r.logger.Info("committed plugin records", "stage", stage.ID)
	r.DiscardRecords(stage)
	return nil
}

// DiscardRecords removes the staged set. Best effort.
func (r *FileRegistry) DiscardRecords(stage ports.RecordStage) {
	if stage.Path == "" {
		return
	}
	if err := os.Remove(stage.Path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to remove staged records", "stage", stage.ID, "error", err)
	}
}

// load reads the canonical records, restoring from plugins.json.example when
// the file is missing, empty, or corrupt (long-standing hub behavior), and
// seeding an empty record set as the last resort.
func (r *FileRegistry) load() ([]domain.PluginRecord, error) {
	records, err := readRecords(r.recordsPath)
	if err == nil {
		return records, nil
	}
	r.logger.Warn("plugin records unreadable, restoring", "path", r.recordsPath, "error", err)

	if example, exErr := os.ReadFile(r.examplePath); exErr == nil {
		if err := atomicfile.Write(r.recordsPath, example, 0o644); err != nil {
			return nil, err
		}
		return readRecords(r.recordsPath)
	}

	empty, _ := json.MarshalIndent(recordsFile{Plugins: []domain.PluginRecord{}}, "", "  ")
	if err := os.MkdirAll(filepath.Dir(r.recordsPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create records directory: %w", err)
	}
	if err := atomicfile.Write(r.recordsPath, empty, 0o644); err != nil {
		return nil, err
	}
	return []domain.PluginRecord{}, nil
}

func readRecords(path string) ([]domain.PluginRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("record file %s is empty", path)
	}
	var file recordsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return file.Plugins, nil
}
