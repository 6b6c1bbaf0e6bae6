package domain

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
)

// PluginState is the lifecycle state of an installed plugin.
type PluginState string

const (
	// StateUninstalled is the implicit state of a plugin with no record.
	StateUninstalled PluginState = "uninstalled"
	// StateDisabled means the plugin's files are present but the scoreboard
	// does not load it.
	StateDisabled PluginState = "disabled"
	// StateEnabled means the scoreboard loads the plugin on startup.
	StateEnabled PluginState = "enabled"
	// StateFailed marks a plugin whose last transition was rolled back in a
	// way that left its on-disk files suspect.
	StateFailed PluginState = "failed"
)

// Valid reports whether s is a state this registry can persist.
func (s PluginState) Valid() bool {
	switch s {
	case StateDisabled, StateEnabled, StateFailed:
		return true
	}
	return false
}

// Dependency declares that a plugin requires another plugin at a minimum
// version.
type Dependency struct {
	ID         string `json:"id"`
	MinVersion string `json:"min_version"`
}

// SchemaContribution is a configuration key a plugin adds to the scoreboard's
// effective schema while enabled.
type SchemaContribution struct {
	Key         string   `json:"key"`
	Type        string   `json:"type"`
	Default     any      `json:"default,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// PluginManifest describes a plugin package. Immutable once parsed.
type PluginManifest struct {
	ID           string               `json:"id"`
	Version      string               `json:"version"`
	Description  string               `json:"description,omitempty"`
	EntryPoint   string               `json:"entry_point"`
	Dependencies []Dependency         `json:"dependencies,omitempty"`
	ConfigKeys   []SchemaContribution `json:"config_keys,omitempty"`
}

var pluginIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks the manifest for structural problems. All problems are
// reported as a BadManifestError so install can reject the package before any
// state changes.
func (m PluginManifest) Validate() error {
	if m.ID == "" {
		return &BadManifestError{Reason: "id is required"}
	}
	if !pluginIDPattern.MatchString(m.ID) {
		return &BadManifestError{Reason: fmt.Sprintf("id %q must be lowercase alphanumeric with hyphens or underscores", m.ID)}
	}
	if m.Version == "" {
		return &BadManifestError{Reason: "version is required"}
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return &BadManifestError{Reason: fmt.Sprintf("version %q is not valid semver", m.Version)}
	}
	if m.EntryPoint == "" {
		return &BadManifestError{Reason: "entry_point is required"}
	}
	seen := make(map[string]struct{}, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		if dep.ID == m.ID {
			return &BadManifestError{Reason: "plugin cannot depend on itself"}
		}
		if _, dup := seen[dep.ID]; dup {
			return &BadManifestError{Reason: fmt.Sprintf("dependency %q declared twice", dep.ID)}
		}
		seen[dep.ID] = struct{}{}
		if dep.MinVersion != "" {
			if _, err := semver.NewVersion(dep.MinVersion); err != nil {
				return &BadManifestError{Reason: fmt.Sprintf("dependency %q min version %q is not valid semver", dep.ID, dep.MinVersion)}
			}
		}
	}
	for _, key := range m.ConfigKeys {
		if key.Key == "" {
			return &BadManifestError{Reason: "config key entry missing key path"}
		}
	}
	return nil
}

// SatisfiesDependency reports whether a plugin at version found satisfies a
// dependency on minimum version required. The gate is deliberately simple:
// found must be at least required and share its major version. No range
// algebra.
func SatisfiesDependency(required, found string) (bool, error) {
	if required == "" {
		return true, nil
	}
	req, err := semver.NewVersion(required)
	if err != nil {
		return false, fmt.Errorf("invalid required version %q: %w", required, err)
	}
	got, err := semver.NewVersion(found)
	if err != nil {
		return false, fmt.Errorf("invalid installed version %q: %w", found, err)
	}
	return got.Major() == req.Major() && !got.LessThan(req), nil
}

// PluginRecord is the registry's persistent view of one installed plugin.
type PluginRecord struct {
	Manifest         PluginManifest `json:"manifest"`
	State            PluginState    `json:"state"`
	InstalledVersion string         `json:"installed_version"`
	LastAppliedAt    time.Time      `json:"last_applied_at"`
}

// Clone returns an independent copy of the record.
func (r PluginRecord) Clone() PluginRecord {
	out := r
	out.Manifest.Dependencies = append([]Dependency(nil), r.Manifest.Dependencies...)
	out.Manifest.ConfigKeys = append([]SchemaContribution(nil), r.Manifest.ConfigKeys...)
	return out
}

// SortRecords orders records by plugin identifier, the registry's stable list
// order.
func SortRecords(records []PluginRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Manifest.ID < records[j].Manifest.ID
	})
}

// CloneRecords deep-copies a record slice.
func CloneRecords(records []PluginRecord) []PluginRecord {
	out := make([]PluginRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
