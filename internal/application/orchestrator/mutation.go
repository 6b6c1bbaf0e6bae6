package orchestrator

import (
	"fmt"

	"scorehub.io/cli/internal/core/ports"
)

// Mutation is one intent against the scoreboard's configuration or plugin
// set. Exactly one mutation is applied per transaction.
type Mutation interface {
	// Describe names the mutation for logging and results.
	Describe() string

	isMutation()
}

// SetConfigValues assigns dotted-path configuration values.
type SetConfigValues struct {
	Values map[string]any
}

func (m SetConfigValues) Describe() string {
	return fmt.Sprintf("set %d config value(s)", len(m.Values))
}
func (SetConfigValues) isMutation() {}

// EnablePlugin enables a plugin and, transitively, its dependencies.
type EnablePlugin struct {
	ID string
}

func (m EnablePlugin) Describe() string { return "enable plugin " + m.ID }
func (EnablePlugin) isMutation() {}

// DisablePlugin disables a plugin. Its contributed config values remain in
// the document but stop being enforced.
type DisablePlugin struct {
	ID string
}

func (m DisablePlugin) Describe() string { return "disable plugin " + m.ID }
func (DisablePlugin) isMutation() {}

// InstallPlugin registers a new plugin in the disabled state and places its
// files.
type InstallPlugin struct {
	Package ports.PluginPackage
}

func (m InstallPlugin) Describe() string { return "install plugin " + m.Package.Manifest.ID }
func (InstallPlugin) isMutation() {}

// UpdatePlugin replaces an installed plugin with a newer package version in a
// single transaction, preserving its enabled/disabled state.
type UpdatePlugin struct {
	Package ports.PluginPackage
}

func (m UpdatePlugin) Describe() string { return "update plugin " + m.Package.Manifest.ID }
func (UpdatePlugin) isMutation() {}

// UninstallPlugin removes a plugin's record and files. Only permitted when no
// enabled plugin depends on it.
type UninstallPlugin struct {
	ID string
}

func (m UninstallPlugin) Describe() string { return "uninstall plugin " + m.ID }
func (UninstallPlugin) isMutation() {}
