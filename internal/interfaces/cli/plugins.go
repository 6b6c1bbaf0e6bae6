package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"scorehub.io/cli/internal/application/orchestrator"
	"scorehub.io/cli/internal/infrastructure/registry"
	"scorehub.io/cli/internal/interfaces/di"
)

func newPluginsCommand(get func() *di.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage scoreboard plugins",
		Long: `Manage the scoreboard's plugin set.

Install, enable, disable, and uninstall plugins. Every state change runs as a
transaction: the scoreboard restarts onto the new plugin set and the change is
rolled back if the process does not come back healthy.`,
		Example: `  # List everything: installed plugins and the remote catalog
  scorehub plugins list

  # Install from a directory or tar.gz package
  scorehub plugins install ./weather-radar.tar.gz

  # Update to a newer package version
  scorehub plugins update ./weather-radar-1.1.0.tar.gz

  # Enable a plugin (and its dependencies)
  scorehub plugins enable weather-radar

  # Disable and uninstall
  scorehub plugins disable weather-radar
  scorehub plugins uninstall weather-radar

  # Refresh the remote plugin index
  scorehub plugins refresh`,
	}

	cmd.AddCommand(newPluginsListCommand(get))
	cmd.AddCommand(newPluginsInstallCommand(get))
	cmd.AddCommand(newPluginsUpdateCommand(get))
	cmd.AddCommand(newPluginsEnableCommand(get))
	cmd.AddCommand(newPluginsDisableCommand(get))
	cmd.AddCommand(newPluginsUninstallCommand(get))
	cmd.AddCommand(newPluginsRefreshCommand(get))
	return cmd
}

func newPluginsListCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed plugins and the remote catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			records, err := c.Orchestrator.ListPlugins()
			if err != nil {
				return err
			}
			index, err := c.Catalog.Entries()
			if err != nil {
				return err
			}
			merged := registry.Merge(index, records)
			fmt.Fprintln(cmd.OutOrStdout(), renderCatalog(merged))
			return nil
		},
	}
}

func newPluginsInstallCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "install <package>",
		Short: "Install a plugin package",
		Long:  `Install a plugin from a package: a directory or tar.gz containing manifest.json and the plugin's files. The plugin starts out disabled.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := registry.OpenPackage(args[0])
			if err != nil {
				return err
			}
			result, err := get().Orchestrator.ApplyChange(cmd.Context(), orchestrator.InstallPlugin{Package: pkg})
			return reportResult(cmd, result, err)
		},
	}
}

func newPluginsUpdateCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "update <package>",
		Short: "Update an installed plugin from a newer package",
		Long:  `Replace an installed plugin with a newer package version in a single transaction. The plugin keeps its enabled or disabled state; on rollback the previous version's files are restored.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := registry.OpenPackage(args[0])
			if err != nil {
				return err
			}
			result, err := get().Orchestrator.ApplyChange(cmd.Context(), orchestrator.UpdatePlugin{Package: pkg})
			return reportResult(cmd, result, err)
		},
	}
}

func newPluginsEnableCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <plugin>",
		Short: "Enable a plugin and its dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := get().Orchestrator.ApplyChange(cmd.Context(), orchestrator.EnablePlugin{ID: args[0]})
			return reportResult(cmd, result, err)
		},
	}
}

func newPluginsDisableCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <plugin>",
		Short: "Disable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := get().Orchestrator.ApplyChange(cmd.Context(), orchestrator.DisablePlugin{ID: args[0]})
			return reportResult(cmd, result, err)
		},
	}
}

func newPluginsUninstallCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <plugin>",
		Short: "Uninstall a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := get().Orchestrator.ApplyChange(cmd.Context(), orchestrator.UninstallPlugin{ID: args[0]})
			return reportResult(cmd, result, err)
		},
	}
}

func newPluginsRefreshCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the remote plugin index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().Catalog.Refresh(cmd.Context(), true); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Plugin index refreshed.")
			return nil
		},
	}
}
