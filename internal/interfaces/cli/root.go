// Package cli is the caller-facing operation surface of the hub: cobra
// commands over the orchestrator, the plugin catalog, and the supervisor.
package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"scorehub.io/cli/internal/interfaces/di"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// NewRootCommand builds the scorehub command tree. The container is
// constructed lazily in PersistentPreRunE so flag overrides apply before any
// component reads settings.
func NewRootCommand() *cobra.Command {
	var container *di.Container

	rootCmd := &cobra.Command{
		Use:   "scorehub",
		Short: "Scorehub - LED scoreboard control hub",
		Long: `Scorehub is the control plane for a supervised LED scoreboard process.

It edits the scoreboard's configuration and plugin set transactionally: every
change is staged, the scoreboard is restarted onto it, its health is verified,
and the change is kept only if the process comes back healthy. A failed change
rolls back to the previous configuration automatically.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debugFlag, _ := cmd.Flags().GetBool("debug")
			settingsPath, _ := cmd.Flags().GetString("settings")
			scoreboardDir, _ := cmd.Flags().GetString("scoreboard-dir")

			var err error
			container, err = di.NewContainer(di.Options{
				SettingsPath:  settingsPath,
				ScoreboardDir: scoreboardDir,
				Debug:         debugFlag,
			})
			if err != nil {
				return err
			}
			return container.EnsureSeeded()
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("settings", "", "Settings file path (default is ~/.config/scorehub/settings.toml)")
	rootCmd.PersistentFlags().String("scoreboard-dir", "", "Path to the scoreboard installation (overrides settings)")

	get := func() *di.Container { return container }
	rootCmd.AddCommand(newConfigCommand(get))
	rootCmd.AddCommand(newPluginsCommand(get))
	rootCmd.AddCommand(newStatusCommand(get))
	rootCmd.AddCommand(newLogsCommand(get))
	rootCmd.AddCommand(newMQTTTestCommand())

	return rootCmd
}

func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Execute runs the root command under the given context. Cancellation
// reaches every in-flight supervisor call and catalog download.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}
