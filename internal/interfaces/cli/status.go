package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scorehub.io/cli/internal/core/ports"
	"scorehub.io/cli/internal/interfaces/di"
)

func newStatusCommand(get func() *di.Container) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show scoreboard and supervisor status",
		Long: `Status reports the scoreboard version, supervisor reachability, and the
state of every supervised process. With --watch it stays open and refreshes
whenever the configuration changes on disk or the process state moves.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			if watch {
				return runWatch(cmd, c)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(cmd.Context(), c))
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Stay open and refresh on changes")
	return cmd
}

// renderStatus produces the one-shot status report. Supervisor errors degrade
// to an unreachable line rather than failing the command; status is a
// diagnostic surface and must work when the supervisor is down.
func renderStatus(ctx context.Context, c *di.Container) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Scoreboard"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Version:    %s\n", scoreboardVersion(c))
	fmt.Fprintf(&b, "  Hub:        %s\n", Version)
	fmt.Fprintf(&b, "  Directory:  %s\n", c.Settings.ScoreboardDir)

	b.WriteString(headerStyle.Render("Supervisor"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Endpoint:   %s:%d\n", c.Settings.Supervisor.Host, c.Settings.Supervisor.Port)
	if !c.Supervisor.Reachable() {
		b.WriteString(failedStyle.Render("  Unreachable"))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(enabledStyle.Render("  Reachable"))
	b.WriteString("\n")

	infos, err := c.Supervisor.AllInfo(ctx)
	if err != nil {
		fmt.Fprintf(&b, "  Processes:  error: %v\n", err)
		return b.String()
	}
	b.WriteString(headerStyle.Render("Processes"))
	b.WriteString("\n")
	for _, info := range infos {
		b.WriteString(renderProcessLine(info, c.Settings.Supervisor.Process))
	}
	return b.String()
}

func renderProcessLine(info ports.ProcessInfo, managed string) string {
	marker := " "
	if info.Name == managed {
		marker = "*"
	}
	line := fmt.Sprintf("  %s %-20s %-10s %s", marker, info.Name, info.RawState, info.Description)
	switch info.State {
	case ports.ProcessRunning:
		return enabledStyle.Render(line) + "\n"
	case ports.ProcessStopped:
		return failedStyle.Render(line) + "\n"
	default:
		return dimStyle.Render(line) + "\n"
	}
}

func scoreboardVersion(c *di.Container) string {
	raw, err := os.ReadFile(c.Settings.VersionPath())
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(raw))
}
