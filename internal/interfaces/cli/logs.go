package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scorehub.io/cli/internal/interfaces/di"
)

func newLogsCommand(get func() *di.Container) *cobra.Command {
	var bytes int

	cmd := &cobra.Command{
		Use:   "logs [process]",
		Short: "Show the tail of a supervised process's stderr log",
		Long:  `Show the tail of a supervised process's stderr log. Defaults to the scoreboard process.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			process := c.Settings.Supervisor.Process
			if len(args) == 1 {
				process = args[0]
			}
			tail, err := c.Supervisor.TailStderr(cmd.Context(), process, bytes)
			if err != nil {
				return fmt.Errorf("failed to read process log: %w", err)
			}
			if strings.TrimSpace(tail) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "(log is empty)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(tail, "\n"))
			return nil
		},
	}

	cmd.Flags().IntVar(&bytes, "bytes", 4096, "How many trailing bytes to fetch")
	return cmd
}
