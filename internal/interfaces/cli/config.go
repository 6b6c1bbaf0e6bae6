package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scorehub.io/cli/internal/application/orchestrator"
	"scorehub.io/cli/internal/interfaces/di"
)

func newConfigCommand(get func() *di.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change the scoreboard configuration",
		Long: `Read and change the scoreboard's configuration document.

Changes go through a full transaction: the new document is validated, the
scoreboard is restarted onto it, and the change is rolled back automatically
if the process does not come back healthy.`,
		Example: `  # Show the full configuration
  scorehub config show

  # Read one value
  scorehub config get display.brightness

  # Change values (restarts the scoreboard)
  scorehub config set display.brightness=60 preferences.time_format=24h

  # Validate the canonical document without changing anything
  scorehub config validate`,
	}

	cmd.AddCommand(newConfigShowCommand(get))
	cmd.AddCommand(newConfigGetCommand(get))
	cmd.AddCommand(newConfigSetCommand(get))
	cmd.AddCommand(newConfigValidateCommand(get))
	return cmd
}

func newConfigShowCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the canonical configuration document",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := get().Orchestrator.ReadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(doc.Bytes()))
			return nil
		},
	}
}

func newConfigGetCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read one configuration value by dotted path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := get().Orchestrator.ReadConfig()
			if err != nil {
				return err
			}
			value, ok := doc.Get(args[0])
			if !ok {
				return fmt.Errorf("key %q not set", args[0])
			}
			out, err := json.Marshal(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newConfigSetCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key=value> [key=value...]",
		Short: "Change configuration values and restart the scoreboard",
		Long: `Set one or more dotted-path configuration values.

Values are parsed as JSON when possible (numbers, booleans, arrays) and fall
back to plain strings. The whole batch is applied in one transaction.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]any, len(args))
			for _, arg := range args {
				key, raw, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("argument %q is not key=value", arg)
				}
				values[key] = parseValue(raw)
			}
			result, err := get().Orchestrator.ApplyChange(cmd.Context(), orchestrator.SetConfigValues{Values: values})
			return reportResult(cmd, result, err)
		},
	}
}

func newConfigValidateCommand(get func() *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the canonical document against the effective schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			doc, err := c.Orchestrator.ReadConfig()
			if err != nil {
				return err
			}
			effective, err := c.Orchestrator.EffectiveSchema()
			if err != nil {
				return err
			}
			if err := c.Store.Validate(doc, effective); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
			return nil
		},
	}
}

// parseValue interprets a CLI value: JSON first (numbers, booleans, arrays,
// quoted strings), bare string otherwise.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
