package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"scorehub.io/cli/internal/application/orchestrator"
	"scorehub.io/cli/internal/core/domain"
	"scorehub.io/cli/internal/infrastructure/registry"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// renderCatalog lays out the merged plugin catalog as a fixed-width table.
func renderCatalog(entries []registry.CatalogEntry) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-24s %-12s %-10s %s", "NAME", "VERSION", "STATUS", "DESCRIPTION")))
	b.WriteString("\n")
	if len(entries) == 0 {
		b.WriteString(dimStyle.Render("no plugins known; try 'scorehub plugins refresh'"))
		return b.String()
	}
	for _, e := range entries {
		version := e.Version
		if version == "" {
			version = "-"
		}
		line := fmt.Sprintf("%-24s %-12s %-10s %s", e.Name, version, e.Status, e.Description)
		b.WriteString(styleForStatus(e.Status).Render(line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func styleForStatus(status string) lipgloss.Style {
	switch status {
	case string(domain.StateEnabled):
		return enabledStyle
	case string(domain.StateDisabled):
		return disabledStyle
	case string(domain.StateFailed):
		return failedStyle
	default:
		return dimStyle
	}
}

// reportResult prints a transaction outcome. Errors pass through so the root
// command sets the exit code; the transaction id is included for correlation
// with the hub log.
func reportResult(cmd *cobra.Command, result orchestrator.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s failed (tx %d, %s): %w", result.Mutation, result.TxID, result.Status, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: committed (tx %d)\n", result.Mutation, result.TxID)
	return nil
}
