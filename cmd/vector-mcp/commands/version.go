package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vector-ai/vector-mcp-server/internal/version"
)

// VersionCmd creates the version command.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
