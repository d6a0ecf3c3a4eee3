package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// StdioCmd creates the command serving one MCP connection on stdin and
// stdout. Logs never go to stdout.
func StdioCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve MCP over stdin/stdout (newline-delimited JSON)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, log, cleanup, err := newApp(v, "mcp-stdio")
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			if err := a.RunStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				log.WithError(err).Error("stdio connection failed")
				return err
			}
			return nil
		},
	}
}
