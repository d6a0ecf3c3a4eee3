package commands

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vector-ai/vector-mcp-server/internal/config"
)

// ServeCmd creates the command serving MCP over HTTP and SSE.
func ServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over HTTP (SSE stream plus message endpoint)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, log, cleanup, err := newApp(v, "mcp-server")
			if err != nil {
				return err
			}
			defer cleanup()

			gin.SetMode(gin.ReleaseMode)
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			if err := a.RunHTTP(ctx); err != nil {
				log.WithError(err).Error("MCP server stopped")
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address, e.g. :8080 (overrides --port)")
	cmd.Flags().String("port", config.DefaultPort, "Listen port")
	bindFlags(v, cmd.Flags(), map[string]string{
		config.KeyHTTPAddr: "addr",
		config.KeyHTTPPort: "port",
	})
	return cmd
}
