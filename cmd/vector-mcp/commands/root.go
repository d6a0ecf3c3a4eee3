/*
Package commands implements the subcommands of the vector-mcp binary.
*/
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vector-ai/vector-mcp-server/internal/app"
	"github.com/vector-ai/vector-mcp-server/internal/config"
	"github.com/vector-ai/vector-mcp-server/internal/logging"
)

// RootCmd creates the root command with every subcommand attached.
func RootCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "vector-mcp",
		Short: "MCP bridge exposing the Vector AI sports API as tools",
		Long: `vector-mcp speaks the Model Context Protocol to AI clients and turns
tool calls into requests against the Vector AI Resource API.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("api-url", config.DefaultUpstreamURL, "Resource API base URL")
	flags.String("api-timeout", config.DefaultUpstreamTimeout.String(), "Resource API call timeout (10s to 30s)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("log-dir", "", "Write logs to <dir>/<command>.log instead of stderr")
	bindFlags(v, flags, map[string]string{
		config.KeyUpstreamURL:     "api-url",
		config.KeyUpstreamTimeout: "api-timeout",
		config.KeyLogLevel:        "log-level",
		config.KeyLogFormat:       "log-format",
		config.KeyLogDir:          "log-dir",
	})

	cmd.AddCommand(
		ServeCmd(v),
		StdioCmd(v),
		ToolsCmd(),
		CallCmd(),
		VersionCmd(),
	)
	return cmd
}

// bindFlags lets flags override environment values for the given keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

// setup loads the configuration and the logger of a long-running command.
func setup(v *viper.Viper, component string) (config.Config, *logrus.Entry, func(), error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log, cleanup, err := logging.New(component, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Dir:    cfg.LogDir,
	})
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, log, cleanup, nil
}

// signalContext ends on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newApp(v *viper.Viper, component string) (*app.App, *logrus.Entry, func(), error) {
	cfg, log, cleanup, err := setup(v, component)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := app.New(cfg, log)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return a, log, cleanup, nil
}
