/*
Package main is the entry point of the Vector AI MCP bridge.
*/
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vector-ai/vector-mcp-server/cmd/vector-mcp/commands"
)

func main() {
	_ = godotenv.Load()
	cobra.EnableCommandSorting = false

	rootCmd := commands.RootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
