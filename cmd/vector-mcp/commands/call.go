package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vector-ai/vector-mcp-server/internal/mcpclient"
)

// DefaultServerURL is where call and tools --server look for a bridge.
const DefaultServerURL = "http://localhost:8080"

// CallCmd creates the command invoking one tool on a running bridge.
func CallCmd() *cobra.Command {
	var serverURL, params string
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Call a tool on a running bridge and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(params)) {
				return fmt.Errorf("--params is not valid JSON: %s", params)
			}
			res, err := mcpclient.New(serverURL, nil).CallTool(cmd.Context(), args[0], json.RawMessage(params))
			if err != nil {
				return err
			}
			for _, part := range res.Content {
				fmt.Fprintln(cmd.OutOrStdout(), part.Text)
			}
			if res.IsError {
				return errors.New("tool call failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", DefaultServerURL, "Base URL of the bridge")
	cmd.Flags().StringVarP(&params, "params", "p", "{}", "JSON object of tool arguments")
	return cmd
}
