package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vector-ai/vector-mcp-server/internal/catalog"
	"github.com/vector-ai/vector-mcp-server/internal/mcp"
	"github.com/vector-ai/vector-mcp-server/internal/mcpclient"
	"github.com/vector-ai/vector-mcp-server/internal/protocol"
)

// ToolsCmd creates the command listing the embedded tool catalog.
func ToolsCmd() *cobra.Command {
	var (
		asJSON    bool
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools exposed to MCP clients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if serverURL != "" {
				descriptors, err := mcpclient.New(serverURL, nil).ListTools(cmd.Context())
				if err != nil {
					return err
				}
				return printDescriptors(cmd.OutOrStdout(), descriptors)
			}

			tools, err := catalog.Default()
			if err != nil {
				return err
			}
			tb, err := mcp.NewToolbox(tools...)
			if err != nil {
				return err
			}
			if asJSON {
				return printDescriptors(cmd.OutOrStdout(), tb.Describe())
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREQUEST\tDESCRIPTION")
			for _, t := range tools {
				fmt.Fprintf(w, "%s\t%s %s\t%s\n", t.Name, t.Request.Method, t.Request.Path, t.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tool descriptors as JSON")
	cmd.Flags().StringVar(&serverURL, "server", "", "List the tools of a running bridge instead (always JSON)")
	return cmd
}

func printDescriptors(w io.Writer, descriptors []protocol.ToolDescriptor) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(protocol.ListResult{Tools: descriptors})
}
