package commands

import (
	"context"

	"github.com/keinsell/zkk/cmd/cmdsfx"
	"github.com/spf13/cobra"
)

// newMCPServeCommand runs the MCP server exposing search, link, concept and
// index tools.
func newMCPServeCommand(g *globalFlags) *cobra.Command {
	var (
		project   string
		transport string
		address   string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run MCP server",
		Long:  "Run MCP server, provide knowledge-base search, link and concept tools.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, g, project, func(_ context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunMCPServer(transport, address)
			})
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "directory to index before serving")
	cmd.Flags().
		StringVarP(&transport, "transport", "t", "stdio", "transport (stdio, http, sse)")
	cmd.Flags().StringVarP(&address, "address", "a", "", "server address (http modes), e.g. :8080")

	return cmd
}
