package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	appmcp "github.com/keinsell/zkk/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

const (
	transportStdio  = "stdio"
	transportHTTP   = "http"
	transportSSE    = "sse"
	transportInproc = "inproc"
)

type clientFlags struct {
	transport string
	address   string
}

// newMCPClientCommand creates commands for talking to a zkk MCP server
func newMCPClientCommand(g *globalFlags) *cobra.Command {
	cf := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "mcp-client",
		Short: "MCP client commands",
		Long:  "Commands for connecting to and interacting with a zkk MCP server",
	}
	cmd.AddCommand(
		newMCPCallCommand(g, cf),
		newMCPListToolsCommand(g, cf),
	)
	cmd.PersistentFlags().
		StringVarP(&cf.transport, "transport", "t", transportStdio, "transport (stdio, http, sse, inproc)")
	cmd.PersistentFlags().
		StringVarP(&cf.address, "address", "a", "", "server URL (http/sse), ignored for stdio/inproc")
	return cmd
}

func newMCPCallCommand(g *globalFlags, cf *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool_name> [key=value...]",
		Short: "Call a specific MCP tool",
		Long: `Call a specific MCP tool with arguments.
Arguments should be provided as key=value pairs.

Example:
  zkk mcp-client call semantic_search query="container orchestration" top_k=3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := parseToolArgs(args[1:])
			if err != nil {
				return err
			}
			return withClient(cmd, g, cf, func(ctx context.Context, c *appmcp.Client) error {
				result, err := c.Call(ctx, args[0], toolArgs)
				if err != nil {
					return fmt.Errorf("call tool failed: %w", err)
				}
				output, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("format result failed: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return nil
			})
		},
	}
}

func newMCPListToolsCommand(g *globalFlags, cf *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list-tools",
		Short: "List available MCP tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, g, cf, func(ctx context.Context, c *appmcp.Client) error {
				tools, err := c.ListTools(ctx)
				if err != nil {
					return fmt.Errorf("failed to list tools: %w", err)
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "Available MCP tools (%d):\n\n", len(tools))
				for i, tool := range tools {
					_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, tool.Name)
					if tool.Description != "" {
						_, _ = fmt.Fprintf(out, "   %s\n", tool.Description)
					}
					names := make([]string, 0, len(tool.InputSchema.Properties))
					for name := range tool.InputSchema.Properties {
						names = append(names, name)
					}
					slices.Sort(names)
					for _, name := range names {
						required := ""
						if slices.Contains(tool.InputSchema.Required, name) {
							required = " (required)"
						}
						_, _ = fmt.Fprintf(out, "     - %s%s\n", name, required)
					}
				}
				return nil
			})
		},
	}
}

// parseToolArgs turns key=value pairs into tool arguments, keeping numbers
// and booleans typed.
func parseToolArgs(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument format: %s (expected key=value)", arg)
		}
		if n, err := strconv.Atoi(value); err == nil {
			out[key] = n
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			out[key] = f
		} else if b, err := strconv.ParseBool(value); err == nil {
			out[key] = b
		} else {
			out[key] = value
		}
	}
	return out, nil
}

func withClient(
	cmd *cobra.Command,
	g *globalFlags,
	cf *clientFlags,
	fn func(ctx context.Context, c *appmcp.Client) error,
) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	var (
		c   *appmcp.Client
		err error
	)
	switch cf.transport {
	case transportStdio:
		c, err = appmcp.NewStdioClient(ctx, g.args()...)
	case transportHTTP:
		address := cf.address
		if address == "" {
			address = "http://127.0.0.1:8080/mcp"
		}
		c, err = appmcp.NewHTTPClient(ctx, address)
	case transportSSE:
		address := cf.address
		if address == "" {
			address = "http://127.0.0.1:8080/mcp/sse"
		}
		c, err = appmcp.NewSSEClient(ctx, address)
	case transportInproc:
		return withServer(cmd, g, "", func(ctx context.Context, s *server.MCPServer) error {
			c, err := appmcp.NewInProcessClient(ctx, s)
			if err != nil {
				return fmt.Errorf("create MCP client failed: %w", err)
			}
			defer func() { _ = c.Close() }()
			return fn(ctx, c)
		})
	default:
		return fmt.Errorf("unsupported transport: %s (supported: stdio, http, sse, inproc)", cf.transport)
	}
	if err != nil {
		return fmt.Errorf("create MCP client failed: %w", err)
	}
	defer func() { _ = c.Close() }()
	return fn(ctx, c)
}
