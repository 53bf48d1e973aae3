package mcp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Client is an initialized MCP client session against a zkk server.
type Client struct{ c *client.Client }

// NewStdioClient launches this executable's "mcp" command with args and
// talks to it over stdio.
func NewStdioClient(ctx context.Context, args ...string) (*Client, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return connect(ctx, transport.NewStdio(self, nil, append([]string{"mcp"}, args...)...))
}

// NewHTTPClient connects to a streamable HTTP server at url
func NewHTTPClient(ctx context.Context, url string) (*Client, error) {
	tr, err := transport.NewStreamableHTTP(url)
	if err != nil {
		return nil, fmt.Errorf("streamable http transport: %w", err)
	}
	return connect(ctx, tr)
}

// NewSSEClient connects to an SSE server whose stream lives at url
func NewSSEClient(ctx context.Context, url string) (*Client, error) {
	tr, err := transport.NewSSE(url)
	if err != nil {
		return nil, fmt.Errorf("sse transport: %w", err)
	}
	return connect(ctx, tr)
}

// NewInProcessClient talks to s without any transport in between
func NewInProcessClient(ctx context.Context, s *server.MCPServer) (*Client, error) {
	return connect(ctx, transport.NewInProcessTransport(s))
}

func connect(ctx context.Context, tr transport.Interface) (*Client, error) {
	cli := client.NewClient(tr)

	ctxStart, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cli.Start(ctxStart); err != nil {
		return nil, fmt.Errorf("start mcp client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "zkk-cli", Version: serverVersion}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("init mcp client: %w", err)
	}
	return &Client{c: cli}, nil
}

func (c *Client) Close() error { return c.c.Close() }

func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	res, err := c.c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Tools, nil
}

func (c *Client) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return c.c.CallTool(ctx, mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
}
