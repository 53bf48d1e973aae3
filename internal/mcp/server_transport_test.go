package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initialize(ctx context.Context, t *testing.T, cli *client.Client) {
	t.Helper()
	require.NoError(t, cli.Start(ctx))
	t.Cleanup(func() { _ = cli.Close() })

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "0.0.1"}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	_, err := cli.Initialize(ctx, initReq)
	require.NoError(t, err)
}

func toolNames(ctx context.Context, t *testing.T, cli *client.Client) []string {
	t.Helper()
	res, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	names := make([]string, len(res.Tools))
	for i, tool := range res.Tools {
		names[i] = tool.Name
	}
	return names
}

func TestStreamableHTTPTransport(t *testing.T) {
	ts := httptest.NewServer(server.NewStreamableHTTPServer(New(nil, nil)))
	t.Cleanup(ts.Close)

	tr, err := transport.NewStreamableHTTP(ts.URL)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	require.NoError(t, tr.Start(ctx))

	cli := client.NewClient(tr)
	initialize(ctx, t, cli)
	assert.Contains(t, toolNames(ctx, t, cli), "semantic_search")
}

func TestSSETransport(t *testing.T) {
	sse := server.NewSSEServer(New(nil, nil), server.WithStaticBasePath("/mcp"))
	mux := http.NewServeMux()
	mux.Handle("/mcp/sse", sse.SSEHandler())
	mux.Handle("/mcp/message", sse.MessageHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	tr, err := transport.NewSSE(ts.URL + "/mcp/sse")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	cli := client.NewClient(tr)
	initialize(ctx, t, cli)
	assert.Contains(t, toolNames(ctx, t, cli), "get_links")
}

func TestInProcessTransport(t *testing.T) {
	srv := newTestServer(t)
	tr := transport.NewInProcessTransport(New(srv.search, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	require.NoError(t, tr.Start(ctx))

	cli := client.NewClient(tr)
	initialize(ctx, t, cli)

	names := toolNames(ctx, t, cli)
	assert.Contains(t, names, "kb_stats")
	assert.NotContains(t, names, "index_project")

	res, err := cli.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: "broken_links"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.NotNil(t, res.StructuredContent)
}
