package mcp

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessClientCall(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	cli, err := NewInProcessClient(ctx, New(srv.search, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	res, err := cli.Call(ctx, "text_search", map[string]any{"query": "alpha"})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = cli.Call(ctx, "get_links", map[string]any{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHTTPClientListTools(t *testing.T) {
	ts := httptest.NewServer(server.NewStreamableHTTPServer(New(nil, nil)))
	t.Cleanup(ts.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	cli, err := NewHTTPClient(ctx, ts.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	tools, err := cli.ListTools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, 8)
}
