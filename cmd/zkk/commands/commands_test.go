package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolArgs(t *testing.T) {
	args, err := parseToolArgs([]string{"query=docker swarm", "top_k=3", "threshold=0.25", "force=true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"query":     "docker swarm",
		"top_k":     3,
		"threshold": 0.25,
		"force":     true,
	}, args)

	_, err = parseToolArgs([]string{"novalue"})
	assert.Error(t, err)
}

func TestGlobalFlagArgs(t *testing.T) {
	g := &globalFlags{db: "/tmp/kb.db", provider: "local"}
	assert.Equal(t, []string{"--db", "/tmp/kb.db", "--provider", "local"}, g.args())
}

func TestListToolsInProcess(t *testing.T) {
	dir := t.TempDir()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"--db", filepath.Join(dir, "kb.db"), "--provider", "local", "--log-level", "error",
		"mcp-client", "list-tools", "--transport", "inproc",
	})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "semantic_search")
	assert.Contains(t, out.String(), "index_project")
}

func TestCallIndexToolInProcess(t *testing.T) {
	dir := t.TempDir()
	kb := filepath.Join(dir, "kb")
	require.NoError(t, os.MkdirAll(kb, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(kb, "a.md"), []byte("# A\n\nsee [[B]]\n"), 0o644))

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"--db", filepath.Join(dir, "kb.db"), "--provider", "local", "--log-level", "error",
		"mcp-client", "call", "index_project", "path=" + kb, "--transport", "inproc",
	})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), `"new": 1`)
}
