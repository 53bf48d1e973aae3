package search_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/keinsell/zkk/internal/concepts"
	"github.com/keinsell/zkk/internal/embeddings/embeddingstest"
	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/parser/markdown"
	"github.com/keinsell/zkk/internal/search"
	"github.com/keinsell/zkk/internal/storage"
	"github.com/keinsell/zkk/internal/storage/memory"
	"github.com/keinsell/zkk/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*search.Service, *sqlite.Store, *memory.VectorStore) {
	t.Helper()
	docs, err := sqlite.New(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })
	emb := embeddingstest.NewTable("table", 2).
		Set("containers", 1, 0).
		Set("Docker", 0.9, 0.43588989).
		Set("Redis", 0.2, 0.9797959)
	vec := memory.NewVectorStore(emb, nil)
	return &search.Service{Docs: docs, Concepts: docs, Vector: vec, TopK: 5, Threshold: 0.3}, docs, vec
}

func index(t *testing.T, docs *sqlite.Store, vec *memory.VectorStore, path, content string) {
	t.Helper()
	ctx := context.Background()
	parsed, err := markdown.New().ParseDocument(path, []byte(content))
	require.NoError(t, err)
	id, err := docs.UpsertDocument(ctx, &models.Document{
		Path:     path,
		Name:     markdown.Stem(path),
		Title:    parsed.Title,
		Content:  content,
		Checksum: content,
	}, parsed.Links)
	require.NoError(t, err)
	_, err = vec.StoreEmbeddings(ctx, id, path, content, false)
	require.NoError(t, err)
	res := concepts.New().Extract(content)
	_, err = docs.StoreConcepts(ctx, id, res.Concepts, res.Relations)
	require.NoError(t, err)
}

func TestSemanticBeforeIndexing(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Semantic(context.Background(), "anything", 0, -1)
	assert.ErrorIs(t, err, search.ErrNotIndexed)

	svc.Vector = nil
	_, err = svc.Semantic(context.Background(), "anything", 0, -1)
	assert.ErrorIs(t, err, search.ErrNotIndexed)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	svc, docs, vec := newService(t)
	index(t, docs, vec, "/kb/docker.md", "# Docker\n\nDocker runs containers. See [[Redis]].\n")
	index(t, docs, vec, "/kb/redis.md", "# Redis\n\nRedis is a cache.\n")

	hits, err := svc.Semantic(ctx, "containers", 0, -1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "/kb/docker.md", hits[0].Path)

	exact, err := svc.Exact(ctx, "cache")
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, 3, exact[0].Line)

	_, err = svc.Exact(ctx, " ")
	assert.Error(t, err)

	links, err := svc.Links(ctx, "/kb/redis.md")
	require.NoError(t, err)
	require.Len(t, links.Incoming, 1)
	assert.Equal(t, "/kb/docker.md", links.Incoming[0].Path)

	orphans, err := svc.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "/kb/docker.md", orphans[0].Path)

	broken, err := svc.BrokenLinks(ctx)
	require.NoError(t, err)
	assert.Empty(t, broken)

	report, err := svc.Concept(ctx, "docker", 10)
	require.NoError(t, err)
	require.NotEmpty(t, report.Documents)
	assert.Equal(t, "/kb/docker.md", report.Documents[0].Path)

	dc, err := svc.DocumentConcepts(ctx, "/kb/redis.md", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, dc)

	_, err = svc.DocumentConcepts(ctx, "/kb/missing.md", 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	stats, err := svc.Stats(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Knowledge.Documents)
	require.NotNil(t, stats.Embeddings)
	assert.Equal(t, 2, stats.Embeddings.Documents)
	require.NotNil(t, stats.Concepts)
	assert.Positive(t, stats.Concepts.Total)
}
