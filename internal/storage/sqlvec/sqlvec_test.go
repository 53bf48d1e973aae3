package sqlvec_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/keinsell/zkk/internal/embeddings/embeddingstest"
	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/progress"
	"github.com/keinsell/zkk/internal/storage/sqlite"
	"github.com/keinsell/zkk/internal/storage/sqlvec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	docs *sqlite.Store
	vec  *sqlvec.Store
	emb  *embeddingstest.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.db")
	docs, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	emb := embeddingstest.NewTable("table-v1", 2).
		Set("query", 1, 0).
		Set("alpha", 0.9, 0.43588989).
		Set("beta", 0.5, 0.8660254).
		Set("gamma", 0.2, 0.9797959).
		Set("zero", 0, 0)
	vec, err := sqlvec.New(path, emb, sqlvec.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = vec.Close() })
	return &fixture{docs: docs, vec: vec, emb: emb}
}

func (f *fixture) add(t *testing.T, path, content string) int64 {
	t.Helper()
	id, err := f.docs.UpsertDocument(context.Background(), &models.Document{
		Path: path, Name: filepath.Base(path), Title: path, Content: content, Checksum: content,
	}, nil)
	require.NoError(t, err)
	_, err = f.vec.StoreEmbeddings(context.Background(), id, path, content, false)
	require.NoError(t, err)
	return id
}

func TestSearchRanksByCosine(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/kb/a.md", "alpha")
	f.add(t, "/kb/b.md", "beta")
	f.add(t, "/kb/c.md", "gamma")

	hits, err := f.vec.Search(context.Background(), "query", 2, 0.3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "/kb/a.md", hits[0].Path)
	assert.InDelta(t, 0.9, hits[0].Similarity, 1e-4)
	assert.Equal(t, "/kb/b.md", hits[1].Path)
	assert.InDelta(t, 0.5, hits[1].Similarity, 1e-4)
	assert.Equal(t, "alpha", hits[0].Content)
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var ids []int64
	for _, path := range []string{"/kb/first.md", "/kb/second.md"} {
		id, err := f.docs.UpsertDocument(ctx, &models.Document{Path: path, Name: filepath.Base(path), Checksum: path}, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := f.vec.StoreEmbeddings(ctx, ids[1], "/kb/second.md", "alpha one", false)
	require.NoError(t, err)
	_, err = f.vec.StoreEmbeddings(ctx, ids[0], "/kb/first.md", "alpha two", false)
	require.NoError(t, err)

	hits, err := f.vec.Search(ctx, "query", 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, hits[0].Similarity, hits[1].Similarity)
	assert.Equal(t, "/kb/second.md", hits[0].Path)
	assert.Equal(t, "/kb/first.md", hits[1].Path)
}

func TestSearchSkipsZeroVectors(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/kb/z.md", "zero")
	f.add(t, "/kb/a.md", "alpha")

	hits, err := f.vec.Search(context.Background(), "query", 10, -1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "/kb/a.md", hits[0].Path)

	none, err := f.vec.Search(context.Background(), "zero", 10, -1)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreEmbeddingsSkipsUnchangedChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.add(t, "/kb/a.md", "alpha")
	calls := f.emb.Calls.Load()

	n, err := f.vec.StoreEmbeddings(ctx, id, "/kb/a.md", "alpha", false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, calls, f.emb.Calls.Load())

	n, err = f.vec.StoreEmbeddings(ctx, id, "/kb/a.md", "alpha", true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := f.vec.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.EmbeddingStats{
		Model: "table-v1", Dimension: 2, Chunks: 1, Embeddings: 1, Documents: 1, TotalDocument: 1,
	}, stats)
}

func TestStoreEmbeddingsDropsTrailingChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	long := "# One\n\nalpha text\n\n# Two\n\nbeta text\n"
	id := f.add(t, "/kb/a.md", long)

	stats, err := f.vec.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Chunks)

	_, err = f.vec.StoreEmbeddings(ctx, id, "/kb/a.md", "# One\n\nalpha text\n", false)
	require.NoError(t, err)
	stats, err = f.vec.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
}

func TestEmbeddingFailureRemovesChunk(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.emb.Fail("broken")
	id := f.add(t, "/kb/a.md", "alpha")

	var phases []models.ProgressPhase
	ctx = progress.WithSink(ctx, func(ev models.ProgressEvent) { phases = append(phases, ev.Phase) })
	n, err := f.vec.StoreEmbeddings(ctx, id, "/kb/a.md", "broken alpha", false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, phases, models.PhaseEmbeddingError)
	assert.Contains(t, phases, models.PhaseEmbeddingComplete)

	stats, err := f.vec.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
}

func TestModelsArePartitioned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.add(t, "/kb/a.md", "alpha")

	f.emb.SetModel("table-v2")
	n, err := f.vec.StoreEmbeddings(ctx, id, "/kb/a.md", "alpha", false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := f.vec.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.Embeddings)

	f.emb.SetModel("table-v1")
	n, err = f.vec.StoreEmbeddings(ctx, id, "/kb/a.md", "alpha", false)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteByDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.add(t, "/kb/a.md", "alpha")

	require.NoError(t, f.vec.DeleteByDocument(ctx, id))
	hits, err := f.vec.Search(ctx, "query", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestPurgeCascadesToChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, "/kb/a.md", "alpha")

	_, err := f.docs.DeleteDocument(ctx, "/kb/a.md")
	require.NoError(t, err)
	stats, err := f.vec.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
	assert.Zero(t, stats.Embeddings)
}
