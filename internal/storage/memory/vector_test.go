package memory_test

import (
	"context"
	"testing"

	"github.com/keinsell/zkk/internal/embeddings/embeddingstest"
	"github.com/keinsell/zkk/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() (*memory.VectorStore, *embeddingstest.Table) {
	emb := embeddingstest.NewTable("table", 2).
		Set("query", 1, 0).
		Set("alpha", 0.9, 0.43588989).
		Set("beta", 0.5, 0.8660254).
		Set("gamma", 0.2, 0.9797959)
	return memory.NewVectorStore(emb, nil), emb
}

func TestSearchThresholdAndTopK(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	for id, content := range []string{"alpha", "beta", "gamma"} {
		_, err := s.StoreEmbeddings(ctx, int64(id+1), "/kb/"+content+".md", content, false)
		require.NoError(t, err)
	}

	hits, err := s.Search(ctx, "query", 2, 0.3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "/kb/alpha.md", hits[0].Path)
	assert.InDelta(t, 0.9, hits[0].Similarity, 1e-6)
	assert.Equal(t, "/kb/beta.md", hits[1].Path)
	assert.InDelta(t, 0.5, hits[1].Similarity, 1e-6)
}

func TestTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	_, err := s.StoreEmbeddings(ctx, 2, "/kb/second.md", "alpha one", false)
	require.NoError(t, err)
	_, err = s.StoreEmbeddings(ctx, 1, "/kb/first.md", "alpha two", false)
	require.NoError(t, err)

	hits, err := s.Search(ctx, "query", 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "/kb/second.md", hits[0].Path)
	assert.Equal(t, "/kb/first.md", hits[1].Path)
}

func TestUnchangedChunksAreNotReembedded(t *testing.T) {
	ctx := context.Background()
	s, emb := newStore()
	n, err := s.StoreEmbeddings(ctx, 1, "/kb/a.md", "alpha", false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	calls := emb.Calls.Load()

	n, err = s.StoreEmbeddings(ctx, 1, "/kb/a.md", "alpha", false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, calls, emb.Calls.Load())

	require.NoError(t, s.DeleteByDocument(ctx, 1))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
}
