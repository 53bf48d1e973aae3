package embeddings_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/keinsell/zkk/internal/embeddings"
	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingEmbedder struct {
	*embeddings.LocalEmbedder
	queries atomic.Int32
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.queries.Add(1)
	return c.LocalEmbedder.EmbedQuery(ctx, text)
}

func failing(err error) embeddings.Factory {
	return func(context.Context) (embeddings.Embedder, error) { return nil, err }
}

func collect(ctx context.Context) (context.Context, func() []models.ProgressPhase) {
	var mu sync.Mutex
	var phases []models.ProgressPhase
	ctx = progress.WithSink(ctx, func(ev models.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, ev.Phase)
	})
	return ctx, func() []models.ProgressPhase {
		mu.Lock()
		defer mu.Unlock()
		return append([]models.ProgressPhase(nil), phases...)
	}
}

func TestProviderUsesPrimary(t *testing.T) {
	ctx, phases := collect(context.Background())
	p := embeddings.NewProvider(
		embeddings.Static(embeddings.NewLocal(16)),
		embeddings.Static(embeddings.NewLocal(8)),
		zaptest.NewLogger(t),
	)

	require.NoError(t, p.Init(ctx))
	assert.Equal(t, "local-hash-16", p.ModelName())
	assert.Equal(t, 16, p.Dimension())
	assert.Equal(t, []models.ProgressPhase{models.PhaseModelLoading, models.PhaseModelLoaded}, phases())
}

func TestProviderFallsBack(t *testing.T) {
	ctx, phases := collect(context.Background())
	p := embeddings.NewProvider(
		failing(errors.New("model missing")),
		embeddings.Static(embeddings.NewLocal(8)),
		zaptest.NewLogger(t),
	)

	vec, err := p.EmbedQuery(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, "local-hash-8", p.ModelName())
	assert.Equal(t, []models.ProgressPhase{
		models.PhaseModelLoading,
		models.PhaseModelFallback,
		models.PhaseModelLoaded,
	}, phases())
}

func TestProviderUnavailable(t *testing.T) {
	p := embeddings.NewProvider(
		failing(errors.New("primary down")),
		failing(errors.New("fallback down")),
		zaptest.NewLogger(t),
	)

	_, err := p.EmbedTexts(context.Background(), []string{"x"})
	require.ErrorIs(t, err, embeddings.ErrUnavailable)
	assert.Equal(t, "", p.ModelName())
	assert.Nil(t, p.Active(context.Background()))
}

func TestProviderInitializesOnce(t *testing.T) {
	var calls atomic.Int32
	factory := func(context.Context) (embeddings.Embedder, error) {
		calls.Add(1)
		return embeddings.NewLocal(4), nil
	}
	p := embeddings.NewProvider(factory, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.EmbedQuery(context.Background(), "q")
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestProviderRetriesAfterCancelledInit(t *testing.T) {
	var calls atomic.Int32
	factory := func(ctx context.Context) (embeddings.Embedder, error) {
		calls.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return embeddings.NewLocal(4), nil
	}
	fallback := embeddings.Static(embeddings.NewLocal(8))
	p := embeddings.NewProvider(factory, fallback, zaptest.NewLogger(t))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Init(cancelled)
	require.ErrorIs(t, err, embeddings.ErrUnavailable)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, p.Init(context.Background()))
	assert.Equal(t, "local-hash-4", p.ModelName())
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, p.Init(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachedEmbedderMemoizesQueries(t *testing.T) {
	inner := &countingEmbedder{LocalEmbedder: embeddings.NewLocal(8)}
	c := embeddings.NewCached(inner, 2)
	ctx := context.Background()

	a, err := c.EmbedQuery(ctx, "alpha")
	require.NoError(t, err)
	b, err := c.EmbedQuery(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), inner.queries.Load())

	_, _ = c.EmbedQuery(ctx, "beta")
	_, _ = c.EmbedQuery(ctx, "gamma")
	_, _ = c.EmbedQuery(ctx, "alpha")
	assert.Equal(t, int32(4), inner.queries.Load())
}

func TestApiEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Sentences []string `json:"sentences"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([][]float32, len(req.Sentences))
		for i := range out {
			out[i] = []float32{float32(i), 1, 0}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e := embeddings.NewApi(srv.URL, "bge-small")
	assert.Equal(t, 0, e.Dimension())

	vecs, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 1, 0}, vecs[1])
	assert.Equal(t, 3, e.Dimension())
	assert.Equal(t, "bge-small", e.ModelName())
}

func TestApiEmbedderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := embeddings.NewApi(srv.URL, "").EmbedQuery(context.Background(), "x")
	require.Error(t, err)
}
