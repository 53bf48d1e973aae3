package embeddings

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/keinsell/zkk/internal/util"
)

const DefaultCacheSize = 1000

// CachedEmbedder memoizes query embeddings. Document batches pass straight
// through since chunk-level skipping already avoids re-embedding them.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

func NewCached(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedTexts(ctx, texts)
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := util.Digest(c.inner.ModelName(), "\x00", text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// Init forwards lazy initialization to the wrapped embedder when it has one.
func (c *CachedEmbedder) Init(ctx context.Context) error {
	return Init(ctx, c.inner)
}

// Init initializes e if it supports lazy initialization.
func Init(ctx context.Context, e Embedder) error {
	if i, ok := e.(interface{ Init(context.Context) error }); ok {
		return i.Init(ctx)
	}
	return nil
}
