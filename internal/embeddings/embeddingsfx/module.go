package embeddingsfx

import (
	"context"

	"github.com/keinsell/zkk/internal/config/configfx"
	"github.com/keinsell/zkk/internal/constants"
	"github.com/keinsell/zkk/internal/embeddings"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for embeddings components
type Params struct {
	fx.In

	Config *configfx.Config
	Logger *zap.Logger `optional:"true"`
}

// NewProvider builds the process-wide embedding provider: the configured
// backend first, then FallbackModel on the same backend if set, then the
// offline hashed embedder.
func NewProvider(params Params) *embeddings.Provider {
	cfg := params.Config
	primary := factory(cfg, cfg.Provider, cfg.Model)
	fallback := embeddings.Static(embeddings.NewLocal(cfg.Dimension))
	switch {
	case cfg.Provider == "local":
		fallback = nil
	case cfg.FallbackModel != "":
		fallback = chain(factory(cfg, cfg.Provider, cfg.FallbackModel), fallback)
	}
	return embeddings.NewProvider(primary, fallback, params.Logger)
}

// NewEmbedder exposes the provider as the Embedder every store uses
func NewEmbedder(p *embeddings.Provider) embeddings.Embedder {
	return p
}

func factory(cfg *configfx.Config, kind, model string) embeddings.Factory {
	switch kind {
	case "openai":
		baseURL := cfg.EmbedURL
		if baseURL == constants.DefaultEmbedURL {
			baseURL = ""
		}
		return func(context.Context) (embeddings.Embedder, error) {
			return embeddings.NewOpenAI(baseURL, model, cfg.APIKey)
		}
	case "local":
		return embeddings.Static(embeddings.NewLocal(cfg.Dimension))
	default:
		return embeddings.Static(embeddings.NewApi(cfg.EmbedURL, model))
	}
}

// chain tries first and falls through to next when first cannot even be
// constructed or probed.
func chain(first, next embeddings.Factory) embeddings.Factory {
	return func(ctx context.Context) (embeddings.Embedder, error) {
		e, err := first(ctx)
		if err == nil {
			if _, err = e.EmbedQuery(ctx, "ping"); err == nil {
				return e, nil
			}
		}
		return next(ctx)
	}
}

// Module provides embeddings components
var Module = fx.Module("embeddings",
	fx.Provide(
		NewProvider,
		NewEmbedder,
	),
)
