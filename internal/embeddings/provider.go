package embeddings

import (
	"context"
	"fmt"
	"sync"

	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/progress"
	"go.uber.org/zap"
)

// Factory constructs an embedder. It is called again only when an earlier
// attempt was cut short by its context.
type Factory func(ctx context.Context) (Embedder, error)

// Provider is the process-wide embedding handle. The first call to Init (or
// any embedding method) loads the primary embedder and probes it; if that
// fails the fallback is loaded instead. The outcome is fixed for the life of
// the Provider, unless the attempt ended because its context was done.
type Provider struct {
	primary  Factory
	fallback Factory
	logger   *zap.Logger

	mu     sync.Mutex
	done   bool
	active Embedder
	err    error
}

func NewProvider(primary, fallback Factory, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{primary: primary, fallback: fallback, logger: logger}
}

// Static returns a Factory that always yields e.
func Static(e Embedder) Factory {
	return func(context.Context) (Embedder, error) { return e, nil }
}

func (p *Provider) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return p.err
	}
	active, err := p.load(ctx)
	if err != nil && ctx.Err() != nil {
		return err
	}
	p.active, p.err, p.done = active, err, true
	return err
}

// Active returns the loaded embedder, or nil when none could be loaded.
func (p *Provider) Active(ctx context.Context) Embedder {
	if err := p.Init(ctx); err != nil {
		return nil
	}
	return p.active
}

func (p *Provider) load(ctx context.Context) (Embedder, error) {
	progress.Emit(ctx, models.PhaseModelLoading, "", "loading embedding model")
	if p.primary == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrUnavailable)
	}
	e, err := probe(ctx, p.primary)
	if err == nil {
		p.loaded(ctx, e)
		return e, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
	p.logger.Warn("primary embedding provider unavailable", zap.Error(err))
	if p.fallback == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	progress.Emit(ctx, models.PhaseModelFallback, "", "primary model unavailable, using fallback")
	fb, ferr := probe(ctx, p.fallback)
	if ferr != nil {
		p.logger.Error("fallback embedding provider unavailable", zap.Error(ferr))
		return nil, fmt.Errorf("%w: primary: %v; fallback: %v", ErrUnavailable, err, ferr)
	}
	p.loaded(ctx, fb)
	return fb, nil
}

func (p *Provider) loaded(ctx context.Context, e Embedder) {
	p.logger.Info("embedding model loaded",
		zap.String("model", e.ModelName()),
		zap.Int("dimension", e.Dimension()),
	)
	progress.Emit(ctx, models.PhaseModelLoaded, "", "embedding model ready: "+e.ModelName())
}

func probe(ctx context.Context, f Factory) (Embedder, error) {
	e, err := f(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := e.EmbedQuery(ctx, "ping")
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", e.ModelName(), err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("probe %s: empty vector", e.ModelName())
	}
	return e, nil
}

func (p *Provider) ModelName() string {
	if e := p.Active(context.Background()); e != nil {
		return e.ModelName()
	}
	return ""
}

func (p *Provider) Dimension() int {
	if e := p.Active(context.Background()); e != nil {
		return e.Dimension()
	}
	return 0
}

func (p *Provider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	return p.active.EmbedTexts(ctx, texts)
}

func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	return p.active.EmbedQuery(ctx, text)
}
