package embeddings

import (
	"context"
	"fmt"
	"sync/atomic"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIEmbedder talks to any OpenAI-compatible /embeddings endpoint
// (OpenAI, Ollama, LM Studio, vLLM).
type OpenAIEmbedder struct {
	model    string
	embedder lcembeddings.Embedder
	dim      atomic.Int64
}

func NewOpenAI(baseURL, model, token string) (*OpenAIEmbedder, error) {
	if model == "" {
		return nil, fmt.Errorf("openai embedder: model is required")
	}
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: create client: %w", err)
	}
	emb, err := lcembeddings.NewEmbedder(client, lcembeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	return &OpenAIEmbedder{model: model, embedder: emb}, nil
}

func (e *OpenAIEmbedder) ModelName() string { return e.model }

func (e *OpenAIEmbedder) Dimension() int { return int(e.dim.Load()) }

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("openai embedder: got %d vectors for %d texts", len(vecs), len(texts))
	}
	e.dim.Store(int64(len(vecs[0])))
	return vecs, nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("openai embedder: empty vector")
	}
	e.dim.Store(int64(len(vec)))
	return vec, nil
}
