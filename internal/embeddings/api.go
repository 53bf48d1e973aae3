package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// ApiEmbedder calls an HTTP endpoint that accepts {"sentences": [...]} and
// answers with one vector per sentence.
type ApiEmbedder struct {
	url    string
	model  string
	client *http.Client
	dim    atomic.Int64
}

func NewApi(url, model string) *ApiEmbedder {
	if model == "" {
		model = "api"
	}
	return &ApiEmbedder{url: url, model: model, client: &http.Client{Timeout: 2 * time.Minute}}
}

func (e *ApiEmbedder) ModelName() string { return e.model }

func (e *ApiEmbedder) Dimension() int { return int(e.dim.Load()) }

func (e *ApiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return e.embedRequest(ctx, texts)
}

func (e *ApiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.embedRequest(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type embedRequest struct {
	Sentences []string `json:"sentences"`
}

func (e *ApiEmbedder) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(&embedRequest{Sentences: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	response, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed api: unexpected status %s", response.Status)
	}
	var embeddings [][]float32
	if err := json.NewDecoder(response.Body).Decode(&embeddings); err != nil {
		return nil, fmt.Errorf("embed api: decode response: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embed api: got %d vectors for %d texts", len(embeddings), len(texts))
	}
	if len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed api: empty vector")
	}
	e.dim.Store(int64(len(embeddings[0])))
	return embeddings, nil
}
