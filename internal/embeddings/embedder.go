package embeddings

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no embedding provider could be initialized.
var ErrUnavailable = errors.New("embedding provider unavailable")

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelName() string
	// Dimension is 0 until the embedder has produced its first vector.
	Dimension() int
}
