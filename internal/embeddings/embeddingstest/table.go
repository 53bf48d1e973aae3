// Package embeddingstest provides a scripted embedder for tests.
package embeddingstest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/keinsell/zkk/internal/embeddings"
)

var ErrScripted = errors.New("scripted embedding failure")

// Table returns fixed vectors for texts containing a registered key and a
// fallback vector otherwise. Texts containing a failing key return
// ErrScripted.
type Table struct {
	mu       sync.Mutex
	model    string
	dim      int
	vectors  map[string][]float32
	order    []string
	failing  []string
	fallback []float32

	Calls atomic.Int32
	Texts atomic.Int32
}

func NewTable(model string, dim int) *Table {
	fb := make([]float32, dim)
	if dim > 0 {
		fb[dim-1] = 1
	}
	return &Table{model: model, dim: dim, vectors: map[string][]float32{}, fallback: fb}
}

// Set maps any text containing key to vec. Keys are matched in the order
// they were registered.
func (t *Table) Set(key string, vec ...float32) *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.vectors[key]; !ok {
		t.order = append(t.order, key)
	}
	t.vectors[key] = vec
	return t
}

func (t *Table) Fail(key string) *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failing = append(t.failing, key)
	return t
}

func (t *Table) SetModel(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.model = model
}

func (t *Table) ModelName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model
}

func (t *Table) Dimension() int { return t.dim }

func (t *Table) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	t.Calls.Add(1)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := t.lookup(text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	t.Texts.Add(int32(len(texts)))
	return out, nil
}

func (t *Table) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.lookup(text)
}

func (t *Table) lookup(text string) ([]float32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.failing {
		if strings.Contains(text, f) {
			return nil, ErrScripted
		}
	}
	for _, k := range t.order {
		if strings.Contains(text, k) {
			return append([]float32(nil), t.vectors[k]...), nil
		}
	}
	return append([]float32(nil), t.fallback...), nil
}

var _ embeddings.Embedder = (*Table)(nil)
