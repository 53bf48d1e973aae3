package embeddings

import (
	"context"
	"crypto/sha1"
	"fmt"
	"math"
	"strings"
	"unicode"
)

const DefaultLocalDimension = 256

// LocalEmbedder builds hashed bag-of-words vectors. It needs no model and is
// used as the offline fallback; texts sharing words end up close together.
type LocalEmbedder struct {
	dim int
}

func NewLocal(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = DefaultLocalDimension
	}
	return &LocalEmbedder{dim: dim}
}

func (e *LocalEmbedder) ModelName() string { return fmt.Sprintf("local-hash-%d", e.dim) }

func (e *LocalEmbedder) Dimension() int { return e.dim }

func (e *LocalEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs[i] = hashToVector(t, e.dim)
	}
	return vecs, nil
}

func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return hashToVector(text, e.dim), nil
}

func hashToVector(s string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := sha1.Sum([]byte(w))
		idx := (int(h[0])<<8 | int(h[1])) % dim
		if h[2]&1 == 1 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
