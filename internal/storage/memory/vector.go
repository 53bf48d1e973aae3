package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/keinsell/zkk/internal/constants"
	"github.com/keinsell/zkk/internal/embeddings"
	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/progress"
	"github.com/keinsell/zkk/internal/storage"
)

type item struct {
	chunk models.TextChunk
	path  string
	vecs  map[string][]float32 // model -> vector
	seq   int64
}

// VectorStore keeps chunks and vectors in process memory. It follows the same
// skip and replace rules as the SQLite store and is meant for tests and
// throwaway indexes.
type VectorStore struct {
	embedder embeddings.Embedder
	prep     *storage.Preparer

	mu   sync.RWMutex
	data map[int64][]*item // document id -> items by chunk index
	seq  int64
}

func NewVectorStore(embedder embeddings.Embedder, prep *storage.Preparer) *VectorStore {
	if prep == nil {
		prep = &storage.Preparer{}
	}
	return &VectorStore{embedder: embedder, prep: prep, data: make(map[int64][]*item)}
}

func (s *VectorStore) StoreEmbeddings(ctx context.Context, docID int64, path, content string, force bool) (int, error) {
	if err := embeddings.Init(ctx, s.embedder); err != nil {
		return 0, err
	}
	model := s.embedder.ModelName()
	chunks := s.prep.Prepare(path, content, model)

	s.mu.RLock()
	existing := append([]*item(nil), s.data[docID]...)
	s.mu.RUnlock()

	next := make([]*item, len(chunks))
	stored := 0
	for i, pc := range chunks {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		var prior *item
		if i < len(existing) {
			prior = existing[i]
		}
		if prior != nil && prior.chunk.Content == pc.Content {
			if _, ok := prior.vecs[model]; ok && !force {
				kept := *prior
				kept.chunk.Start, kept.chunk.End = pc.Start, pc.End
				next[i] = &kept
				continue
			}
		}
		vecs, err := s.embedder.EmbedTexts(ctx, []string{pc.EmbedText})
		if err != nil || len(vecs) != 1 || len(vecs[0]) == 0 {
			if err == nil {
				err = fmt.Errorf("embedder returned no vector for chunk %d", pc.Index)
			}
			progress.Emit(ctx, models.PhaseEmbeddingError, path, fmt.Sprintf("chunk %d: %v", pc.Index, err))
			continue
		}
		it := &item{
			chunk: models.TextChunk{
				DocumentID: docID,
				Index:      pc.Index,
				Content:    pc.Content,
				Start:      pc.Start,
				End:        pc.End,
				Checksum:   pc.Checksum,
			},
			path: path,
			vecs: map[string][]float32{},
		}
		if prior != nil && prior.chunk.Content == pc.Content {
			for m, v := range prior.vecs {
				it.vecs[m] = v
			}
		}
		it.vecs[model] = vecs[0]
		s.mu.Lock()
		s.seq++
		it.seq = s.seq
		s.mu.Unlock()
		next[i] = it
		stored++
		progress.EmitPercent(ctx, models.PhaseEmbeddingProgress, path,
			fmt.Sprintf("embedded chunk %d/%d", i+1, len(chunks)),
			float64(i+1)/float64(len(chunks))*100)
	}

	s.mu.Lock()
	s.data[docID] = next
	s.mu.Unlock()
	progress.Emit(ctx, models.PhaseEmbeddingComplete, path,
		fmt.Sprintf("%d of %d chunks embedded", stored, len(chunks)))
	return stored, nil
}

func (s *VectorStore) Search(ctx context.Context, query string, topK int, threshold float64) ([]models.SemanticMatch, error) {
	if err := embeddings.Init(ctx, s.embedder); err != nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = constants.DefaultTopK
	}
	q, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	model := s.embedder.ModelName()

	s.mu.RLock()
	type scored struct {
		it    *item
		score float64
	}
	var all []scored
	for _, items := range s.data {
		for _, it := range items {
			if it == nil {
				continue
			}
			v, ok := it.vecs[model]
			if !ok || len(v) != len(q) {
				continue
			}
			score, ok := cosine(v, q)
			if !ok || score < threshold {
				continue
			}
			all = append(all, scored{it: it, score: score})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].it.seq < all[j].it.seq
	})
	if topK > len(all) {
		topK = len(all)
	}
	hits := make([]models.SemanticMatch, 0, topK)
	for _, sc := range all[:topK] {
		hits = append(hits, models.SemanticMatch{
			Chunk:      sc.it.chunk,
			Path:       sc.it.path,
			ChunkIndex: sc.it.chunk.Index,
			Content:    sc.it.chunk.Content,
			Similarity: sc.score,
		})
	}
	return hits, nil
}

func (s *VectorStore) DeleteByDocument(_ context.Context, docID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, docID)
	return nil
}

func (s *VectorStore) Stats(ctx context.Context) (models.EmbeddingStats, error) {
	var st models.EmbeddingStats
	if err := embeddings.Init(ctx, s.embedder); err == nil {
		st.Model = s.embedder.ModelName()
		st.Dimension = s.embedder.Dimension()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, items := range s.data {
		embedded := false
		for _, it := range items {
			if it == nil {
				continue
			}
			st.Chunks++
			if _, ok := it.vecs[st.Model]; ok {
				st.Embeddings++
				embedded = true
			}
		}
		if embedded {
			st.Documents++
		}
	}
	st.TotalDocument = len(s.data)
	return st, nil
}

// cosine reports false when either vector has zero norm.
func cosine(a, b []float32) (float64, bool) {
	var dot float64
	var na float64
	var nb float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	den := math.Sqrt(na) * math.Sqrt(nb)
	if den == 0 {
		return 0, false
	}
	return dot / den, true
}

var _ storage.VectorStore = (*VectorStore)(nil)
