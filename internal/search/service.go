package search

import (
	"context"
	"errors"
	"strings"

	"github.com/keinsell/zkk/internal/constants"
	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/storage"
)

// ErrNotIndexed is returned by semantic queries before anything was indexed.
var ErrNotIndexed = errors.New("nothing indexed yet; run the index command first")

// Service answers exact, semantic, concept and link queries over the index.
type Service struct {
	Docs      storage.DocumentStore
	Concepts  storage.ConceptStore
	Vector    storage.VectorStore
	TopK      int
	Threshold float64
}

// Overview combines the statistics of every store.
type Overview struct {
	Knowledge  models.KnowledgeStats  `json:"knowledge"`
	Embeddings *models.EmbeddingStats `json:"embeddings,omitempty"`
	Concepts   *models.ConceptStats   `json:"concepts,omitempty"`
}

// ConceptReport is everything known about one concept name.
type ConceptReport struct {
	Query     string                   `json:"query"`
	Documents []models.FileConcept     `json:"documents"`
	Related   []models.ConceptRelation `json:"related"`
}

func (s *Service) Exact(ctx context.Context, query string) ([]models.TextMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty query")
	}
	return s.Docs.SearchText(ctx, query)
}

// Semantic ranks chunks by similarity to query. Zero topK and negative
// threshold fall back to the service defaults.
func (s *Service) Semantic(ctx context.Context, query string, topK int, threshold float64) ([]models.SemanticMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty query")
	}
	if s.Vector == nil {
		return nil, ErrNotIndexed
	}
	n, err := s.Docs.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotIndexed
	}
	if topK <= 0 {
		topK = s.TopK
	}
	if topK <= 0 {
		topK = constants.DefaultTopK
	}
	if threshold < 0 {
		threshold = s.Threshold
	}
	return s.Vector.Search(ctx, query, topK, threshold)
}

func (s *Service) Concept(ctx context.Context, name string, limit int) (*ConceptReport, error) {
	if s.Concepts == nil {
		return nil, ErrNotIndexed
	}
	docs, err := s.Concepts.FindConcept(ctx, name, limit)
	if err != nil {
		return nil, err
	}
	related, err := s.Concepts.RelatedConcepts(ctx, name, limit)
	if err != nil {
		return nil, err
	}
	return &ConceptReport{Query: name, Documents: docs, Related: related}, nil
}

// DocumentConcepts lists the concepts of the document stored at path.
func (s *Service) DocumentConcepts(ctx context.Context, path string, limit int) ([]models.FileConcept, error) {
	if s.Concepts == nil {
		return nil, ErrNotIndexed
	}
	id, err := s.Docs.DocumentID(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.Concepts.DocumentConcepts(ctx, id, limit)
}

func (s *Service) Links(ctx context.Context, path string) (*models.LinkReport, error) {
	return s.Docs.GetLinks(ctx, path)
}

func (s *Service) Orphans(ctx context.Context) ([]models.Document, error) {
	return s.Docs.Orphans(ctx)
}

func (s *Service) BrokenLinks(ctx context.Context) ([]string, error) {
	return s.Docs.BrokenLinks(ctx)
}

func (s *Service) Stats(ctx context.Context, limit int) (*Overview, error) {
	kb, err := s.Docs.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := &Overview{Knowledge: kb}
	if s.Vector != nil {
		es, err := s.Vector.Stats(ctx)
		if err != nil {
			return nil, err
		}
		out.Embeddings = &es
	}
	if s.Concepts != nil {
		cs, err := s.Concepts.ConceptStats(ctx, limit)
		if err != nil {
			return nil, err
		}
		out.Concepts = &cs
	}
	return out, nil
}
