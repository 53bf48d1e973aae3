package storage

import (
	"context"
	"errors"

	"github.com/keinsell/zkk/internal/fingerprint"
	"github.com/keinsell/zkk/internal/models"
)

var ErrNotFound = errors.New("not found")

// DocumentStore is the relational catalog of documents and their links.
type DocumentStore interface {
	// StoredFingerprint returns nil, nil when the path has never been indexed.
	StoredFingerprint(ctx context.Context, path string) (*fingerprint.Fingerprint, error)
	// UpsertDocument writes the document row and replaces its links in one
	// transaction, returning the document id.
	UpsertDocument(ctx context.Context, doc *models.Document, links []models.Link) (int64, error)
	// CommitFingerprint records fp once every derived row of the document
	// has been written.
	CommitFingerprint(ctx context.Context, docID int64, fp fingerprint.Fingerprint) error
	DeleteDocument(ctx context.Context, path string) (bool, error)
	GetDocument(ctx context.Context, path string) (*models.Document, error)
	DocumentID(ctx context.Context, path string) (int64, error)
	ListPaths(ctx context.Context, prefix string) ([]string, error)
	CountDocuments(ctx context.Context) (int, error)

	SearchText(ctx context.Context, query string) ([]models.TextMatch, error)
	GetLinks(ctx context.Context, path string) (*models.LinkReport, error)
	BrokenLinks(ctx context.Context) ([]string, error)
	Orphans(ctx context.Context) ([]models.Document, error)
	Stats(ctx context.Context) (models.KnowledgeStats, error)
}

// ConceptStore persists extracted concepts and answers concept queries.
type ConceptStore interface {
	StoreConcepts(
		ctx context.Context,
		docID int64,
		concepts []models.ConceptMention,
		relations []models.ConceptRelation,
	) (int, error)
	DocumentConcepts(ctx context.Context, docID int64, limit int) ([]models.FileConcept, error)
	FindConcept(ctx context.Context, name string, limit int) ([]models.FileConcept, error)
	RelatedConcepts(ctx context.Context, name string, limit int) ([]models.ConceptRelation, error)
	DocumentsWithConcepts(ctx context.Context) ([]string, error)
	ConceptStats(ctx context.Context, limit int) (models.ConceptStats, error)
}

// VectorStore owns text chunks and their embeddings.
type VectorStore interface {
	StoreEmbeddings(ctx context.Context, docID int64, path, content string, force bool) (int, error)
	Search(ctx context.Context, query string, topK int, threshold float64) ([]models.SemanticMatch, error)
	DeleteByDocument(ctx context.Context, docID int64) error
	Stats(ctx context.Context) (models.EmbeddingStats, error)
}
