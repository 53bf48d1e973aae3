package parser

import "github.com/keinsell/zkk/internal/models"

// ParsedDocument is what the indexer derives from a document's raw text
// before anything is stored.
type ParsedDocument struct {
	Title string
	AST   string
	Links []models.Link
}

type DocumentParser interface {
	ParseDocument(path string, content []byte) (*ParsedDocument, error)
}

// FeatureExtractor lists declarations found in source code, formatted as
// "kind:name" (for example "function:loadUsers").
type FeatureExtractor interface {
	Supports(lang string) bool
	Features(lang string, code []byte) ([]string, error)
}
