package searchfx

import (
	"github.com/keinsell/zkk/internal/config/configfx"
	"github.com/keinsell/zkk/internal/search"
	"github.com/keinsell/zkk/internal/storage"
	"go.uber.org/fx"
)

// Params represents dependencies for search service
type Params struct {
	fx.In

	Config   *configfx.Config
	Docs     storage.DocumentStore
	Concepts storage.ConceptStore
	VecStore storage.VectorStore `optional:"true"`
}

// NewSearchService creates a new search service instance
func NewSearchService(params Params) *search.Service {
	return &search.Service{
		Docs:      params.Docs,
		Concepts:  params.Concepts,
		Vector:    params.VecStore, // Can be nil
		TopK:      params.Config.TopK,
		Threshold: params.Config.Threshold,
	}
}

// Module provides search components
var Module = fx.Module("search",
	fx.Provide(NewSearchService),
)
