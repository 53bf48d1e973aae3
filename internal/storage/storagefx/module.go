package storagefx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keinsell/zkk/internal/chunker"
	"github.com/keinsell/zkk/internal/config/configfx"
	"github.com/keinsell/zkk/internal/embeddings"
	"github.com/keinsell/zkk/internal/parser"
	"github.com/keinsell/zkk/internal/storage"
	"github.com/keinsell/zkk/internal/storage/sqlite"
	"github.com/keinsell/zkk/internal/storage/sqlvec"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for storage components
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *configfx.Config
}

// NewCatalog opens the relational store, creating the database directory
// when needed.
func NewCatalog(params Params) (*sqlite.Store, error) {
	if params.Config.DBPath == "" {
		return nil, fmt.Errorf("database path must be specified")
	}
	if err := os.MkdirAll(filepath.Dir(params.Config.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	store, err := sqlite.New(params.Config.DBPath)
	if err != nil {
		return nil, err
	}
	params.Lifecycle.Append(fx.StopHook(store.Close))
	return store, nil
}

func NewDocumentStore(s *sqlite.Store) storage.DocumentStore { return s }

func NewConceptStore(s *sqlite.Store) storage.ConceptStore { return s }

// NewPreparer builds the chunk preparer from the configured chunk sizes
func NewPreparer(config *configfx.Config, features parser.FeatureExtractor) *storage.Preparer {
	return &storage.Preparer{
		Chunker:  chunker.New(chunker.Options{Size: config.ChunkSize, Overlap: config.ChunkOverlap}),
		Features: features,
	}
}

// VectorParams represents dependencies for the vector store
type VectorParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *configfx.Config
	Catalog   *sqlite.Store
	Embedder  embeddings.Embedder
	Preparer  *storage.Preparer
	Logger    *zap.Logger `optional:"true"`
}

// NewVectorStore opens the vector store on the catalog's database file
func NewVectorStore(params VectorParams) (storage.VectorStore, error) {
	store, err := sqlvec.New(params.Config.DBPath, params.Embedder, sqlvec.Options{
		Preparer:  params.Preparer,
		CacheSize: params.Config.CacheSize,
		Logger:    params.Logger,
	})
	if err != nil {
		return nil, err
	}
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return store, nil
}

// Module provides storage components
var Module = fx.Module("storage",
	fx.Provide(
		NewCatalog,
		NewDocumentStore,
		NewConceptStore,
		NewPreparer,
		NewVectorStore,
	),
)
