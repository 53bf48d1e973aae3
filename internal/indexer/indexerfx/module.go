package indexerfx

import (
	"github.com/keinsell/zkk/internal/concepts"
	"github.com/keinsell/zkk/internal/config/configfx"
	"github.com/keinsell/zkk/internal/indexer"
	"github.com/keinsell/zkk/internal/indexer/pipeline"
	"github.com/keinsell/zkk/internal/parser"
	"github.com/keinsell/zkk/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for indexer components
type Params struct {
	fx.In

	Config    *configfx.Config
	Parser    parser.DocumentParser
	Docs      storage.DocumentStore
	Concepts  storage.ConceptStore
	VecStore  storage.VectorStore
	Extractor *concepts.Extractor
	Logger    *zap.Logger `optional:"true"`
}

// NewExtractor creates the concept extractor with every built-in pass
func NewExtractor() *concepts.Extractor {
	return concepts.New()
}

// NewIndexer creates a new indexer instance
func NewIndexer(params Params) indexer.Indexer {
	return pipeline.New(
		params.Docs,
		params.Concepts,
		params.VecStore,
		params.Parser,
		params.Extractor,
		params.Logger,
		pipeline.Options{
			Workers:  params.Config.Workers,
			LockPath: params.Config.LockPath(),
			CacheDir: params.Config.CacheDir(),
		},
	)
}

// Module provides indexer components
var Module = fx.Module("indexer",
	fx.Provide(
		NewExtractor,
		NewIndexer,
	),
)
