package parserfx

import (
	"github.com/keinsell/zkk/internal/parser"
	"github.com/keinsell/zkk/internal/parser/markdown"
	"github.com/keinsell/zkk/internal/parser/tsparser"
	"go.uber.org/fx"
)

// NewDocumentParser creates the markdown document parser
func NewDocumentParser() parser.DocumentParser {
	return markdown.New()
}

// NewFeatureExtractor creates the tree-sitter declaration extractor used to
// enrich code chunks before embedding
func NewFeatureExtractor() parser.FeatureExtractor {
	return tsparser.New()
}

// Module provides parser components
var Module = fx.Module("parser",
	fx.Provide(
		NewDocumentParser,
		NewFeatureExtractor,
	),
)
