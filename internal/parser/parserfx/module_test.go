package parserfx

import (
	"context"
	"testing"

	"github.com/keinsell/zkk/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestParserModule(t *testing.T) {
	var (
		docs     parser.DocumentParser
		features parser.FeatureExtractor
	)
	app := fx.New(
		Module,
		fx.NopLogger,
		fx.Populate(&docs, &features),
	)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()

	parsed, err := docs.ParseDocument("/kb/note.md", []byte("# Note\n\nsee [[Other]]\n"))
	require.NoError(t, err)
	assert.Equal(t, "Note", parsed.Title)
	assert.Len(t, parsed.Links, 1)
	assert.True(t, features.Supports("typescript"))
}
