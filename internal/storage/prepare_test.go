package storage_test

import (
	"strings"
	"testing"

	"github.com/keinsell/zkk/internal/chunker"
	"github.com/keinsell/zkk/internal/storage"
	"github.com/keinsell/zkk/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeatures struct {
	calls []string
}

func (s *stubFeatures) Supports(lang string) bool { return lang == "ts" || lang == "typescript" }

func (s *stubFeatures) Features(lang string, code []byte) ([]string, error) {
	s.calls = append(s.calls, lang)
	if strings.Contains(string(code), "loadUsers") {
		return []string{"function:loadUsers"}, nil
	}
	return nil, nil
}

func TestClassifyContent(t *testing.T) {
	assert.Equal(t, storage.ContentCode, storage.ClassifyContent("main.go", "hello"))
	assert.Equal(t, storage.ContentText, storage.ClassifyContent("a.md", ""))
	assert.Equal(t, storage.ContentText, storage.ClassifyContent("a.md", "Just prose.\nMore prose here."))

	code := "import os\nx = 1;\nif (x) {\n}\nprose line\n"
	assert.Equal(t, storage.ContentCode, storage.ClassifyContent("a.md", code))

	var b strings.Builder
	for i := 0; i < 3; i++ {
		b.WriteString("Some words about this step.\nMore words follow here.\nAnd another sentence.\n")
		b.WriteString("Closing remarks for the section.\nYet another remark.\n")
		b.WriteString("```\nrun\n```\n")
	}
	assert.Equal(t, storage.ContentMixed, storage.ClassifyContent("a.md", b.String()))
}

func TestEmbedText(t *testing.T) {
	assert.Equal(t, "plain", storage.EmbedText(storage.ContentText, "plain", nil))
	assert.Equal(t, "Code snippet: x()", storage.EmbedText(storage.ContentCode, "x()", nil))
	assert.Equal(t,
		"Technical documentation: doc\n\nfunction:f class:C",
		storage.EmbedText(storage.ContentMixed, "doc", []string{"function:f", "class:C"}),
	)
}

func TestPrepareChecksumsAndFeatures(t *testing.T) {
	content := "# Users\n\nCall loadUsers to fetch.\n\n```ts\nfunction loadUsers() {}\n```\n\n# Other\n\nUnrelated text.\n"
	feats := &stubFeatures{}
	p := &storage.Preparer{Chunker: chunker.New(chunker.Options{}), Features: feats}

	chunks := p.Prepare("/kb/users.md", content, "model-a")
	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"ts"}, feats.calls)

	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, util.ChunkChecksum(chunks[0].Content, "model-a"), chunks[0].Checksum)
	assert.True(t, strings.HasSuffix(chunks[0].EmbedText, "\n\nfunction:loadUsers"))
	assert.NotContains(t, chunks[1].EmbedText, "function:loadUsers")

	again := p.Prepare("/kb/users.md", content, "model-b")
	assert.NotEqual(t, chunks[0].Checksum, again[0].Checksum)
	assert.Equal(t, chunks[0].Chunk, again[0].Chunk)
}

func TestPrepareEmpty(t *testing.T) {
	p := &storage.Preparer{}
	assert.Nil(t, p.Prepare("/kb/empty.md", "   ", "m"))
}
