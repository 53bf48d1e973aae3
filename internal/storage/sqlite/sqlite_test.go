package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/storage"
	"github.com/keinsell/zkk/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func putDoc(t *testing.T, st *sqlite.Store, path, name, title, content string, links ...models.Link) int64 {
	t.Helper()
	id, err := st.UpsertDocument(context.Background(), &models.Document{
		Path:     path,
		Name:     name,
		Title:    title,
		Content:  content,
		Checksum: "sum-" + content,
		ModTime:  1,
	}, links)
	require.NoError(t, err)
	return id
}

func TestUpsertDocumentKeepsIDAndReplacesLinks(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	id := putDoc(t, st, "/kb/a.md", "a", "Alpha", "one", models.Link{Target: "Beta", Line: 1})
	again := putDoc(t, st, "/kb/a.md", "a", "Alpha", "two",
		models.Link{Target: "Gamma", Line: 2}, models.Link{Target: "Delta", Line: 3})
	assert.Equal(t, id, again)

	fp, err := st.StoredFingerprint(ctx, "/kb/a.md")
	require.NoError(t, err)
	require.NotNil(t, fp)
	assert.Equal(t, "sum-two", fp.Checksum)

	report, err := st.GetLinks(ctx, "/kb/a.md")
	require.NoError(t, err)
	require.Len(t, report.Outgoing, 2)
	assert.Equal(t, "Gamma", report.Outgoing[0].Target)
	assert.Equal(t, "Delta", report.Outgoing[1].Target)
}

func TestStoredFingerprintAbsent(t *testing.T) {
	st := newStore(t)
	fp, err := st.StoredFingerprint(context.Background(), "/kb/none.md")
	require.NoError(t, err)
	assert.Nil(t, fp)

	_, err = st.GetDocument(context.Background(), "/kb/none.md")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteAndListPaths(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	putDoc(t, st, "/kb/a.md", "a", "A", "x")
	putDoc(t, st, "/kb/sub/b.md", "b", "B", "y")
	putDoc(t, st, "/other/c.md", "c", "C", "z")

	paths, err := st.ListPaths(ctx, "/kb/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/kb/a.md", "/kb/sub/b.md"}, paths)

	ok, err := st.DeleteDocument(ctx, "/kb/a.md")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.DeleteDocument(ctx, "/kb/a.md")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := st.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSearchTextReportsLines(t *testing.T) {
	st := newStore(t)
	putDoc(t, st, "/kb/a.md", "a", "Alpha", "# Alpha\nuses SQLite\nnothing\nsqlite again")
	putDoc(t, st, "/kb/b.md", "b", "Beta", "no match here")

	got, err := st.SearchText(context.Background(), "sqlite")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.TextMatch{Path: "/kb/a.md", Title: "Alpha", Line: 2, Text: "uses SQLite"}, got[0])
	assert.Equal(t, 4, got[1].Line)

	none, err := st.SearchText(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLinkResolutionFollowsTargets(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	putDoc(t, st, "/kb/a.md", "a", "Alpha", "see [[Beta]]", models.Link{Target: "Beta", Line: 1, Context: "see [[Beta]]"})

	report, err := st.GetLinks(ctx, "/kb/a.md")
	require.NoError(t, err)
	require.Len(t, report.Outgoing, 1)
	assert.False(t, report.Outgoing[0].Exists)

	broken, err := st.BrokenLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, broken)

	putDoc(t, st, "/kb/beta.md", "beta", "Something else", "body")

	report, err = st.GetLinks(ctx, "/kb/a.md")
	require.NoError(t, err)
	assert.True(t, report.Outgoing[0].Exists)

	incoming, err := st.GetLinks(ctx, "/kb/beta.md")
	require.NoError(t, err)
	require.Len(t, incoming.Incoming, 1)
	assert.Equal(t, "/kb/a.md", incoming.Incoming[0].Path)

	broken, err = st.BrokenLinks(ctx)
	require.NoError(t, err)
	assert.Empty(t, broken)
}

func TestOrphansIgnoreSelfLinks(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	putDoc(t, st, "/kb/a.md", "a", "Alpha", "[[Alpha]] [[Beta]]",
		models.Link{Target: "Alpha", Line: 1}, models.Link{Target: "Beta", Line: 1})
	putDoc(t, st, "/kb/b.md", "b", "Beta", "plain")

	orphans, err := st.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "/kb/a.md", orphans[0].Path)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.KnowledgeStats{
		Documents:       2,
		Links:           2,
		BrokenLinks:     0,
		Orphans:         1,
		AvgLinksPerFile: 1,
	}, stats)
}
