package lexical

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"docqa-be/pkg/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocs(t *testing.T, dir string, docs map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func TestIndexAndSearch(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeDocs(t, src, map[string]string{
		"report.txt": "Quarterly revenue grew to 12 million.\fHeadcount stayed flat at forty engineers.",
		"notes.md":   "Meeting notes: the roadmap focuses on retrieval quality.",
		"image.png":  "not text",
	})

	b := NewBackend()
	h, err := b.Index(context.Background(), retrieval.IndexRequest{
		SessionId: "s1",
		SourceDir: src,
		IndexPath: filepath.Join(root, "index", "s1"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"image.png"}, h.(retrieval.SkipReporter).Skipped())

	refs, err := h.Search(context.Background(), "What was the revenue?", 3)
	require.NoError(t, err)
	require.NotEmpty(t, refs)
	assert.Equal(t, "report.txt", refs[0].Filename)
	assert.Equal(t, 1, refs[0].PageNum)
	assert.Contains(t, refs[0].Text, "revenue")

	refs, err = h.Search(context.Background(), "engineers headcount", 3)
	require.NoError(t, err)
	require.NotEmpty(t, refs)
	assert.Equal(t, 2, refs[0].PageNum)
}

func TestLoadReadsPersistedIndex(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeDocs(t, src, map[string]string{"a.txt": "colpali retrieves page images"})
	indexPath := filepath.Join(root, "index", "s1")

	b := NewBackend()
	_, err := b.Index(context.Background(), retrieval.IndexRequest{SessionId: "s1", SourceDir: src, IndexPath: indexPath})
	require.NoError(t, err)

	h, err := b.Load(context.Background(), "s1", indexPath)
	require.NoError(t, err)

	refs, err := h.Search(context.Background(), "page images", 1)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "a.txt", refs[0].Filename)
}

func TestLoadRejectsCorruptAndForeignArtifacts(t *testing.T) {
	root := t.TempDir()
	b := NewBackend()

	corrupt := filepath.Join(root, "corrupt")
	require.NoError(t, os.MkdirAll(corrupt, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(corrupt, indexFileName), []byte("{not json"), 0644))
	_, err := b.Load(context.Background(), "corrupt", corrupt)
	assert.Error(t, err)

	foreign := filepath.Join(root, "foreign")
	require.NoError(t, os.MkdirAll(foreign, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(foreign, indexFileName), []byte(`{"version": 99}`), 0644))
	_, err = b.Load(context.Background(), "foreign", foreign)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = b.Load(context.Background(), "missing", filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestIndexFailsWithoutDocuments(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeDocs(t, src, map[string]string{"scan.pdf": "%PDF-1.7"})

	_, err := NewBackend().Index(context.Background(), retrieval.IndexRequest{
		SessionId: "s1",
		SourceDir: src,
		IndexPath: filepath.Join(root, "index"),
	})
	assert.Error(t, err)
}
