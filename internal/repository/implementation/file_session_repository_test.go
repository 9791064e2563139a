package implementation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"docqa-be/internal/entity"
	"docqa-be/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSessionRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := NewFileSessionRepository(dir)
	require.NoError(t, err)

	s := entity.NewSession("a1b2", "Session 1")
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.FindById(ctx, "a1b2")
	require.NoError(t, err)
	assert.Equal(t, "Session 1", got.Name)
	assert.Empty(t, got.ChatHistory)
	assert.Empty(t, got.IndexedFiles)

	got.IndexedFiles = append(got.IndexedFiles, "a.pdf")
	got.ChatHistory = append(got.ChatHistory, entity.ChatTurn{Role: entity.ChatRoleUser, Content: "hi"})
	require.NoError(t, repo.Save(ctx, got))

	again, err := repo.FindById(ctx, "a1b2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, again.IndexedFiles)
	assert.Equal(t, "hi", again.ChatHistory[0].Content)
}

func TestFileSessionRepositoryLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := NewFileSessionRepository(dir)
	require.NoError(t, err)

	s := entity.NewSession("abc", "Research Notes")
	s.IndexedFiles = []string{"a.pdf", "a.pdf"}
	s.ChatHistory = []entity.ChatTurn{{Role: "user", Content: "q"}, {Role: "assistant", Content: "a"}}
	require.NoError(t, repo.Create(ctx, s))

	raw, err := os.ReadFile(filepath.Join(dir, "abc.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "Research Notes", doc["session_name"])
	assert.Len(t, doc["indexed_files"], 2)
	history := doc["chat_history"].([]any)
	assert.Equal(t, map[string]any{"role": "user", "content": "q"}, history[0])
}

func TestFileSessionRepositoryReadsExistingDocuments(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	legacy := `{"session_name": "Session 4", "chat_history": [{"role": "user", "content": "hello"}], "indexed_files": ["x.pdf"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy-id.json"), []byte(legacy), 0644))

	repo, err := NewFileSessionRepository(dir)
	require.NoError(t, err)

	got, err := repo.FindById(ctx, "legacy-id")
	require.NoError(t, err)
	assert.Equal(t, "Session 4", got.Name)
	assert.Equal(t, []string{"x.pdf"}, got.IndexedFiles)
}

func TestFileSessionRepositoryNotFoundAndDelete(t *testing.T) {
	ctx := context.Background()
	repo, err := NewFileSessionRepository(t.TempDir())
	require.NoError(t, err)

	_, err = repo.FindById(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = repo.FindById(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, repo.Create(ctx, entity.NewSession("gone", "Session 1")))
	require.NoError(t, repo.Delete(ctx, "gone"))
	require.NoError(t, repo.Delete(ctx, "gone"))

	_, err = repo.FindById(ctx, "gone")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFileSessionRepositorySaveDoesNotRecreate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := NewFileSessionRepository(dir)
	require.NoError(t, err)

	s := entity.NewSession("gone", "Session 1")
	require.NoError(t, repo.Create(ctx, s))
	require.NoError(t, repo.Delete(ctx, "gone"))

	s.IndexedFiles = []string{"late.pdf"}
	assert.ErrorIs(t, repo.Save(ctx, s), apperr.ErrNotFound)

	_, err = os.Stat(filepath.Join(dir, "gone.json"))
	assert.True(t, os.IsNotExist(err))
	ids, err := repo.ListIds(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileSessionRepositoryListIds(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := NewFileSessionRepository(dir)
	require.NoError(t, err)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, repo.Create(ctx, entity.NewSession(id, id)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0755))

	ids, err := repo.ListIds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestFileSessionRepositoryRejectsUnsafeIds(t *testing.T) {
	ctx := context.Background()
	repo, err := NewFileSessionRepository(t.TempDir())
	require.NoError(t, err)

	err = repo.Create(ctx, entity.NewSession("../escape", "x"))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
