package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docqa-be/internal/config"
	"docqa-be/internal/dto"
	"docqa-be/internal/entity"
	"docqa-be/internal/pkg/logger"
	"docqa-be/internal/repository/contract"
	"docqa-be/internal/repository/implementation"
	"docqa-be/pkg/apperr"
	"docqa-be/pkg/events"
	"docqa-be/pkg/index"
	"docqa-be/pkg/rag/response"
	"docqa-be/pkg/retrieval"
	"docqa-be/pkg/retrieval/lexical"
	"docqa-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu     sync.Mutex
	calls  int
	refs   []retrieval.DocumentRef
	params response.DisplayParams
	answer string
	err    error
}

func (g *fakeGenerator) Generate(ctx context.Context, refs []retrieval.DocumentRef, query string, params response.DisplayParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.refs = refs
	g.params = params
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

type countingHandle struct {
	closed atomic.Bool
}

func (h *countingHandle) Search(ctx context.Context, query string, k int) ([]retrieval.DocumentRef, error) {
	return nil, nil
}

func (h *countingHandle) Close() error {
	h.closed.Store(true)
	return nil
}

type env struct {
	cfg       *config.Config
	store     *session.Store
	dir       *index.Directory
	cache     *index.Cache
	lifecycle *session.Lifecycle
	generator *fakeGenerator
	chat      IChatService
	sessions  ISessionService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()

	cfg := &config.Config{
		Storage: config.StorageConfig{
			SessionFolder: filepath.Join(root, "sessions"),
			IndexFolder:   filepath.Join(root, ".byaldi"),
			UploadFolder:  filepath.Join(root, "uploads"),
			StaticFolder:  filepath.Join(root, "static", "images"),
		},
		Retrieval: config.RetrievalConfig{
			Backend:      "lexical",
			IndexerModel: "vidore/colpali",
			TopK:         3,
			IndexWorkers: 1,
			LoadWorkers:  1,
			IndexTimeout: time.Minute,
			LoadTimeout:  time.Minute,
		},
		Generation: config.GenerationConfig{
			DefaultModel:      "qwen",
			Timeout:           time.Minute,
			Workers:           2,
			DefaultResizedDim: 280,
		},
	}

	repo, err := implementation.NewFileSessionRepository(cfg.Storage.SessionFolder)
	require.NoError(t, err)
	dir, err := index.NewDirectory(cfg.Storage.IndexFolder)
	require.NoError(t, err)

	log := logger.NewNopLogger()
	backend := lexical.NewBackend()
	cache := index.NewCache(dir, backend, log)
	store := session.NewStore(repo, nil)
	lifecycle := session.NewLifecycle(store, dir, cache, log,
		session.WithIndexer(backend),
		session.WithUploadRoot(cfg.Storage.UploadFolder),
		session.WithImageRoot(cfg.Storage.StaticFolder),
	)
	gen := &fakeGenerator{answer: "The launch date is March 3."}

	return &env{
		cfg:       cfg,
		store:     store,
		dir:       dir,
		cache:     cache,
		lifecycle: lifecycle,
		generator: gen,
		chat:      NewChatService(lifecycle, gen, cfg, "/static/images", log),
		sessions:  NewSessionService(lifecycle),
	}
}

type upload struct {
	name    string
	content string
}

func fileHeaders(t *testing.T, files ...upload) []*multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["files"]
}

func TestChatService_UploadAndGenerate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.sessions.Create(ctx)
	require.NoError(t, err)

	res, err := e.chat.Upload(ctx, created.SessionId, fileHeaders(t,
		upload{"launch.txt", "The product launch date is March 3 in Jakarta."},
		upload{"budget.md", "Budget review happens every quarter."},
	), "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"launch.txt", "budget.md"}, res.IndexedFiles)
	assert.Equal(t, 2, res.TotalIndexed)
	assert.Equal(t, "vidore/colpali", res.IndexerModel)
	assert.True(t, e.dir.Exists(created.SessionId))

	out, err := e.chat.Generate(ctx, created.SessionId, &dto.GenerateRequest{Query: "launch date"})
	require.NoError(t, err)
	assert.Equal(t, "The launch date is March 3.", out.Response)
	require.NotEmpty(t, out.Pages)
	assert.Equal(t, "launch.txt", out.Pages[0].Filename)
	assert.Empty(t, out.Images)

	assert.Equal(t, "qwen", e.generator.params.Model)
	assert.Equal(t, 280, e.generator.params.ResizedHeight)
	assert.Equal(t, 280, e.generator.params.ResizedWidth)

	history, err := e.sessions.History(ctx, created.SessionId)
	require.NoError(t, err)
	require.Len(t, history.ChatHistory, 2)
	assert.Equal(t, dto.ChatTurnDTO{Role: entity.ChatRoleUser, Content: "launch date"}, history.ChatHistory[0])
	assert.Equal(t, entity.ChatRoleAssistant, history.ChatHistory[1].Role)
}

func TestChatService_UploadSkipsNonTextFiles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.sessions.Create(ctx)
	require.NoError(t, err)

	res, err := e.chat.Upload(ctx, created.SessionId, fileHeaders(t,
		upload{"launch.txt", "The product launch date is March 3 in Jakarta."},
		upload{"scan.pdf", "%PDF-1.7"},
	), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"launch.txt"}, res.IndexedFiles)
	assert.Equal(t, 1, res.TotalIndexed)

	files, err := e.sessions.IndexedFiles(ctx, created.SessionId)
	require.NoError(t, err)
	assert.Equal(t, []string{"launch.txt"}, files.IndexedFiles)
}

func TestChatService_UploadAfterDeleteLeavesNoFolder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.sessions.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, e.sessions.Delete(ctx, created.SessionId))

	_, err = e.chat.Upload(ctx, created.SessionId, fileHeaders(t, upload{"a.txt", "alpha"}), "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoDirExists(t, filepath.Join(e.cfg.Storage.UploadFolder, created.SessionId))
	assert.False(t, e.dir.Exists(created.SessionId))
}

func TestChatService_UploadValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.sessions.Create(ctx)
	require.NoError(t, err)

	tests := []struct {
		name      string
		sessionId string
		files     []*multipart.FileHeader
		wantErr   error
	}{
		{
			name:      "No files",
			sessionId: created.SessionId,
			files:     nil,
			wantErr:   apperr.ErrInvalidInput,
		},
		{
			name:      "Unknown session",
			sessionId: "missing",
			files:     fileHeaders(t, upload{"a.txt", "alpha"}),
			wantErr:   apperr.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.chat.Upload(ctx, tt.sessionId, tt.files, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestChatService_UploadStripsDirectories(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.sessions.Create(ctx)
	require.NoError(t, err)

	res, err := e.chat.Upload(ctx, created.SessionId, fileHeaders(t,
		upload{"../../escape.txt", "nothing to see here"},
	), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"escape.txt"}, res.IndexedFiles)

	_, err = os.Stat(filepath.Join(e.lifecycle.UploadDir(created.SessionId), "escape.txt"))
	assert.NoError(t, err)
}

func TestChatService_GenerateErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.sessions.Create(ctx)
	require.NoError(t, err)

	t.Run("Unsupported model", func(t *testing.T) {
		_, err := e.chat.Generate(ctx, created.SessionId, &dto.GenerateRequest{Query: "q", GenerationModel: "gpt-9"})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})

	t.Run("Nothing indexed", func(t *testing.T) {
		_, err := e.chat.Generate(ctx, created.SessionId, &dto.GenerateRequest{Query: "q"})
		assert.ErrorIs(t, err, apperr.ErrIndexNotFound)
	})

	t.Run("Generator failure leaves history untouched", func(t *testing.T) {
		_, err := e.chat.Upload(ctx, created.SessionId, fileHeaders(t, upload{"a.txt", "alpha beta"}), "")
		require.NoError(t, err)

		e.generator.err = apperr.External("generate", errors.New("upstream down"))
		_, err = e.chat.Generate(ctx, created.SessionId, &dto.GenerateRequest{Query: "alpha"})
		var ext *apperr.ExternalError
		assert.ErrorAs(t, err, &ext)

		history, err := e.sessions.History(ctx, created.SessionId)
		require.NoError(t, err)
		assert.Empty(t, history.ChatHistory)
	})
}

func TestChatService_Options(t *testing.T) {
	e := newEnv(t)
	opts := e.chat.Options()
	assert.Equal(t, "qwen", opts.DefaultGenerationModel)
	assert.Equal(t, "lexical", opts.RetrievalBackend)
	assert.Contains(t, opts.GenerationModels, "qwen")
	assert.Equal(t, 280, opts.DefaultResizedHeight)
}

func TestSessionService_ListAndRename(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.sessions.Create(ctx)
	require.NoError(t, err)
	_, err = e.sessions.Create(ctx)
	require.NoError(t, err)

	renamed, err := e.sessions.Rename(ctx, first.SessionId, &dto.RenameSessionRequest{SessionName: "Quarterly reports"})
	require.NoError(t, err)
	assert.Equal(t, "Quarterly reports", renamed.SessionName)

	list, err := e.sessions.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Quarterly reports", list[0].SessionName)
	assert.Equal(t, "Session 2", list[1].SessionName)

	require.NoError(t, e.sessions.Delete(ctx, first.SessionId))
	_, err = e.sessions.Show(ctx, first.SessionId)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCleanupService_Sweep(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	live, err := e.sessions.Create(ctx)
	require.NoError(t, err)

	orphanIndex := e.dir.PathFor("ghost")
	orphanUpload := filepath.Join(e.cfg.Storage.UploadFolder, "ghost")
	liveUpload := filepath.Join(e.cfg.Storage.UploadFolder, live.SessionId)
	for _, p := range []string{orphanIndex, orphanUpload, liveUpload} {
		require.NoError(t, os.MkdirAll(p, 0755))
	}

	svc := NewCleanupService(nil, events.CleanupTopic, e.store, e.dir, e.cache,
		[]string{e.cfg.Storage.UploadFolder, e.cfg.Storage.StaticFolder}, logger.NewNopLogger())

	report, err := svc.Sweep(ctx, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{orphanIndex, orphanUpload}, report.Orphans)
	assert.Empty(t, report.Removed)
	assert.DirExists(t, orphanIndex)

	report, err = svc.Sweep(ctx, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{orphanIndex, orphanUpload}, report.Removed)
	assert.NoDirExists(t, orphanIndex)
	assert.NoDirExists(t, orphanUpload)
	assert.DirExists(t, liveUpload)
}

// lateCreateRepo runs afterList once the id snapshot has been taken.
type lateCreateRepo struct {
	contract.SessionRepository
	afterList func()
}

func (r *lateCreateRepo) ListIds(ctx context.Context) ([]string, error) {
	ids, err := r.SessionRepository.ListIds(ctx)
	if r.afterList != nil {
		r.afterList()
	}
	return ids, err
}

func TestCleanupService_SweepKeepsSessionCreatedDuringScan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	base, err := implementation.NewFileSessionRepository(e.cfg.Storage.SessionFolder)
	require.NoError(t, err)

	var lateId string
	repo := &lateCreateRepo{SessionRepository: base}
	repo.afterList = func() {
		created, err := e.sessions.Create(ctx)
		require.NoError(t, err)
		lateId = created.SessionId
		require.NoError(t, os.MkdirAll(e.dir.PathFor(lateId), 0755))
		require.NoError(t, os.MkdirAll(filepath.Join(e.cfg.Storage.UploadFolder, lateId), 0755))
	}

	orphan := filepath.Join(e.cfg.Storage.UploadFolder, "ghost")
	require.NoError(t, os.MkdirAll(orphan, 0755))

	svc := NewCleanupService(nil, events.CleanupTopic, session.NewStore(repo, nil), e.dir, e.cache,
		[]string{e.cfg.Storage.UploadFolder, e.cfg.Storage.StaticFolder}, logger.NewNopLogger())

	report, err := svc.Sweep(ctx, false)
	require.NoError(t, err)
	require.NotEmpty(t, lateId)

	assert.Equal(t, []string{orphan}, report.Removed)
	assert.DirExists(t, e.dir.PathFor(lateId))
	assert.DirExists(t, filepath.Join(e.cfg.Storage.UploadFolder, lateId))
}

func TestCleanupService_Consume(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	svc := NewCleanupService(pubSub, events.CleanupTopic, e.store, e.dir, e.cache,
		[]string{e.cfg.Storage.UploadFolder}, logger.NewNopLogger())
	require.NoError(t, svc.Consume(ctx))

	live, err := e.sessions.Create(ctx)
	require.NoError(t, err)

	orphan := filepath.Join(e.cfg.Storage.UploadFolder, "ghost")
	kept := filepath.Join(e.cfg.Storage.UploadFolder, live.SessionId)
	outside := filepath.Join(t.TempDir(), "ghost")
	for _, p := range []string{orphan, kept, outside} {
		require.NoError(t, os.MkdirAll(p, 0755))
	}

	publish := func(sessionId, path string) {
		payload, err := json.Marshal(map[string]interface{}{
			events.KeySessionId: sessionId,
			events.KeyPath:      path,
		})
		require.NoError(t, err)
		require.NoError(t, pubSub.Publish(events.CleanupTopic, message.NewMessage(watermill.NewUUID(), payload)))
	}

	publish(live.SessionId, kept)
	publish("ghost", outside)
	publish("ghost", orphan)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(orphan)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
	assert.DirExists(t, kept)
	assert.DirExists(t, outside)
}

func TestSessionEventHandler(t *testing.T) {
	e := newEnv(t)
	handler := NewSessionEventHandler(e.cache, "instance-a", logger.NewNopLogger())
	ctx := context.Background()

	tests := []struct {
		name        string
		eventType   string
		origin      string
		wantEvicted bool
	}{
		{name: "Deleted elsewhere", eventType: events.SessionDeleted, origin: "instance-b", wantEvicted: true},
		{name: "Indexed elsewhere", eventType: events.SessionIndexed, origin: "instance-b", wantEvicted: true},
		{name: "Own event", eventType: events.SessionDeleted, origin: "instance-a", wantEvicted: false},
		{name: "Created elsewhere", eventType: events.SessionCreated, origin: "instance-b", wantEvicted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &countingHandle{}
			e.cache.Put("s1", h)
			t.Cleanup(func() { e.cache.Evict("s1") })

			err := handler(ctx, events.NewSessionEvent(tt.eventType, "s1", tt.origin, nil))
			require.NoError(t, err)

			_, cached := e.cache.Get("s1")
			assert.Equal(t, !tt.wantEvicted, cached)
			assert.Equal(t, tt.wantEvicted, h.closed.Load())
		})
	}
}
