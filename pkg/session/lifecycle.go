package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"docqa-be/internal/entity"
	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/apperr"
	"docqa-be/pkg/events"
	"docqa-be/pkg/index"
	"docqa-be/pkg/keylock"
	"docqa-be/pkg/retrieval"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

const moduleName = "SessionLifecycle"

// Summary is the listing view of a session.
type Summary struct {
	Id        string
	Name      string
	FileCount int
	TurnCount int
}

// Lifecycle coordinates the session store, the index directory and the
// model cache so that a session's record, artifact and handle stay
// consistent.
//
// Indexing and deletion of one session run inside a per-session critical
// section. Record mutations take the store's own lock inside it, and cache
// mutations take the cache's lock, so the three locks always nest in the
// same order.
type Lifecycle struct {
	store   *Store
	dir     *index.Directory
	cache   *index.Cache
	indexer retrieval.Indexer
	logger  logger.ILogger

	locks    *keylock.KeyLock
	createMu sync.Mutex

	workers      *semaphore.Weighted
	indexTimeout time.Duration

	uploadRoot string
	imageRoot  string

	events  events.Publisher
	cleanup events.Publisher
	origin  string
	newId   func() string
}

type Option func(*Lifecycle)

func WithIndexer(indexer retrieval.Indexer) Option {
	return func(l *Lifecycle) { l.indexer = indexer }
}

// WithIndexWorkers bounds concurrent indexing runs across all sessions.
func WithIndexWorkers(n int) Option {
	return func(l *Lifecycle) {
		if n > 0 {
			l.workers = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithIndexTimeout(d time.Duration) Option {
	return func(l *Lifecycle) { l.indexTimeout = d }
}

// WithUploadRoot and WithImageRoot name the per-session folders removed on delete.
func WithUploadRoot(dir string) Option {
	return func(l *Lifecycle) { l.uploadRoot = dir }
}

func WithImageRoot(dir string) Option {
	return func(l *Lifecycle) { l.imageRoot = dir }
}

func WithEventPublisher(p events.Publisher) Option {
	return func(l *Lifecycle) { l.events = p }
}

func WithCleanupPublisher(p events.Publisher) Option {
	return func(l *Lifecycle) { l.cleanup = p }
}

func WithOrigin(origin string) Option {
	return func(l *Lifecycle) { l.origin = origin }
}

func WithIdGenerator(fn func() string) Option {
	return func(l *Lifecycle) { l.newId = fn }
}

func NewLifecycle(store *Store, dir *index.Directory, cache *index.Cache, log logger.ILogger, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:        store,
		dir:          dir,
		cache:        cache,
		logger:       log,
		locks:        keylock.New(),
		workers:      semaphore.NewWeighted(2),
		indexTimeout: 30 * time.Minute,
		events:       events.NopPublisher{},
		cleanup:      events.NopPublisher{},
		newId:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewSession creates a record named "Session N" and returns it. Creation is
// serialized so two concurrent calls never pick the same default name.
func (l *Lifecycle) NewSession(ctx context.Context) (*entity.Session, error) {
	l.createMu.Lock()
	defer l.createMu.Unlock()

	existing, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		taken[s.Name] = struct{}{}
	}

	n := len(existing) + 1
	name := fmt.Sprintf("Session %d", n)
	for {
		if _, ok := taken[name]; !ok {
			break
		}
		n++
		name = fmt.Sprintf("Session %d", n)
	}

	session, err := l.store.Create(ctx, l.newId(), name)
	if err != nil {
		return nil, err
	}

	l.logger.Info(moduleName, "Session created", map[string]interface{}{
		"session_id":   session.Id,
		"session_name": session.Name,
	})
	l.publish(ctx, events.SessionCreated, session.Id, map[string]interface{}{"session_name": session.Name})
	return session, nil
}

// SwitchTo returns the record and tries to have its handle loaded. A
// missing or unloadable index does not fail the switch.
func (l *Lifecycle) SwitchTo(ctx context.Context, id string) (*entity.Session, error) {
	session, err := l.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := l.cache.EnsureLoaded(ctx, id); err != nil && !errors.Is(err, apperr.ErrIndexNotFound) {
		l.logger.Warn(moduleName, "Switched to session without a usable index", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
	}
	return session, nil
}

// RecordIndexedFiles appends files to the record and publishes handle as
// the session's live handle. If the record cannot be saved the handle is
// closed and the cache is left as it was.
func (l *Lifecycle) RecordIndexedFiles(ctx context.Context, id string, files []string, handle retrieval.Handle) (*entity.Session, error) {
	session, err := l.store.Update(ctx, id, func(s *entity.Session) error {
		s.IndexedFiles = append(s.IndexedFiles, files...)
		return nil
	})
	if err != nil {
		if handle != nil {
			_ = handle.Close()
		}
		return nil, err
	}

	if handle != nil {
		l.cache.Put(id, handle)
	}
	l.publish(ctx, events.SessionIndexed, id, map[string]interface{}{events.KeyFiles: files})
	return session, nil
}

// IndexDocuments builds the session's index from sourceDir and records
// files against it. Runs for the same session are serialized; runs for
// different sessions share the indexing worker capacity.
func (l *Lifecycle) IndexDocuments(ctx context.Context, id string, sourceDir string, files []string, model string) (*entity.Session, error) {
	if l.indexer == nil {
		return nil, apperr.External("index", errors.New("no indexer configured"))
	}

	unlock := l.locks.Lock(id)
	defer unlock()

	if _, err := l.store.Load(ctx, id); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("docqa/session").Start(ctx, "SessionLifecycle.Index")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.Int("files.count", len(files)),
		attribute.String("index.model", model),
	)

	ctx, cancel := context.WithTimeout(ctx, l.indexTimeout)
	defer cancel()

	if err := l.workers.Acquire(ctx, 1); err != nil {
		return nil, apperr.External("index", err)
	}
	defer l.workers.Release(1)

	start := time.Now()
	handle, err := l.indexer.Index(ctx, retrieval.IndexRequest{
		SessionId: id,
		SourceDir: sourceDir,
		IndexPath: l.dir.PathFor(id),
		ImageDir:  l.imageDir(id),
		Model:     model,
	})
	if err == nil && ctx.Err() != nil {
		_ = handle.Close()
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index failed")
		l.logger.Error(moduleName, "Indexing failed", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
		return nil, apperr.External("index", err)
	}

	files = l.dropSkipped(id, files, handle)

	l.logger.Info(moduleName, "Documents indexed", map[string]interface{}{
		"session_id":  id,
		"files":       len(files),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	session, err := l.RecordIndexedFiles(ctx, id, files, handle)
	if errors.Is(err, apperr.ErrNotFound) {
		l.discardOrphan(ctx, id)
	}
	return session, err
}

// dropSkipped removes from files the names the indexer reported as not indexed.
func (l *Lifecycle) dropSkipped(id string, files []string, handle retrieval.Handle) []string {
	reporter, ok := handle.(retrieval.SkipReporter)
	if !ok || len(reporter.Skipped()) == 0 {
		return files
	}

	skipped := make(map[string]struct{}, len(reporter.Skipped()))
	for _, name := range reporter.Skipped() {
		skipped[name] = struct{}{}
	}
	kept := make([]string, 0, len(files))
	dropped := make([]string, 0)
	for _, name := range files {
		if _, ok := skipped[name]; ok {
			dropped = append(dropped, name)
			continue
		}
		kept = append(kept, name)
	}
	if len(dropped) > 0 {
		l.logger.Warn(moduleName, "Indexer skipped files", map[string]interface{}{
			"session_id": id,
			"files":      dropped,
		})
	}
	return kept
}

// StageUpload creates the session's upload folder and runs save with it,
// holding the session lock so a Delete cannot remove the record in between.
func (l *Lifecycle) StageUpload(ctx context.Context, id string, save func(folder string) error) error {
	unlock := l.locks.Lock(id)
	defer unlock()

	if _, err := l.store.Load(ctx, id); err != nil {
		return err
	}

	folder := l.uploadDir(id)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return apperr.Storage("mkdir uploads", err)
	}
	return save(folder)
}

// Retrieve returns the top k pages for query from the session's index.
func (l *Lifecycle) Retrieve(ctx context.Context, id string, query string, k int) ([]retrieval.DocumentRef, error) {
	if _, err := l.store.Load(ctx, id); err != nil {
		return nil, err
	}

	handle, err := l.cache.EnsureLoaded(ctx, id)
	if err != nil {
		return nil, err
	}

	refs, err := handle.Search(ctx, query, k)
	if err != nil {
		return nil, apperr.External("retrieve", err)
	}
	return refs, nil
}

// AppendChat appends turns to the session's history in order.
func (l *Lifecycle) AppendChat(ctx context.Context, id string, turns ...entity.ChatTurn) (*entity.Session, error) {
	return l.store.Update(ctx, id, func(s *entity.Session) error {
		s.ChatHistory = append(s.ChatHistory, turns...)
		return nil
	})
}

func (l *Lifecycle) Rename(ctx context.Context, id string, name string) (*entity.Session, error) {
	return l.store.Rename(ctx, id, name)
}

func (l *Lifecycle) Get(ctx context.Context, id string) (*entity.Session, error) {
	return l.store.Load(ctx, id)
}

func (l *Lifecycle) GetIndexedFiles(ctx context.Context, id string) ([]string, error) {
	session, err := l.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.IndexedFiles, nil
}

func (l *Lifecycle) ListSessions(ctx context.Context) ([]Summary, error) {
	sessions, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, Summary{
			Id:        s.Id,
			Name:      s.Name,
			FileCount: len(s.IndexedFiles),
			TurnCount: len(s.ChatHistory),
		})
	}
	return summaries, nil
}

// Delete removes the record, then the index artifact and per-session
// folders, then the cached handle. Only a failure to remove the record is
// returned; later steps are logged and reported for cleanup, so calling
// Delete again is always safe.
func (l *Lifecycle) Delete(ctx context.Context, id string) error {
	unlock := l.locks.Lock(id)
	defer unlock()

	if err := l.store.Delete(ctx, id); err != nil {
		return err
	}

	l.removeFiles(ctx, id)
	l.cache.Evict(id)

	l.logger.Info(moduleName, "Session deleted", map[string]interface{}{"session_id": id})
	l.publish(ctx, events.SessionDeleted, id, nil)
	return nil
}

// discardOrphan drops what an indexing run produced for a session whose
// record was removed while it ran.
func (l *Lifecycle) discardOrphan(ctx context.Context, id string) {
	l.logger.Warn(moduleName, "Session removed during indexing, discarding artifact", map[string]interface{}{
		"session_id": id,
		"path":       l.dir.PathFor(id),
	})
	l.removeFiles(ctx, id)
	l.cache.Evict(id)
}

// removeFiles removes the index artifact and per-session folders. Failures
// are logged and published as cleanup requests.
func (l *Lifecycle) removeFiles(ctx context.Context, id string) {
	if err := l.dir.Delete(id); err != nil {
		l.logger.Error(moduleName, "Failed to remove index artifact", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
		l.requestCleanup(ctx, id, l.dir.PathFor(id), err)
	}

	for _, folder := range []string{l.uploadDir(id), l.imageDir(id)} {
		if folder == "" {
			continue
		}
		if err := os.RemoveAll(folder); err != nil {
			l.logger.Warn(moduleName, "Failed to remove session folder", map[string]interface{}{
				"session_id": id,
				"path":       folder,
				"error":      err.Error(),
			})
			l.requestCleanup(ctx, id, folder, err)
		}
	}
}

// UploadDir is where uploaded files for the session are stored before indexing.
func (l *Lifecycle) UploadDir(id string) string {
	return l.uploadDir(id)
}

func (l *Lifecycle) uploadDir(id string) string {
	if l.uploadRoot == "" {
		return ""
	}
	return filepath.Join(l.uploadRoot, id)
}

func (l *Lifecycle) imageDir(id string) string {
	if l.imageRoot == "" {
		return ""
	}
	return filepath.Join(l.imageRoot, id)
}

func (l *Lifecycle) publish(ctx context.Context, eventType string, id string, extra map[string]interface{}) {
	event := events.NewSessionEvent(eventType, id, l.origin, extra)
	if err := l.events.Publish(ctx, event); err != nil {
		l.logger.Warn(moduleName, "Failed to publish event", map[string]interface{}{
			"event":      eventType,
			"session_id": id,
			"error":      err.Error(),
		})
	}
}

func (l *Lifecycle) requestCleanup(ctx context.Context, id string, path string, cause error) {
	event := events.NewSessionEvent(events.CleanupRequested, id, l.origin, map[string]interface{}{
		events.KeyPath:   path,
		events.KeyReason: cause.Error(),
	})
	if err := l.cleanup.Publish(ctx, event); err != nil {
		l.logger.Warn(moduleName, "Failed to request cleanup", map[string]interface{}{
			"session_id": id,
			"path":       path,
			"error":      err.Error(),
		})
	}
}
