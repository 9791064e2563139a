package index

import (
	"context"
	"fmt"
	"time"

	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/apperr"
	"docqa-be/pkg/keylock"
	"docqa-be/pkg/retrieval"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const moduleName = "ModelCache"

// Cache holds at most one loaded retrieval handle per session.
//
// Entries never expire; they leave the cache through Evict, through Put
// replacing them, or through Close at shutdown. Every removal closes the
// handle. Loads for one session are serialized and a handle is inserted
// only after it is fully loaded, so readers never observe a partial one.
type Cache struct {
	items       *cache.Cache
	locks       *keylock.KeyLock
	dir         *Directory
	loader      retrieval.Loader
	slots       *semaphore.Weighted
	loadTimeout time.Duration
	logger      logger.ILogger
}

type CacheOption func(*Cache)

// WithLoadWorkers bounds how many loads may run at once across all sessions.
func WithLoadWorkers(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.loadTimeout = d
	}
}

func NewCache(dir *Directory, loader retrieval.Loader, log logger.ILogger, opts ...CacheOption) *Cache {
	c := &Cache{
		items:       cache.New(cache.NoExpiration, 0),
		locks:       keylock.New(),
		dir:         dir,
		loader:      loader,
		slots:       semaphore.NewWeighted(2),
		loadTimeout: 5 * time.Minute,
		logger:      log,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.items.OnEvicted(func(sessionId string, v interface{}) {
		c.closeHandle(sessionId, v.(retrieval.Handle))
	})

	return c
}

// Get is a pure lookup; it never loads.
func (c *Cache) Get(sessionId string) (retrieval.Handle, bool) {
	if v, found := c.items.Get(sessionId); found {
		return v.(retrieval.Handle), true
	}
	return nil, false
}

// EnsureLoaded returns the cached handle, loading it from the index
// directory first if needed. It returns apperr.ErrIndexNotFound when the
// session has no artifact and *apperr.LoadError when loading fails.
func (c *Cache) EnsureLoaded(ctx context.Context, sessionId string) (retrieval.Handle, error) {
	if h, ok := c.Get(sessionId); ok {
		return h, nil
	}

	unlock := c.locks.Lock(sessionId)
	defer unlock()

	if h, ok := c.Get(sessionId); ok {
		return h, nil
	}

	if !c.dir.Exists(sessionId) {
		return nil, apperr.ErrIndexNotFound
	}

	ctx, span := otel.Tracer("docqa/index").Start(ctx, "ModelCache.Load")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionId))

	if err := c.slots.Acquire(ctx, 1); err != nil {
		return nil, &apperr.LoadError{SessionId: sessionId, Err: err}
	}
	defer c.slots.Release(1)

	loadCtx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	defer cancel()

	start := time.Now()
	h, err := c.loader.Load(loadCtx, sessionId, c.dir.PathFor(sessionId))
	if err == nil && loadCtx.Err() != nil {
		// The loader finished after the deadline; drop the late handle.
		c.closeHandle(sessionId, h)
		err = loadCtx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		c.logger.Error(moduleName, "Failed to load index", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return nil, &apperr.LoadError{SessionId: sessionId, Err: err}
	}

	c.items.Set(sessionId, h, cache.NoExpiration)
	c.logger.Info(moduleName, "Index loaded", map[string]interface{}{
		"session_id":  sessionId,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return h, nil
}

// Put registers a freshly built handle, closing any different handle it replaces.
func (c *Cache) Put(sessionId string, h retrieval.Handle) {
	unlock := c.locks.Lock(sessionId)
	defer unlock()

	old, hadOld := c.Get(sessionId)
	c.items.Set(sessionId, h, cache.NoExpiration)
	if hadOld && old != h {
		c.closeHandle(sessionId, old)
	}
}

// Evict removes and closes the handle for the session, if any.
func (c *Cache) Evict(sessionId string) {
	unlock := c.locks.Lock(sessionId)
	defer unlock()

	c.items.Delete(sessionId)
}

// Warm eagerly loads every artifact in the index directory. Failures are
// logged per session and never abort the warm-up. It returns how many
// handles are cached afterwards.
func (c *Cache) Warm(ctx context.Context, parallelism int) int {
	ids, err := c.dir.ListIds()
	if err != nil {
		c.logger.Error(moduleName, "Failed to enumerate index directory", map[string]interface{}{
			"root":  c.dir.Root(),
			"error": err.Error(),
		})
		return c.Len()
	}
	if len(ids) == 0 {
		c.logger.Warn(moduleName, "No existing indexes to load", map[string]interface{}{"root": c.dir.Root()})
		return 0
	}

	if parallelism <= 0 {
		parallelism = 1
	}

	var g errgroup.Group
	g.SetLimit(parallelism)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := c.EnsureLoaded(ctx, id); err != nil {
				c.logger.Warn(moduleName, "Skipping index at startup", map[string]interface{}{
					"session_id": id,
					"error":      err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	loaded := c.Len()
	c.logger.Info(moduleName, "Cache warmed", map[string]interface{}{
		"artifacts": len(ids),
		"loaded":    loaded,
	})
	return loaded
}

func (c *Cache) Len() int {
	return c.items.ItemCount()
}

// Close evicts every handle. Used at process shutdown.
func (c *Cache) Close() {
	for sessionId := range c.items.Items() {
		c.Evict(sessionId)
	}
}

func (c *Cache) closeHandle(sessionId string, h retrieval.Handle) {
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		c.logger.Warn(moduleName, "Failed to release index handle", map[string]interface{}{
			"session_id": sessionId,
			"error":      fmt.Sprint(err),
		})
	}
}
