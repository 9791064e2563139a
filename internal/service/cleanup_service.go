package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/apperr"
	"docqa-be/pkg/events"
	"docqa-be/pkg/index"
	"docqa-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill/message"
)

// CleanupReport lists per-session folders that have no session record.
type CleanupReport struct {
	Orphans []string `json:"orphans"`
	Removed []string `json:"removed"`
	Failed  []string `json:"failed"`
}

type ICleanupService interface {
	// Consume handles cleanup requests published when a delete could not
	// remove everything.
	Consume(ctx context.Context) error

	// Sweep scans the index, upload and image roots for folders whose
	// session no longer exists and removes them unless dryRun is set.
	Sweep(ctx context.Context, dryRun bool) (*CleanupReport, error)
}

type cleanupService struct {
	subscriber message.Subscriber
	topic      string
	store      *session.Store
	dir        *index.Directory
	cache      *index.Cache
	roots      []string
	logger     logger.ILogger
}

// NewCleanupService builds the reclaimer. cache may be nil for one-shot
// runs outside the server. roots are the upload and image folders.
func NewCleanupService(
	subscriber message.Subscriber,
	topic string,
	store *session.Store,
	dir *index.Directory,
	cache *index.Cache,
	roots []string,
	log logger.ILogger,
) ICleanupService {
	return &cleanupService{
		subscriber: subscriber,
		topic:      topic,
		store:      store,
		dir:        dir,
		cache:      cache,
		roots:      roots,
		logger:     log,
	}
}

func (cs *cleanupService) Consume(ctx context.Context) error {
	if cs.subscriber == nil {
		return errors.New("cleanup consumer has no subscriber")
	}
	messages, err := cs.subscriber.Subscribe(ctx, cs.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *cleanupService) processMessage(ctx context.Context, msg *message.Message) {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CleanupService", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	sessionId, _ := payload[events.KeySessionId].(string)
	target, _ := payload[events.KeyPath].(string)

	// A record with this id means the session was recreated; keep its data.
	if _, err := cs.store.Load(ctx, sessionId); err == nil {
		msg.Ack()
		return
	} else if !errors.Is(err, apperr.ErrNotFound) {
		cs.logger.Warn("CleanupService", "Cannot verify session, will retry", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}

	if !cs.owned(target) {
		cs.logger.Warn("CleanupService", "Refusing to remove path outside managed roots", map[string]interface{}{
			"session_id": sessionId,
			"path":       target,
		})
		msg.Ack()
		return
	}

	if err := os.RemoveAll(target); err != nil {
		// Left for the next sweep.
		cs.logger.Error("CleanupService", "Cleanup failed", map[string]interface{}{
			"session_id": sessionId,
			"path":       target,
			"error":      err.Error(),
		})
		msg.Ack()
		return
	}
	if cs.cache != nil {
		cs.cache.Evict(sessionId)
	}

	cs.logger.Info("CleanupService", "Orphan removed", map[string]interface{}{
		"session_id": sessionId,
		"path":       target,
	})
	msg.Ack()
}

func (cs *cleanupService) Sweep(ctx context.Context, dryRun bool) (*CleanupReport, error) {
	ids, err := cs.store.ListIds(ctx)
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		live[id] = struct{}{}
	}

	report := &CleanupReport{Orphans: []string{}, Removed: []string{}, Failed: []string{}}

	artifacts, err := cs.dir.ListIds()
	if err != nil {
		return nil, err
	}
	candidates := make([]string, 0, len(artifacts))
	for _, id := range artifacts {
		candidates = append(candidates, cs.dir.PathFor(id))
	}
	for _, root := range cs.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				candidates = append(candidates, filepath.Join(root, e.Name()))
			}
		}
	}
	sort.Strings(candidates)

	for _, candidate := range candidates {
		id := filepath.Base(candidate)
		if _, ok := live[id]; ok {
			continue
		}
		// The id snapshot may predate a session created during the scan.
		if _, err := cs.store.Load(ctx, id); err == nil {
			continue
		} else if !errors.Is(err, apperr.ErrNotFound) {
			cs.logger.Warn("CleanupService", "Cannot verify session, skipping", map[string]interface{}{
				"session_id": id,
				"path":       candidate,
				"error":      err.Error(),
			})
			continue
		}
		report.Orphans = append(report.Orphans, candidate)
		if dryRun {
			continue
		}
		if err := os.RemoveAll(candidate); err != nil {
			report.Failed = append(report.Failed, candidate)
			cs.logger.Error("CleanupService", "Failed to remove orphan", map[string]interface{}{
				"path":  candidate,
				"error": err.Error(),
			})
			continue
		}
		if cs.cache != nil {
			cs.cache.Evict(id)
		}
		report.Removed = append(report.Removed, candidate)
	}

	cs.logger.Info("CleanupService", "Sweep finished", map[string]interface{}{
		"orphans": len(report.Orphans),
		"removed": len(report.Removed),
		"failed":  len(report.Failed),
		"dry_run": dryRun,
	})
	return report, nil
}

// owned reports whether p is a direct child of one of the managed roots.
func (cs *cleanupService) owned(p string) bool {
	if p == "" {
		return false
	}
	parent := filepath.Clean(filepath.Dir(p))
	roots := append([]string{cs.dir.Root()}, cs.roots...)
	for _, root := range roots {
		if filepath.Clean(root) == parent {
			return true
		}
	}
	return false
}
