package service

import (
	"context"

	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/events"
	"docqa-be/pkg/index"
	pktNats "docqa-be/pkg/nats"
)

// NewSessionEventHandler keeps this instance's model cache in step with
// deletes and re-indexing done by other instances. Events this instance
// published itself are ignored.
func NewSessionEventHandler(cache *index.Cache, origin string, log logger.ILogger) pktNats.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		if events.OriginOf(event) == origin {
			return nil
		}
		sessionId := events.SessionIdOf(event)
		if sessionId == "" {
			return nil
		}

		switch event.EventType() {
		case events.SessionDeleted, events.SessionIndexed:
			// The next query reloads from the shared index folder.
			cache.Evict(sessionId)
			log.Info("SessionEvents", "Evicted cached index", map[string]interface{}{
				"session_id": sessionId,
				"event":      event.EventType(),
				"origin":     events.OriginOf(event),
			})
		}
		return nil
	}
}
