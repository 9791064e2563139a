package events

import (
	"context"
	"time"
)

// Event is anything published on an event bus.
type Event interface {
	// EventType is the dotted type, e.g. "session.deleted". On NATS it
	// becomes the subject suffix.
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

// BaseEvent is the only Event implementation; session events differ by
// Type and payload keys.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string { return e.Type }
func (e BaseEvent) Payload() map[string]interface{} { return e.Data }
func (e BaseEvent) Timestamp() time.Time { return e.OccurredAt }

const (
	SessionCreated   = "session.created"
	SessionDeleted   = "session.deleted"
	SessionIndexed   = "session.indexed"
	CleanupRequested = "cleanup.requested"
)

// Payload keys shared by publishers and subscribers.
const (
	KeySessionId  = "session_id"
	KeyOrigin     = "origin"
	KeyOccurredAt = "occurred_at"
	KeyFiles      = "files"
	KeyPath       = "path"
	KeyReason     = "reason"
)

// Publisher is implemented by every event sink (NATS, the in-process
// cleanup bus, or nothing at all).
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }

// NewSessionEvent builds an event about one session. origin identifies the
// emitting instance so it can ignore its own broadcasts.
func NewSessionEvent(eventType, sessionId, origin string, extra map[string]interface{}) BaseEvent {
	now := time.Now().UTC()
	data := map[string]interface{}{
		KeySessionId:  sessionId,
		KeyOrigin:     origin,
		KeyOccurredAt: now.Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: now}
}

// SessionIdOf extracts the session id from a payload, or "".
func SessionIdOf(e Event) string {
	return stringField(e, KeySessionId)
}

func OriginOf(e Event) string {
	return stringField(e, KeyOrigin)
}

func stringField(e Event, key string) string {
	if e == nil || e.Payload() == nil {
		return ""
	}
	s, _ := e.Payload()[key].(string)
	return s
}
