package nats

import (
	"testing"
	"time"

	"docqa-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	e, err := DecodeEvent("events.session.deleted", []byte(`{"session_id":"s1","origin":"node-a","occurred_at":"2026-01-02T03:04:05Z"}`))
	require.NoError(t, err)

	assert.Equal(t, events.SessionDeleted, e.EventType())
	assert.Equal(t, "s1", events.SessionIdOf(e))
	assert.Equal(t, "node-a", events.OriginOf(e))
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), e.Timestamp())
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent("events.session.deleted", []byte(`not json`))
	assert.Error(t, err)
}
