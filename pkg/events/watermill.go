package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// CleanupTopic carries requests to reclaim leftovers of deleted sessions.
const CleanupTopic = "docqa.cleanup"

// WatermillPublisher publishes events as JSON payloads on one watermill topic.
type WatermillPublisher struct {
	pub   message.Publisher
	topic string
}

var _ Publisher = &WatermillPublisher{}

func NewWatermillPublisher(pub message.Publisher, topic string) *WatermillPublisher {
	return &WatermillPublisher{pub: pub, topic: topic}
}

func (p *WatermillPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("event_type", event.EventType())
	msg.SetContext(ctx)

	return p.pub.Publish(p.topic, msg)
}
