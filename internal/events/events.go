// Package events publishes messaging domain events for downstream consumers
// such as the notification service.
package events

import (
	"context"
	"time"
)

const (
	TypeMessageSent = "message.sent"
	TypeMessageRead = "message.read"
)

// Event is the envelope written to the event stream.
type Event struct {
	Type        string    `json:"type"`
	MessageIDs  []string  `json:"messageIds"`
	SenderID    string    `json:"senderId,omitempty"`
	RecipientID string    `json:"recipientId"`
	MessageType string    `json:"messageType,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Key partitions events by recipient so a consumer sees one user's events in order.
func (e Event) Key() string {
	return e.RecipientID
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
