package domain

import (
	"context"
)

// UserDirectory defines persistence operations for users. GetByID and
// GetByUsername return (nil, nil) when the user does not exist.
type UserDirectory interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ListActive(ctx context.Context, offset, limit int) ([]*User, error)
}

// MessageStore defines persistence operations for direct messages.
type MessageStore interface {
	// Create assigns ID and Timestamp.
	Create(ctx context.Context, m *Message) error
	// ListBetween returns every message between a and b ordered by timestamp ascending.
	ListBetween(ctx context.Context, a, b string) ([]*Message, error)
	// LatestBetween returns the most recent message between a and b, or nil.
	LatestBetween(ctx context.Context, a, b string) (*Message, error)
	// CountUnread counts unread messages from senderID to recipientID.
	CountUnread(ctx context.Context, senderID, recipientID string) (int, error)
	// MarkRead marks the given messages read where recipientID matches and
	// returns one mark per message that changed. Messages addressed to
	// someone else or already read are left out.
	MarkRead(ctx context.Context, ids []MessageID, recipientID string) ([]ReadMark, error)
	// ListCounterparts returns the distinct users userID has exchanged messages with.
	ListCounterparts(ctx context.Context, userID string) ([]string, error)
}
