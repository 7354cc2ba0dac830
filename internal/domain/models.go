package domain

import "time"

// User represents an application user. IDs are opaque strings.
type User struct {
	ID             string    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	Avatar         *string   `db:"avatar" json:"avatar,omitempty"`
	Email          *string   `db:"email" json:"email,omitempty"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// MessageType is derived from the attachment at creation time.
type MessageType string

const (
	MessageTypeText      MessageType = "text"
	MessageTypeFile      MessageType = "file"
	MessageTypeVoiceNote MessageType = "voice_note"
)

// MessageStatus is the lifecycle tag of a message. StatusDelivered is part of
// the enumeration but no code path sets it.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// FileDescriptor references an uploaded attachment.
type FileDescriptor struct {
	URL         string  `json:"url"`
	Name        string  `json:"name,omitempty"`
	MimeType    string  `json:"mimeType,omitempty"`
	Size        int64   `json:"size,omitempty"`
	IsVoiceNote bool    `json:"isVoiceNote"`
	Duration    float64 `json:"duration,omitempty"`
}

// DeriveMessageType computes the message type from an optional attachment.
func DeriveMessageType(f *FileDescriptor) MessageType {
	switch {
	case f == nil:
		return MessageTypeText
	case f.IsVoiceNote:
		return MessageTypeVoiceNote
	default:
		return MessageTypeFile
	}
}

// Message represents a single direct message between two users.
type Message struct {
	ID          MessageID       `db:"id"`
	SenderID    string          `db:"sender_id"`
	RecipientID string          `db:"recipient_id"`
	Content     string          `db:"content"` // encrypted at rest
	File        *FileDescriptor `db:"file"`
	MessageType MessageType     `db:"message_type"`
	Status      MessageStatus   `db:"status"`
	IsRead      bool            `db:"is_read"`
	Timestamp   time.Time       `db:"timestamp"`
}

// ReadMark identifies a message that a read receipt flipped to read.
type ReadMark struct {
	ID       MessageID
	SenderID string
}
