package domain

import "time"

// MessageView is the wire shape of a message, from one participant's perspective.
type MessageView struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"senderId"`
	SenderName  string          `json:"senderName,omitempty"`
	RecipientID string          `json:"recipientId"`
	Content     string          `json:"content"`
	File        *FileDescriptor `json:"file"`
	MessageType MessageType     `json:"messageType"`
	Timestamp   time.Time       `json:"timestamp"`
	Status      MessageStatus   `json:"status"`
	IsRead      bool            `json:"isRead"`
	IsOwn       bool            `json:"isOwn"`
}

// NewMessageView projects a message for viewerID. Content must already be plaintext.
func NewMessageView(m *Message, content, viewerID string) MessageView {
	return MessageView{
		ID:          m.ID.Display(),
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     content,
		File:        m.File,
		MessageType: m.MessageType,
		Timestamp:   m.Timestamp,
		Status:      m.Status,
		IsRead:      m.IsRead,
		IsOwn:       m.SenderID == viewerID,
	}
}

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// ContactSummary is the contacts read-model, projected at query time.
type ContactSummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Avatar          *string   `json:"avatar"`
	Status          string    `json:"status"`
	IsOnline        bool      `json:"isOnline"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
}
