package ws

import (
	"encoding/json"

	"sfcollab/internal/domain"
)

// Client events.
const (
	EventSendMessage = "sendMessage"
	EventMarkAsRead  = "markAsRead"
)

// Server events.
const (
	EventAck                 = "ack"
	EventInitialOnlineStatus = "initialOnlineStatus"
	EventUserOnline          = "userOnline"
	EventUserOffline         = "userOffline"
	EventNewMessage          = "newMessage"
	EventUnreadCountUpdate   = "unreadCountUpdate"
	EventUnauthorized        = "unauthorized"
)

const (
	ackSuccess = "success"
	ackError   = "error"
)

// Ack and rejection texts shown to clients.
const (
	msgAuthRequired      = "Authentication required"
	msgInvalidToken      = "Invalid token"
	msgRecipientRequired = "Recipient ID is required"
	msgSendFailed        = "Failed to send message"
	msgRateLimited       = "Too many messages"
	msgMarkReadFailed    = "Failed to mark messages as read"
	msgInvalidPayload    = "Invalid payload"
	msgUnknownEvent      = "Unknown event"
)

// inbound is a client frame. AckID is set when the client expects an ack.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	AckID *int64          `json:"ackId,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	AckID *int64 `json:"ackId,omitempty"`
	Data  any    `json:"data"`
}

// ackPayload carries either an error text or, for sends, the message view.
type ackPayload struct {
	Status  string `json:"status"`
	Message any    `json:"message,omitempty"`
}

type sendMessagePayload struct {
	RecipientID string                 `json:"recipientId"`
	Content     string                 `json:"content"`
	File        *domain.FileDescriptor `json:"file"`
	SenderName  string                 `json:"senderName"`
	TempID      string                 `json:"tempId"`
}

type unreadCountPayload struct {
	Count    int    `json:"count"`
	ReaderID string `json:"readerId"`
}

type unauthorizedPayload struct {
	Message string `json:"message"`
}

// decodeIDs accepts a bare array or an object with a messageIds field.
func decodeIDs(raw json.RawMessage) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids, nil
	}
	var wrapped struct {
		MessageIDs []string `json:"messageIds"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.MessageIDs, nil
}
