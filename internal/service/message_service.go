package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"sfcollab/internal/domain"
	"sfcollab/internal/events"
	"sfcollab/internal/presence"
	"sfcollab/internal/security"
)

const (
	unknownContactName = "Unknown User"
	filePreview        = "File"
)

// MessageService owns direct-message persistence and the read models built
// on it. It never pushes to connections; callers decide who to notify.
type MessageService struct {
	messages  domain.MessageStore
	users     domain.UserDirectory
	presence  presence.Registry
	encryptor *security.Encryptor
	events    events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewMessageService(
	messages domain.MessageStore,
	users domain.UserDirectory,
	registry presence.Registry,
	encryptor *security.Encryptor,
	publisher events.Publisher,
	log *zap.Logger,
) *MessageService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &MessageService{
		messages:  messages,
		users:     users,
		presence:  registry,
		encryptor: encryptor,
		events:    publisher,
		log:       log,
		now:       time.Now,
	}
}

type SendInput struct {
	RecipientID string
	Content     string
	File        *domain.FileDescriptor
	SenderName  string
	TempID      string
}

// Send persists a new message from senderID. The returned message carries
// the plaintext content.
func (s *MessageService) Send(ctx context.Context, senderID string, in SendInput) (*domain.Message, error) {
	recipient := strings.TrimSpace(in.RecipientID)
	if recipient == "" {
		return nil, domain.ErrRecipientRequired
	}

	encrypted, err := s.encryptor.Encrypt(in.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	msg := &domain.Message{
		SenderID:    senderID,
		RecipientID: recipient,
		Content:     encrypted,
		File:        in.File,
		MessageType: domain.DeriveMessageType(in.File),
		Status:      domain.StatusSent,
		IsRead:      false,
		Timestamp:   s.now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	msg.Content = in.Content

	s.publish(ctx, events.Event{
		Type:        events.TypeMessageSent,
		MessageIDs:  []string{msg.ID.String()},
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		MessageType: string(msg.MessageType),
		OccurredAt:  msg.Timestamp,
	})
	return msg, nil
}

// UnreadUpdate is the remaining unread count from SenderID to ReaderID after
// a read receipt.
type UnreadUpdate struct {
	SenderID string
	ReaderID string
	Count    int
}

// MarkRead marks the given messages read where readerID is the recipient and
// recounts unread messages for each sender whose messages changed. A failed
// recount only drops that sender's update. The read event lists only the
// messages that actually changed.
func (s *MessageService) MarkRead(ctx context.Context, readerID string, displayIDs []string) ([]UnreadUpdate, error) {
	ids := domain.ParseDisplayIDs(displayIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	marks, err := s.messages.MarkRead(ctx, ids, readerID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if len(marks) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(marks))
	senders := make([]string, 0, len(marks))
	changed := make([]string, 0, len(marks))
	for _, m := range marks {
		changed = append(changed, m.ID.String())
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senders = append(senders, m.SenderID)
		}
	}
	sort.Strings(senders)

	updates := make([]UnreadUpdate, 0, len(senders))
	for _, sender := range senders {
		n, err := s.messages.CountUnread(ctx, sender, readerID)
		if err != nil {
			s.log.Warn("recount unread failed",
				zap.String("sender_id", sender),
				zap.String("reader_id", readerID),
				zap.Error(err))
			continue
		}
		updates = append(updates, UnreadUpdate{SenderID: sender, ReaderID: readerID, Count: n})
	}

	s.publish(ctx, events.Event{
		Type:        events.TypeMessageRead,
		MessageIDs:  changed,
		RecipientID: readerID,
		OccurredAt:  s.now().UTC(),
	})
	return updates, nil
}

// Contacts lists everyone userID has exchanged messages with, most recent
// conversation first.
func (s *MessageService) Contacts(ctx context.Context, userID string) ([]domain.ContactSummary, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}

	ids, err := s.messages.ListCounterparts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list counterparts: %w", err)
	}

	contacts := make([]domain.ContactSummary, 0, len(ids))
	for _, id := range ids {
		latest, err := s.messages.LatestBetween(ctx, userID, id)
		if err != nil {
			return nil, fmt.Errorf("latest message: %w", err)
		}
		if latest == nil {
			continue
		}
		unread, err := s.messages.CountUnread(ctx, id, userID)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}

		c := domain.ContactSummary{
			ID:              id,
			Name:            unknownContactName,
			Status:          domain.PresenceOffline,
			LastMessage:     s.preview(latest),
			LastMessageTime: latest.Timestamp,
			UnreadCount:     unread,
		}
		if u := s.lookupUser(ctx, id); u != nil {
			c.Name = u.Name()
			c.Avatar = u.Avatar
		}
		if s.presence.IsOnline(id) {
			c.IsOnline = true
			c.Status = domain.PresenceOnline
		}
		contacts = append(contacts, c)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].LastMessageTime.After(contacts[j].LastMessageTime)
	})
	return contacts, nil
}

// History returns every message between userID and contactID, oldest first,
// from userID's perspective.
func (s *MessageService) History(ctx context.Context, userID, contactID string) ([]domain.MessageView, error) {
	if userID == "" || contactID == "" {
		return nil, domain.ErrInvalidInput
	}

	msgs, err := s.messages.ListBetween(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	views := make([]domain.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, domain.NewMessageView(m, s.decrypt(m), userID))
	}
	return views, nil
}

func (s *MessageService) lookupUser(ctx context.Context, id string) *domain.User {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		s.log.Debug("contact lookup failed", zap.String("user_id", id), zap.Error(err))
		return nil
	}
	return u
}

func (s *MessageService) preview(m *domain.Message) string {
	text := s.decrypt(m)
	if text == "" && m.File != nil {
		return filePreview
	}
	return text
}

// decrypt falls back to the stored text for rows written before encryption
// was enabled.
func (s *MessageService) decrypt(m *domain.Message) string {
	if m.Content == "" {
		return ""
	}
	plain, err := s.encryptor.Decrypt(m.Content)
	if err != nil {
		return m.Content
	}
	return plain
}

func (s *MessageService) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("publish event failed", zap.String("type", e.Type), zap.Error(err))
	}
}
