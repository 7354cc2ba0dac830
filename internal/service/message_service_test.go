package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sfcollab/internal/domain"
	"sfcollab/internal/events"
	"sfcollab/internal/presence"
	"sfcollab/internal/security"
	"sfcollab/internal/service"
	"sfcollab/internal/store/sqlite"
)

func newEncryptor(t *testing.T) *security.Encryptor {
	t.Helper()
	enc, err := security.NewEncryptor([]byte("test-encryption-key"), nil)
	require.NoError(t, err)
	return enc
}

// newSQLiteService wires a MessageService to an in-memory database.
func newSQLiteService(t *testing.T, registry presence.Registry) (*service.MessageService, *sqlite.UserRepo, *recordingPublisher) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepo(db)
	pub := &recordingPublisher{}
	svc := service.NewMessageService(sqlite.NewMessageRepo(db), users, registry, newEncryptor(t), pub, zap.NewNop())
	return svc, users, pub
}

func TestSendRequiresRecipient(t *testing.T) {
	store := new(MockMessageStore)
	svc := service.NewMessageService(store, new(MockUserRepo), presence.NewLocal(), newEncryptor(t), nil, zap.NewNop())

	msg, err := svc.Send(context.Background(), "u1", service.SendInput{Content: "hi"})
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, domain.ErrRecipientRequired)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendEncryptsAtRest(t *testing.T) {
	store := new(MockMessageStore)
	var stored string
	store.On("Create", mock.Anything, mock.AnythingOfType("*domain.Message")).
		Run(func(args mock.Arguments) {
			m := args.Get(1).(*domain.Message)
			stored = m.Content
			m.ID = "9"
		}).Return(nil)

	svc := service.NewMessageService(store, new(MockUserRepo), presence.NewLocal(), newEncryptor(t), nil, zap.NewNop())
	msg, err := svc.Send(context.Background(), "u1", service.SendInput{
		RecipientID: "u2",
		Content:     "secret",
		File:        &domain.FileDescriptor{URL: "/v.ogg", IsVoiceNote: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "secret", msg.Content)
	assert.NotEqual(t, "secret", stored)
	assert.Equal(t, domain.MessageTypeVoiceNote, msg.MessageType)
	assert.Equal(t, domain.StatusSent, msg.Status)
	assert.False(t, msg.IsRead)
	assert.Equal(t, domain.MessageID("9"), msg.ID)
}

func TestSendStoreFailure(t *testing.T) {
	store := new(MockMessageStore)
	store.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	pub := &recordingPublisher{}

	svc := service.NewMessageService(store, new(MockUserRepo), presence.NewLocal(), newEncryptor(t), pub, zap.NewNop())
	_, err := svc.Send(context.Background(), "u1", service.SendInput{RecipientID: "u2", Content: "x"})
	assert.Error(t, err)
	assert.Empty(t, pub.types())
}

func TestSendThenHistory(t *testing.T) {
	svc, _, pub := newSQLiteService(t, presence.NewLocal())
	ctx := context.Background()

	_, err := svc.Send(ctx, "u1", service.SendInput{RecipientID: "u2", Content: "hi", TempID: "t1"})
	require.NoError(t, err)

	history, err := svc.History(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Content)
	assert.True(t, history[0].IsOwn)
	assert.Equal(t, domain.StatusSent, history[0].Status)

	theirs, err := svc.History(ctx, "u2", "u1")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.False(t, theirs[0].IsOwn)

	assert.Equal(t, []string{events.TypeMessageSent}, pub.types())
}

func TestMarkReadOnlyAffectsCallerMessages(t *testing.T) {
	svc, _, _ := newSQLiteService(t, presence.NewLocal())
	ctx := context.Background()

	toA, err := svc.Send(ctx, "c", service.SendInput{RecipientID: "a", Content: "m1"})
	require.NoError(t, err)
	toB, err := svc.Send(ctx, "c", service.SendInput{RecipientID: "b", Content: "m2"})
	require.NoError(t, err)

	updates, err := svc.MarkRead(ctx, "a", []string{toA.ID.Display(), toB.ID.Display()})
	require.NoError(t, err)
	assert.Equal(t, []service.UnreadUpdate{{SenderID: "c", ReaderID: "a", Count: 0}}, updates)

	bView, err := svc.History(ctx, "b", "c")
	require.NoError(t, err)
	require.Len(t, bView, 1)
	assert.Equal(t, domain.StatusSent, bView[0].Status)
	assert.False(t, bView[0].IsRead)

	aView, err := svc.History(ctx, "a", "c")
	require.NoError(t, err)
	require.Len(t, aView, 1)
	assert.Equal(t, domain.StatusRead, aView[0].Status)
}

func TestMarkReadEventListsChangedMessagesOnly(t *testing.T) {
	svc, _, pub := newSQLiteService(t, presence.NewLocal())
	ctx := context.Background()

	toA, err := svc.Send(ctx, "c", service.SendInput{RecipientID: "a", Content: "m1"})
	require.NoError(t, err)
	toB, err := svc.Send(ctx, "c", service.SendInput{RecipientID: "b", Content: "m2"})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, "a", []string{toA.ID.Display(), toB.ID.Display()})
	require.NoError(t, err)

	read := pub.ofType(events.TypeMessageRead)
	require.Len(t, read, 1)
	assert.Equal(t, []string{toA.ID.String()}, read[0].MessageIDs)
	assert.Equal(t, "a", read[0].RecipientID)

	// a repeated receipt changes nothing and publishes nothing
	updates, err := svc.MarkRead(ctx, "a", []string{toA.ID.Display()})
	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.Len(t, pub.ofType(events.TypeMessageRead), 1)

	// someone else's message alone never produces an event
	_, err = svc.MarkRead(ctx, "a", []string{toB.ID.Display()})
	require.NoError(t, err)
	assert.Len(t, pub.ofType(events.TypeMessageRead), 1)
}

func TestMarkReadIgnoresEmptyBatch(t *testing.T) {
	store := new(MockMessageStore)
	svc := service.NewMessageService(store, new(MockUserRepo), presence.NewLocal(), newEncryptor(t), nil, zap.NewNop())

	updates, err := svc.MarkRead(context.Background(), "a", []string{"", "msg_"})
	assert.NoError(t, err)
	assert.Empty(t, updates)
	store.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadStoreFailure(t *testing.T) {
	store := new(MockMessageStore)
	store.On("MarkRead", mock.Anything, []domain.MessageID{"1"}, "a").Return(nil, errors.New("locked"))
	svc := service.NewMessageService(store, new(MockUserRepo), presence.NewLocal(), newEncryptor(t), nil, zap.NewNop())

	_, err := svc.MarkRead(context.Background(), "a", []string{"msg_1"})
	assert.Error(t, err)
}

func TestContactsUnreadClearsAfterMarkRead(t *testing.T) {
	svc, users, _ := newSQLiteService(t, presence.NewLocal())
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, &domain.User{ID: "c", Username: "carol", DisplayName: "Carol", IsActive: true}))

	var ids []string
	for _, text := range []string{"one", "two", "three"} {
		m, err := svc.Send(ctx, "c", service.SendInput{RecipientID: "u", Content: text})
		require.NoError(t, err)
		ids = append(ids, m.ID.Display())
	}

	contacts, err := svc.Contacts(ctx, "u")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, 3, contacts[0].UnreadCount)
	assert.Equal(t, "Carol", contacts[0].Name)
	assert.Equal(t, "three", contacts[0].LastMessage)

	_, err = svc.MarkRead(ctx, "u", ids)
	require.NoError(t, err)

	contacts, err = svc.Contacts(ctx, "u")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, 0, contacts[0].UnreadCount)
}

func TestContactsProjection(t *testing.T) {
	store := new(MockMessageStore)
	users := new(MockUserRepo)
	registry := presence.NewLocal()
	registry.Register("bob", stubHandle("conn-1"))

	enc := newEncryptor(t)
	sealed, err := enc.Encrypt("see you")
	require.NoError(t, err)

	older := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	avatar := "/a/bob.png"

	store.On("ListCounterparts", mock.Anything, "me").Return([]string{"bob", "ghost"}, nil)
	store.On("LatestBetween", mock.Anything, "me", "bob").
		Return(&domain.Message{SenderID: "bob", RecipientID: "me", Content: sealed, Timestamp: older}, nil)
	store.On("LatestBetween", mock.Anything, "me", "ghost").
		Return(&domain.Message{SenderID: "me", RecipientID: "ghost", File: &domain.FileDescriptor{URL: "/f"}, Timestamp: newer}, nil)
	store.On("CountUnread", mock.Anything, "bob", "me").Return(2, nil)
	store.On("CountUnread", mock.Anything, "ghost", "me").Return(0, nil)
	users.On("GetByID", mock.Anything, "bob").Return(&domain.User{ID: "bob", Username: "bob", Avatar: &avatar}, nil)
	users.On("GetByID", mock.Anything, "ghost").Return(nil, errors.New("lookup timeout"))

	svc := service.NewMessageService(store, users, registry, enc, nil, zap.NewNop())
	contacts, err := svc.Contacts(context.Background(), "me")
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	ghost, bob := contacts[0], contacts[1]
	assert.Equal(t, "ghost", ghost.ID)
	assert.Equal(t, "Unknown User", ghost.Name)
	assert.Equal(t, "File", ghost.LastMessage)
	assert.Equal(t, domain.PresenceOffline, ghost.Status)
	assert.False(t, ghost.IsOnline)

	assert.Equal(t, "bob", bob.ID)
	assert.Equal(t, "see you", bob.LastMessage)
	assert.Equal(t, &avatar, bob.Avatar)
	assert.Equal(t, domain.PresenceOnline, bob.Status)
	assert.True(t, bob.IsOnline)
	assert.Equal(t, 2, bob.UnreadCount)
}

func TestContactsStoreFailure(t *testing.T) {
	store := new(MockMessageStore)
	store.On("ListCounterparts", mock.Anything, "me").Return(nil, errors.New("down"))
	svc := service.NewMessageService(store, new(MockUserRepo), presence.NewLocal(), newEncryptor(t), nil, zap.NewNop())

	_, err := svc.Contacts(context.Background(), "me")
	assert.Error(t, err)
}

func TestHistoryRequiresBothIDs(t *testing.T) {
	svc := service.NewMessageService(new(MockMessageStore), new(MockUserRepo), presence.NewLocal(), newEncryptor(t), nil, zap.NewNop())
	_, err := svc.History(context.Background(), "u1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUserServiceListOnline(t *testing.T) {
	users := new(MockUserRepo)
	registry := presence.NewLocal()
	registry.Register("a", stubHandle("c1"))
	registry.Register("b", stubHandle("c2"))
	users.On("GetByID", mock.Anything, "a").Return(&domain.User{ID: "a"}, nil)
	users.On("GetByID", mock.Anything, "b").Return(nil, nil)

	svc := service.NewUserService(users, registry)
	online, err := svc.ListOnline(context.Background())
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "a", online[0].ID)
}
