package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfcollab/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	// each pooled connection would otherwise get its own in-memory database
	db.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func newMessage(from, to, content string, at time.Time) *domain.Message {
	return &domain.Message{
		SenderID:    from,
		RecipientID: to,
		Content:     content,
		MessageType: domain.MessageTypeText,
		Status:      domain.StatusSent,
		Timestamp:   at,
	}
}

func TestMessageRepoCreateAndListOrdering(t *testing.T) {
	repo := NewMessageRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	// inserted out of timestamp order
	require.NoError(t, repo.Create(ctx, newMessage("u1", "u2", "third", base.Add(2*time.Second))))
	require.NoError(t, repo.Create(ctx, newMessage("u2", "u1", "first", base)))
	require.NoError(t, repo.Create(ctx, newMessage("u1", "u2", "second", base.Add(time.Second))))
	require.NoError(t, repo.Create(ctx, newMessage("u1", "u3", "other", base)))

	msgs, err := repo.ListBetween(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}

	latest, err := repo.LatestBetween(ctx, "u2", "u1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "third", latest.Content)

	none, err := repo.LatestBetween(ctx, "u2", "u3")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMessageRepoFileRoundTrip(t *testing.T) {
	repo := NewMessageRepo(openTestDB(t))
	ctx := context.Background()

	m := newMessage("u1", "u2", "", time.Now())
	m.File = &domain.FileDescriptor{URL: "/uploads/a.ogg", IsVoiceNote: true, Duration: 3.5}
	m.MessageType = domain.DeriveMessageType(m.File)
	require.NoError(t, repo.Create(ctx, m))
	assert.NotEmpty(t, m.ID)

	msgs, err := repo.ListBetween(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].File)
	assert.True(t, msgs[0].File.IsVoiceNote)
	assert.Equal(t, domain.MessageTypeVoiceNote, msgs[0].MessageType)
}

func TestMessageRepoMarkReadOnlyForRecipient(t *testing.T) {
	repo := NewMessageRepo(openTestDB(t))
	ctx := context.Background()

	m1 := newMessage("u2", "u1", "to u1", time.Now())
	m2 := newMessage("u1", "u2", "to u2", time.Now())
	m3 := newMessage("u3", "u1", "also to u1", time.Now())
	for _, m := range []*domain.Message{m1, m2, m3} {
		require.NoError(t, repo.Create(ctx, m))
	}

	marks, err := repo.MarkRead(ctx, []domain.MessageID{m1.ID, m2.ID, m3.ID, "garbage"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ReadMark{
		{ID: m1.ID, SenderID: "u2"},
		{ID: m3.ID, SenderID: "u3"},
	}, marks)

	msgs, err := repo.ListBetween(ctx, "u1", "u2")
	require.NoError(t, err)
	for _, m := range msgs {
		if m.ID == m1.ID {
			assert.True(t, m.IsRead)
			assert.Equal(t, domain.StatusRead, m.Status)
		} else {
			assert.False(t, m.IsRead)
			assert.Equal(t, domain.StatusSent, m.Status)
		}
	}

	// already-read messages produce no marks
	marks, err = repo.MarkRead(ctx, []domain.MessageID{m1.ID}, "u1")
	require.NoError(t, err)
	assert.Empty(t, marks)
}

func TestMessageRepoCountUnreadAndCounterparts(t *testing.T) {
	repo := NewMessageRepo(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newMessage("c", "u", "hey", time.Now())))
	}
	require.NoError(t, repo.Create(ctx, newMessage("u", "d", "yo", time.Now())))

	n, err := repo.CountUnread(ctx, "c", "u")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.CountUnread(ctx, "u", "c")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ids, err := repo.ListCounterparts(ctx, "u")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c", "d"}, ids)
}

func TestUserRepo(t *testing.T) {
	repo := NewUserRepo(openTestDB(t))
	ctx := context.Background()

	avatar := "/a.png"
	require.NoError(t, repo.Create(ctx, &domain.User{
		ID:             "u1",
		Username:       "alice",
		DisplayName:    "Alice",
		Avatar:         &avatar,
		HashedPassword: "x",
		IsActive:       true,
	}))

	u, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Alice", u.Name())
	assert.Equal(t, "/a.png", *u.Avatar)

	u, err = repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	missing, err := repo.GetByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	users, err := repo.ListActive(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
