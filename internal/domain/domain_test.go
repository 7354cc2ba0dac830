package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveMessageType(t *testing.T) {
	assert.Equal(t, MessageTypeText, DeriveMessageType(nil))
	assert.Equal(t, MessageTypeFile, DeriveMessageType(&FileDescriptor{URL: "/a.pdf"}))
	assert.Equal(t, MessageTypeVoiceNote, DeriveMessageType(&FileDescriptor{URL: "/a.ogg", IsVoiceNote: true}))
}

func TestDisplayIDRoundTrip(t *testing.T) {
	id := MessageID("42")
	assert.Equal(t, "msg_42", id.Display())

	parsed, ok := ParseDisplayID("msg_42")
	assert.True(t, ok)
	assert.Equal(t, id, parsed)

	parsed, ok = ParseDisplayID("42")
	assert.True(t, ok)
	assert.Equal(t, id, parsed)

	_, ok = ParseDisplayID("msg_")
	assert.False(t, ok)
	assert.Equal(t, "", MessageID("").Display())
}

func TestParseDisplayIDsDedupes(t *testing.T) {
	ids := ParseDisplayIDs([]string{"msg_1", "1", "", "msg_2", " msg_3 "})
	assert.Equal(t, []MessageID{"1", "2", "3"}, ids)
}

func TestNewMessageViewPerspective(t *testing.T) {
	m := &Message{ID: "7", SenderID: "u1", RecipientID: "u2", Status: StatusSent}
	assert.True(t, NewMessageView(m, "hi", "u1").IsOwn)
	v := NewMessageView(m, "hi", "u2")
	assert.False(t, v.IsOwn)
	assert.Equal(t, "msg_7", v.ID)
	assert.Equal(t, "hi", v.Content)
}
