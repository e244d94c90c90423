package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortMessages_TimestampThenIDTieBreak(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{MessageID: "z", CreatedAt: base},
		{MessageID: "a", CreatedAt: base.Add(time.Second)},
		{MessageID: "m", CreatedAt: base},
	}

	SortMessages(msgs)

	assert.Equal(t, "m", msgs[0].MessageID)
	assert.Equal(t, "z", msgs[1].MessageID)
	assert.Equal(t, "a", msgs[2].MessageID)
}

func TestAddReaction(t *testing.T) {
	m := &Message{}

	assert.True(t, m.AddReaction("👍", "bob"))
	assert.False(t, m.AddReaction("👍", "bob"), "same user same symbol is a no-op")
	assert.True(t, m.AddReaction("👍", "carol"))
	assert.True(t, m.AddReaction("🔥", "bob"))

	assert.Equal(t, []string{"bob", "carol"}, m.Reactions["👍"])
	assert.Equal(t, []string{"bob"}, m.Reactions["🔥"])
}

func TestRemoveReaction(t *testing.T) {
	m := &Message{Reactions: map[string][]string{"👍": {"bob", "carol"}}}

	assert.False(t, m.RemoveReaction("🔥", "bob"), "absent symbol is a no-op")
	assert.False(t, m.RemoveReaction("👍", "dave"), "absent user is a no-op")

	assert.True(t, m.RemoveReaction("👍", "bob"))
	assert.Equal(t, []string{"carol"}, m.Reactions["👍"])

	assert.True(t, m.RemoveReaction("👍", "carol"))
	_, present := m.Reactions["👍"]
	assert.False(t, present, "symbol key dropped with its last member")
}

func TestUnread(t *testing.T) {
	base := time.Now().UTC()

	assert.True(t, Unread(base, time.Time{}), "never read means unread")
	assert.True(t, Unread(base, base.Add(-time.Second)))
	assert.False(t, Unread(base, base), "read exactly at activity time counts as read")
	assert.False(t, Unread(base, base.Add(time.Second)))
	assert.False(t, Unread(time.Time{}, time.Time{}), "no activity means nothing to read")
}

func TestThreadRecipients(t *testing.T) {
	th := &Thread{ParticipantIDs: []string{"alice", "bob", "carol"}}

	assert.ElementsMatch(t, []string{"bob", "carol"}, th.Recipients("alice"))
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, th.Recipients("outsider"))
}

func TestTypingStateFresh(t *testing.T) {
	now := time.Now().UTC()
	ttl := 6 * time.Second

	fresh := &TypingState{IsTyping: true, LastChangedAt: now.Add(-time.Second)}
	boundary := &TypingState{IsTyping: true, LastChangedAt: now.Add(-ttl)}
	stale := &TypingState{IsTyping: true, LastChangedAt: now.Add(-ttl - time.Millisecond)}
	stopped := &TypingState{IsTyping: false, LastChangedAt: now}

	assert.True(t, fresh.Fresh(now, ttl))
	assert.True(t, boundary.Fresh(now, ttl))
	assert.False(t, stale.Fresh(now, ttl))
	assert.False(t, stopped.Fresh(now, ttl))
}
