package domain

import (
	"sort"
	"time"
)

// AuthorKind distinguishes who (or what) produced a message.
type AuthorKind string

const (
	AuthorHuman     AuthorKind = "human"
	AuthorAssistant AuthorKind = "assistant"
	AuthorSystem    AuthorKind = "system"
)

func (k AuthorKind) Valid() bool {
	switch k {
	case AuthorHuman, AuthorAssistant, AuthorSystem:
		return true
	}
	return false
}

type Message struct {
	MessageID       string              `json:"id" dynamodbav:"message_id"`
	ThreadID        string              `json:"thread_id" dynamodbav:"thread_id"`
	AuthorID        string              `json:"author_id" dynamodbav:"author_id"`
	AuthorKind      AuthorKind          `json:"author_kind" dynamodbav:"author_kind"`
	Body            string              `json:"body" dynamodbav:"body"`
	AttachmentURL   *string             `json:"attachment_url,omitempty" dynamodbav:"attachment_url"`
	ParentMessageID *string             `json:"parent_message_id,omitempty" dynamodbav:"parent_message_id"`
	CreatedAt       time.Time           `json:"created" dynamodbav:"created_at"`
	Reactions       map[string][]string `json:"reactions,omitempty" dynamodbav:"reactions"`
	Proposal        *Proposal           `json:"proposal,omitempty" dynamodbav:"proposal"`
}

// Less orders messages by (createdAt, id). The id tie-break keeps equal
// timestamps stable across renders; client clocks collide often enough
// that this matters.
func (m *Message) Less(other *Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.MessageID < other.MessageID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// SortMessages sorts in place by (createdAt, id).
func SortMessages(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].Less(&msgs[j])
	})
}

// AddReaction records userID under symbol. Returns false if the user had
// already reacted with that symbol.
func (m *Message) AddReaction(symbol, userID string) bool {
	for _, u := range m.Reactions[symbol] {
		if u == userID {
			return false
		}
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	m.Reactions[symbol] = append(m.Reactions[symbol], userID)
	return true
}

// RemoveReaction removes userID from symbol. The symbol key is deleted when
// its last member leaves; an absent reaction is a no-op returning false.
func (m *Message) RemoveReaction(symbol, userID string) bool {
	users, ok := m.Reactions[symbol]
	if !ok {
		return false
	}
	for i, u := range users {
		if u == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(m.Reactions, symbol)
			} else {
				m.Reactions[symbol] = users
			}
			return true
		}
	}
	return false
}
