package threadsync

import (
	"time"

	"github.com/tablemend/tablemend-api/internal/domain"
)

// EventType tags what a live event carries.
type EventType string

const (
	// EventMessagePosted carries a newly appended message.
	EventMessagePosted EventType = "message_posted"
	// EventMessageUpdated carries an in-place change to an existing message
	// (reactions, proposal resolution). Clients replace by id, never reorder.
	EventMessageUpdated EventType = "message_updated"
	// EventTypingChanged carries a typing presence change.
	EventTypingChanged EventType = "typing_changed"
	// EventReadChanged carries another participant's read watermark move.
	EventReadChanged EventType = "read_changed"
)

// Event is one item on a subscription stream.
type Event struct {
	Type    EventType       `json:"type"`
	Message *domain.Message `json:"message,omitempty"`
	Typing  *TypingEvent    `json:"typing,omitempty"`
	Read    *ReadEvent      `json:"read,omitempty"`
}

type TypingEvent struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	IsTyping bool   `json:"is_typing"`
}

type ReadEvent struct {
	ThreadID   string    `json:"thread_id"`
	UserID     string    `json:"user_id"`
	LastReadAt time.Time `json:"last_read_at"`
}
