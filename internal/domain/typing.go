package domain

import "time"

// TypingState is ephemeral presence for one (user, thread) pair. It is not
// part of durable history: rows self-expire via the table TTL and readers
// additionally discard entries older than the presence TTL, so a killed
// client cannot leave a stuck indicator.
type TypingState struct {
	ThreadID      string    `json:"thread_id" dynamodbav:"thread_id"`
	UserID        string    `json:"user_id" dynamodbav:"user_id"`
	UserName      string    `json:"user_name" dynamodbav:"user_name"`
	IsTyping      bool      `json:"is_typing" dynamodbav:"is_typing"`
	LastChangedAt time.Time `json:"last_changed_at" dynamodbav:"last_changed_at"`
	ExpiresAt     int64     `json:"-" dynamodbav:"expires_at"` // epoch seconds, DynamoDB TTL attribute
}

// Fresh reports whether the entry still counts as live presence at now,
// given the configured TTL.
func (t *TypingState) Fresh(now time.Time, ttl time.Duration) bool {
	return t.IsTyping && now.Sub(t.LastChangedAt) <= ttl
}
