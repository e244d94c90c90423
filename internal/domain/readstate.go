package domain

import "time"

// ReadState is the per (user, thread) read watermark. Created on first read;
// a missing ReadState means the user has read nothing in the thread.
type ReadState struct {
	UserID     string    `json:"user_id" dynamodbav:"user_id"`
	ThreadID   string    `json:"thread_id" dynamodbav:"thread_id"`
	LastReadAt time.Time `json:"last_read_at" dynamodbav:"last_read_at"`
}

// Unread applies the unread rule: a thread is unread when its last activity
// is after the user's watermark. The zero-value lastReadAt (no ReadState)
// makes any activity unread.
func Unread(lastActivityAt, lastReadAt time.Time) bool {
	return lastActivityAt.After(lastReadAt)
}
