package domain

import "time"

// Thread is a conversation scoped to one maintenance issue. It is created
// implicitly on the first message and its lastActivityAt tracks the max
// createdAt over all messages in it.
type Thread struct {
	ThreadID       string    `json:"id" dynamodbav:"thread_id"`
	IssueID        string    `json:"issue_id" dynamodbav:"issue_id"`
	RestaurantName string    `json:"restaurant_name" dynamodbav:"restaurant_name"`
	ParticipantIDs []string  `json:"participant_ids" dynamodbav:"participant_ids"`
	LastActivityAt time.Time `json:"last_activity_at" dynamodbav:"last_activity_at"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
}

// Recipients returns the participants other than authorID, i.e. everyone a
// new message by authorID should notify.
func (t *Thread) Recipients(authorID string) []string {
	out := make([]string, 0, len(t.ParticipantIDs))
	for _, p := range t.ParticipantIDs {
		if p != authorID {
			out = append(out, p)
		}
	}
	return out
}
