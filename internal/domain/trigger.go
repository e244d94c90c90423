package domain

import (
	"fmt"
	"time"
)

// PayloadKind is the closed set of notification kinds. Each kind carries its
// own required fields, validated at construction, so a malformed payload is
// rejected before it ever reaches a device.
type PayloadKind string

const (
	PayloadMessage       PayloadKind = "message"
	PayloadStatusChange  PayloadKind = "statusChange"
	PayloadQuote         PayloadKind = "quote"
	PayloadReceiptStatus PayloadKind = "receiptStatus"
)

// NotificationPayload is the typed data attached to a push notification.
type NotificationPayload struct {
	Kind           PayloadKind `json:"kind" dynamodbav:"kind"`
	IssueID        string      `json:"issue_id,omitempty" dynamodbav:"issue_id"`
	ConversationID string      `json:"conversation_id,omitempty" dynamodbav:"conversation_id"`
	SenderID       string      `json:"sender_id,omitempty" dynamodbav:"sender_id"`
	RestaurantName string      `json:"restaurant_name,omitempty" dynamodbav:"restaurant_name"`
	IssueTitle     string      `json:"issue_title,omitempty" dynamodbav:"issue_title"`
	Priority       string      `json:"priority,omitempty" dynamodbav:"priority"`
	Status         string      `json:"status,omitempty" dynamodbav:"status"`
}

// Validate enforces the per-kind required fields.
func (p *NotificationPayload) Validate() error {
	switch p.Kind {
	case PayloadMessage:
		if p.ConversationID == "" || p.SenderID == "" {
			return fmt.Errorf("message payload requires conversation_id and sender_id: %w", ErrBadRequest)
		}
	case PayloadStatusChange:
		if p.IssueID == "" || p.Status == "" {
			return fmt.Errorf("statusChange payload requires issue_id and status: %w", ErrBadRequest)
		}
	case PayloadQuote:
		if p.IssueID == "" {
			return fmt.Errorf("quote payload requires issue_id: %w", ErrBadRequest)
		}
	case PayloadReceiptStatus:
		if p.IssueID == "" || p.Status == "" {
			return fmt.Errorf("receiptStatus payload requires issue_id and status: %w", ErrBadRequest)
		}
	default:
		return fmt.Errorf("unknown payload kind %q: %w", p.Kind, ErrBadRequest)
	}
	return nil
}

// Flatten renders the payload as the string map delivered inside the push
// data. Empty fields are omitted.
func (p *NotificationPayload) Flatten() map[string]string {
	out := map[string]string{"kind": string(p.Kind)}
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("issueId", p.IssueID)
	put("conversationId", p.ConversationID)
	put("senderId", p.SenderID)
	put("restaurantName", p.RestaurantName)
	put("issueTitle", p.IssueTitle)
	put("priority", p.Priority)
	put("status", p.Status)
	return out
}

// NotificationTrigger is a durable job record: one trigger causes exactly one
// notification-dispatch attempt. The dispatcher is the only writer of the
// processed/result fields; processed transitions false→true exactly once.
type NotificationTrigger struct {
	TriggerID        string              `json:"id" dynamodbav:"trigger_id"`
	RecipientUserIDs []string            `json:"recipient_user_ids" dynamodbav:"recipient_user_ids"`
	Title            string              `json:"title" dynamodbav:"title"`
	Body             string              `json:"body" dynamodbav:"body"`
	Payload          NotificationPayload `json:"payload" dynamodbav:"payload"`
	Processed        int                 `json:"processed" dynamodbav:"processed"` // 0 = pending, 1 = processed; numeric so it can key the GSI
	CreatedAt        time.Time           `json:"created" dynamodbav:"created_at"`
	ProcessedAt      *time.Time          `json:"processed_at,omitempty" dynamodbav:"processed_at"`
	SuccessCount     int                 `json:"success_count" dynamodbav:"success_count"`
	FailureCount     int                 `json:"failure_count" dynamodbav:"failure_count"`
	Error            *string             `json:"error,omitempty" dynamodbav:"error"`
}

// IsProcessed reports whether the trigger already reached its terminal state.
func (t *NotificationTrigger) IsProcessed() bool { return t.Processed != 0 }

// DispatchOutcome is the terminal result the dispatcher records on a trigger.
type DispatchOutcome struct {
	SuccessCount int
	FailureCount int
	Error        string
}
