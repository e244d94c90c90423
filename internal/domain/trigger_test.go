package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationPayloadValidate(t *testing.T) {
	cases := []struct {
		name    string
		payload NotificationPayload
		ok      bool
	}{
		{"message complete", NotificationPayload{Kind: PayloadMessage, ConversationID: "t-1", SenderID: "alice"}, true},
		{"message missing sender", NotificationPayload{Kind: PayloadMessage, ConversationID: "t-1"}, false},
		{"statusChange complete", NotificationPayload{Kind: PayloadStatusChange, IssueID: "i-1", Status: "resolved"}, true},
		{"statusChange missing status", NotificationPayload{Kind: PayloadStatusChange, IssueID: "i-1"}, false},
		{"quote complete", NotificationPayload{Kind: PayloadQuote, IssueID: "i-1"}, true},
		{"quote missing issue", NotificationPayload{Kind: PayloadQuote}, false},
		{"receiptStatus complete", NotificationPayload{Kind: PayloadReceiptStatus, IssueID: "i-1", Status: "paid"}, true},
		{"unknown kind", NotificationPayload{Kind: "carrierPigeon"}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.payload.Validate()
			if c.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrBadRequest))
			}
		})
	}
}

func TestNotificationPayloadFlatten(t *testing.T) {
	p := NotificationPayload{
		Kind:           PayloadMessage,
		ConversationID: "t-1",
		SenderID:       "alice",
		RestaurantName: "La Cocina",
	}

	flat := p.Flatten()

	assert.Equal(t, "message", flat["kind"])
	assert.Equal(t, "t-1", flat["conversationId"])
	assert.Equal(t, "alice", flat["senderId"])
	assert.Equal(t, "La Cocina", flat["restaurantName"])
	_, hasIssue := flat["issueId"]
	assert.False(t, hasIssue, "empty fields are omitted")
}

func TestTriggerIsProcessed(t *testing.T) {
	assert.False(t, (&NotificationTrigger{}).IsProcessed())
	assert.True(t, (&NotificationTrigger{Processed: 1}).IsProcessed())
}
