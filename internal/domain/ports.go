package domain

import "context"

// Collaborator ports. These live outside the messaging subsystem; the
// implementations wired in main are the only thing that knows their backends.

// TokenResolver resolves a user's active push token, if any. A nil token
// with a nil error means the user has no registered device.
type TokenResolver interface {
	ResolveDeviceToken(ctx context.Context, userID string) (*string, error)
}

// AttachmentStore turns raw image bytes into a stable URL embeddable on a
// message.
type AttachmentStore interface {
	UploadAttachment(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// IssueUpdater applies an accepted proposal to the referenced maintenance
// issue. Owned by the issue-tracking subsystem.
type IssueUpdater interface {
	ApplyChange(ctx context.Context, issueID string, field ProposalField, value string) error
}
