package http

import (
	"context"
	"time"

	"github.com/tablemend/tablemend-api/internal/domain"
)

// MessageRepository is the minimal interface the router requires from the
// message store.
type MessageRepository interface {
	Put(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, threadID, messageID string) (*domain.Message, error)
	ListByThread(ctx context.Context, threadID string) ([]domain.Message, error)
	SetReactions(ctx context.Context, threadID, messageID string, reactions map[string][]string) error
	ResolveProposal(ctx context.Context, threadID, messageID string, state domain.ProposalState, userID string, at time.Time) error
}

// ThreadRepository is the minimal interface the router requires from the
// thread store.
type ThreadRepository interface {
	Put(ctx context.Context, t *domain.Thread) error
	Get(ctx context.Context, threadID string) (*domain.Thread, error)
	TouchActivity(ctx context.Context, threadID string, at time.Time) error
	ActivityMap(ctx context.Context, threadIDs []string) (map[string]time.Time, error)
}

// ReadStateRepository is the minimal interface the router requires from the
// read-state store.
type ReadStateRepository interface {
	MarkRead(ctx context.Context, userID, threadID string, at time.Time) error
	LastReadMap(ctx context.Context, userID string, threadIDs []string) (map[string]time.Time, error)
}

// TypingStateRepository is the minimal interface the router requires from the
// typing presence store.
type TypingStateRepository interface {
	Set(ctx context.Context, t *domain.TypingState) error
	ListByThread(ctx context.Context, threadID string) ([]domain.TypingState, error)
	Delete(ctx context.Context, threadID, userID string) error
}

// TriggerRepository is the minimal interface the router requires from the
// notification trigger store.
type TriggerRepository interface {
	Put(ctx context.Context, t *domain.NotificationTrigger) error
}

// DeviceRepository is the minimal interface the router requires from the
// device store.
type DeviceRepository interface {
	Put(ctx context.Context, d *domain.Device) error
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
	SoftDelete(ctx context.Context, deviceID string) error
}

// EndpointCreator registers raw platform push tokens as deliverable
// endpoints. Optional; nil leaves tokens stored as given.
type EndpointCreator interface {
	CreateEndpoint(ctx context.Context, token string) (string, error)
}
