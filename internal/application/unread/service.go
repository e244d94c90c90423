package unread

import (
	"context"
	"time"

	"github.com/tablemend/tablemend-api/internal/domain"
)

type Service interface {
	// UnreadMap reports, for each thread, whether userID has unseen activity.
	UnreadMap(ctx context.Context, userID string, threadIDs []string) (map[string]bool, error)
	Unread(ctx context.Context, userID, threadID string) (bool, error)
}

type activityStore interface {
	ActivityMap(ctx context.Context, threadIDs []string) (map[string]time.Time, error)
}

type readStateStore interface {
	LastReadMap(ctx context.Context, userID string, threadIDs []string) (map[string]time.Time, error)
}

type service struct {
	threads    activityStore
	readStates readStateStore
}

func NewService(threads activityStore, readStates readStateStore) Service {
	return &service{threads: threads, readStates: readStates}
}

// UnreadMap does exactly two batched lookups — one for activity, one for the
// user's watermarks — and compares locally. List views span dozens of
// threads; per-thread queries at render time do not scale.
func (s *service) UnreadMap(ctx context.Context, userID string, threadIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}

	activity, err := s.threads.ActivityMap(ctx, threadIDs)
	if err != nil {
		return nil, err
	}
	lastRead, err := s.readStates.LastReadMap(ctx, userID, threadIDs)
	if err != nil {
		return nil, err
	}

	for _, tid := range threadIDs {
		// Zero-value watermark (no ReadState row) means everything unread;
		// zero-value activity (unknown thread) means nothing to read.
		out[tid] = domain.Unread(activity[tid], lastRead[tid])
	}
	return out, nil
}

func (s *service) Unread(ctx context.Context, userID, threadID string) (bool, error) {
	m, err := s.UnreadMap(ctx, userID, []string{threadID})
	if err != nil {
		return false, err
	}
	return m[threadID], nil
}
