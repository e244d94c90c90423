package typing

import (
	"context"
	"time"

	"github.com/tablemend/tablemend-api/internal/application/threadsync"
	"github.com/tablemend/tablemend-api/internal/domain"
)

type Service interface {
	// SetTyping records the caller's presence. Callers debounce on actual
	// text change; clearing happens on send, empty input or view exit.
	SetTyping(ctx context.Context, threadID, userID, userName string, isTyping bool) error
	// Clear removes the caller's presence row outright (view dismissed).
	Clear(ctx context.Context, threadID, userID string) error
	// TypingUsers lists display names of everyone else currently typing.
	TypingUsers(ctx context.Context, threadID, selfID string) ([]string, error)
}

type typingStore interface {
	Set(ctx context.Context, t *domain.TypingState) error
	ListByThread(ctx context.Context, threadID string) ([]domain.TypingState, error)
	Delete(ctx context.Context, threadID, userID string) error
}

type publisher interface {
	PublishTyping(ev threadsync.TypingEvent)
}

type service struct {
	store typingStore
	hub   publisher
	ttl   time.Duration
	now   func() time.Time
}

// NewService builds the presence service. ttl is the self-expiry window: a
// client that dies mid-keystroke stops showing as typing after ttl without
// anyone clearing it.
func NewService(store typingStore, hub publisher, ttl time.Duration) Service {
	return &service{store: store, hub: hub, ttl: ttl, now: time.Now}
}

func (s *service) SetTyping(ctx context.Context, threadID, userID, userName string, isTyping bool) error {
	now := s.now().UTC()
	state := &domain.TypingState{
		ThreadID:      threadID,
		UserID:        userID,
		UserName:      userName,
		IsTyping:      isTyping,
		LastChangedAt: now,
		// TTL attribute is minute-grained storage hygiene; freshness reads
		// use LastChangedAt. A minute of slack keeps the row readable for
		// the whole TTL window.
		ExpiresAt: now.Add(s.ttl + time.Minute).Unix(),
	}
	if err := s.store.Set(ctx, state); err != nil {
		return err
	}
	s.hub.PublishTyping(threadsync.TypingEvent{
		ThreadID: threadID,
		UserID:   userID,
		UserName: userName,
		IsTyping: isTyping,
	})
	return nil
}

func (s *service) Clear(ctx context.Context, threadID, userID string) error {
	if err := s.store.Delete(ctx, threadID, userID); err != nil {
		return err
	}
	s.hub.PublishTyping(threadsync.TypingEvent{
		ThreadID: threadID,
		UserID:   userID,
		IsTyping: false,
	})
	return nil
}

func (s *service) TypingUsers(ctx context.Context, threadID, selfID string) ([]string, error) {
	states, err := s.store.ListByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	names := make([]string, 0, len(states))
	for i := range states {
		st := &states[i]
		if st.UserID == selfID {
			continue // never reflect the caller's own state back
		}
		if st.Fresh(now, s.ttl) {
			names = append(names, st.UserName)
		}
	}
	return names, nil
}
