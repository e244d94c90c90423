package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tablemend/tablemend-api/internal/application/threadsync"
	"github.com/tablemend/tablemend-api/internal/domain"
	"github.com/tablemend/tablemend-api/internal/pkg/id"
	"github.com/tablemend/tablemend-api/internal/pkg/validate"
)

// maxFutureSkew bounds how far ahead of server time a client-supplied
// timestamp may be. Ordering tolerates skew; unbounded future stamps would
// pin a message to the bottom of the thread forever.
const maxFutureSkew = 5 * time.Minute

type Service interface {
	Send(ctx context.Context, req SendRequest) (*domain.Message, error)
	List(ctx context.Context, threadID string) ([]domain.Message, error)
	AddReaction(ctx context.Context, threadID, messageID, symbol, userID string) (*domain.Message, error)
	RemoveReaction(ctx context.Context, threadID, messageID, symbol, userID string) (*domain.Message, error)
	MarkRead(ctx context.Context, userID, threadID string) error
}

type messageStore interface {
	Put(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, threadID, messageID string) (*domain.Message, error)
	ListByThread(ctx context.Context, threadID string) ([]domain.Message, error)
	SetReactions(ctx context.Context, threadID, messageID string, reactions map[string][]string) error
}

type threadStore interface {
	Get(ctx context.Context, threadID string) (*domain.Thread, error)
	Put(ctx context.Context, t *domain.Thread) error
	TouchActivity(ctx context.Context, threadID string, at time.Time) error
}

type readStateStore interface {
	MarkRead(ctx context.Context, userID, threadID string, at time.Time) error
}

type triggerStore interface {
	Put(ctx context.Context, t *domain.NotificationTrigger) error
}

type typingStore interface {
	Delete(ctx context.Context, threadID, userID string) error
}

// dispatcher kicks the notification pipeline after a trigger is enqueued.
// Fire-and-forget: message durability never waits on it.
type dispatcher interface {
	DispatchAsync(triggerID string)
}

type publisher interface {
	PublishMessage(msg domain.Message)
	PublishMessageUpdate(msg domain.Message)
	PublishRead(ev threadsync.ReadEvent)
	PublishTyping(ev threadsync.TypingEvent)
}

type service struct {
	messages    messageStore
	threads     threadStore
	readStates  readStateStore
	triggers    triggerStore
	typing      typingStore
	dispatch    dispatcher
	hub         publisher
	attachments domain.AttachmentStore
}

type Deps struct {
	Messages    messageStore
	Threads     threadStore
	ReadStates  readStateStore
	Triggers    triggerStore
	Typing      typingStore
	Dispatcher  dispatcher
	Hub         publisher
	Attachments domain.AttachmentStore
}

func NewService(d Deps) Service {
	return &service{
		messages:    d.Messages,
		threads:     d.Threads,
		readStates:  d.ReadStates,
		triggers:    d.Triggers,
		typing:      d.Typing,
		dispatch:    d.Dispatcher,
		hub:         d.Hub,
		attachments: d.Attachments,
	}
}

// SendRequest is everything needed to append a message. MessageID and
// CreatedAt are client-supplied when present (offline compose, retries reuse
// the same id) and generated server-side otherwise.
type SendRequest struct {
	ThreadID        string            `validate:"required"`
	AuthorID        string            `validate:"required"`
	AuthorName      string            `validate:"required"`
	AuthorKind      domain.AuthorKind `validate:"required"`
	Body            string
	MessageID       string
	CreatedAt       time.Time
	ParentMessageID *string
	Attachment      *Attachment
	Proposal        *domain.Proposal

	// Thread bootstrap, used only when this is the thread's first message.
	IssueID        string
	IssueTitle     string
	RestaurantName string
	ParticipantIDs []string
}

type Attachment struct {
	Data        []byte `validate:"required"`
	ContentType string `validate:"required"`
}

// Send persists the message, bumps thread activity, enqueues a notification
// trigger for the other participants and fans the message out to open
// clients. The message is durable before any notification work starts; a
// failed notification never unwinds it.
func (s *service) Send(ctx context.Context, req SendRequest) (*domain.Message, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}
	if !req.AuthorKind.Valid() {
		return nil, fmt.Errorf("unknown author kind %q: %w", req.AuthorKind, domain.ErrBadRequest)
	}
	if req.Body == "" && req.Attachment == nil {
		return nil, fmt.Errorf("empty message: %w", domain.ErrBadRequest)
	}

	now := time.Now().UTC()
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	} else if createdAt.After(now.Add(maxFutureSkew)) {
		return nil, fmt.Errorf("created_at too far in the future: %w", domain.ErrBadRequest)
	}

	thread, err := s.ensureThread(ctx, &req, createdAt)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		MessageID:       req.MessageID,
		ThreadID:        req.ThreadID,
		AuthorID:        req.AuthorID,
		AuthorKind:      req.AuthorKind,
		Body:            req.Body,
		ParentMessageID: req.ParentMessageID,
		CreatedAt:       createdAt,
		Proposal:        req.Proposal,
	}
	if msg.MessageID == "" {
		msg.MessageID = id.New()
	}
	if msg.Proposal != nil && msg.Proposal.State == "" {
		msg.Proposal.State = domain.ProposalProposed
	}

	if req.Attachment != nil {
		key := fmt.Sprintf("threads/%s/%s", req.ThreadID, msg.MessageID)
		url, err := s.attachments.UploadAttachment(ctx, key, req.Attachment.Data, req.Attachment.ContentType)
		if err != nil {
			return nil, fmt.Errorf("upload attachment: %w", err)
		}
		msg.AttachmentURL = &url
	}

	// Persistence failures surface to the sender so they can retry.
	if err := s.messages.Put(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if err := s.threads.TouchActivity(ctx, req.ThreadID, createdAt); err != nil {
		slog.Warn("touch thread activity failed", "thread", req.ThreadID, "err", err)
	}

	s.clearTyping(ctx, req.ThreadID, req.AuthorID)
	s.enqueueTrigger(ctx, thread, msg, req)
	s.hub.PublishMessage(*msg)
	return msg, nil
}

// clearTyping ends the author's typing presence: sending is an implicit
// "stopped typing" for everyone watching the thread.
func (s *service) clearTyping(ctx context.Context, threadID, userID string) {
	if err := s.typing.Delete(ctx, threadID, userID); err != nil {
		slog.Warn("clear typing on send failed", "thread", threadID, "user", userID, "err", err)
	}
	s.hub.PublishTyping(threadsync.TypingEvent{
		ThreadID: threadID,
		UserID:   userID,
		IsTyping: false,
	})
}

func (s *service) ensureThread(ctx context.Context, req *SendRequest, at time.Time) (*domain.Thread, error) {
	thread, err := s.threads.Get(ctx, req.ThreadID)
	if err == nil {
		return thread, nil
	}
	// Only a confirmed miss may create the thread; a transient store error
	// must not overwrite an existing record or masquerade as a 404.
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load thread %s: %w", req.ThreadID, err)
	}
	if len(req.ParticipantIDs) == 0 {
		return nil, fmt.Errorf("thread %s: %w", req.ThreadID, domain.ErrNotFound)
	}
	// First message creates the thread.
	thread = &domain.Thread{
		ThreadID:       req.ThreadID,
		IssueID:        req.IssueID,
		RestaurantName: req.RestaurantName,
		ParticipantIDs: req.ParticipantIDs,
		LastActivityAt: at,
		CreatedAt:      at,
	}
	if err := s.threads.Put(ctx, thread); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return thread, nil
}

// enqueueTrigger writes the durable notification job and kicks the
// dispatcher. Failures here are operational only — the message is already
// delivered to the thread.
func (s *service) enqueueTrigger(ctx context.Context, thread *domain.Thread, msg *domain.Message, req SendRequest) {
	recipients := thread.Recipients(msg.AuthorID)
	if len(recipients) == 0 {
		return
	}
	title := thread.RestaurantName
	if title == "" {
		title = req.IssueTitle
	}
	body := msg.Body
	if body == "" && msg.AttachmentURL != nil {
		body = fmt.Sprintf("%s sent a photo", req.AuthorName)
	} else {
		body = fmt.Sprintf("%s: %s", req.AuthorName, msg.Body)
	}
	trigger := &domain.NotificationTrigger{
		TriggerID:        id.New(),
		RecipientUserIDs: recipients,
		Title:            title,
		Body:             body,
		Payload: domain.NotificationPayload{
			Kind:           domain.PayloadMessage,
			IssueID:        thread.IssueID,
			ConversationID: thread.ThreadID,
			SenderID:       msg.AuthorID,
			RestaurantName: thread.RestaurantName,
			IssueTitle:     req.IssueTitle,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := trigger.Payload.Validate(); err != nil {
		slog.Error("invalid notification payload", "trigger", trigger.TriggerID, "err", err)
		return
	}
	if err := s.triggers.Put(ctx, trigger); err != nil {
		slog.Error("enqueue notification trigger failed", "thread", thread.ThreadID, "err", err)
		return
	}
	s.dispatch.DispatchAsync(trigger.TriggerID)
}

// List returns the thread's full message set ordered by (createdAt, id).
func (s *service) List(ctx context.Context, threadID string) ([]domain.Message, error) {
	msgs, err := s.messages.ListByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	domain.SortMessages(msgs)
	return msgs, nil
}

// AddReaction is idempotent: reacting twice with the same symbol is a no-op
// that still returns the current message.
func (s *service) AddReaction(ctx context.Context, threadID, messageID, symbol, userID string) (*domain.Message, error) {
	return s.mutateReactions(ctx, threadID, messageID, func(m *domain.Message) bool {
		return m.AddReaction(symbol, userID)
	})
}

// RemoveReaction is idempotent: removing an absent reaction is a no-op.
func (s *service) RemoveReaction(ctx context.Context, threadID, messageID, symbol, userID string) (*domain.Message, error) {
	return s.mutateReactions(ctx, threadID, messageID, func(m *domain.Message) bool {
		return m.RemoveReaction(symbol, userID)
	})
}

func (s *service) mutateReactions(ctx context.Context, threadID, messageID string, mutate func(*domain.Message) bool) (*domain.Message, error) {
	msg, err := s.messages.Get(ctx, threadID, messageID)
	if err != nil {
		return nil, err
	}
	if !mutate(msg) {
		return msg, nil // no change, nothing to write
	}
	if err := s.messages.SetReactions(ctx, threadID, messageID, msg.Reactions); err != nil {
		return nil, fmt.Errorf("persist reactions: %w", err)
	}
	s.hub.PublishMessageUpdate(*msg)
	return msg, nil
}

// MarkRead advances the caller's watermark and announces it to the thread.
func (s *service) MarkRead(ctx context.Context, userID, threadID string) error {
	at := time.Now().UTC()
	if err := s.readStates.MarkRead(ctx, userID, threadID, at); err != nil {
		return err
	}
	s.hub.PublishRead(threadsync.ReadEvent{ThreadID: threadID, UserID: userID, LastReadAt: at})
	return nil
}
