package message

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tablemend/tablemend-api/internal/application/threadsync"
	"github.com/tablemend/tablemend-api/internal/domain"
)

// --- mocks ---

type mockMessageStore struct{ mock.Mock }

func (m *mockMessageStore) Put(ctx context.Context, msg *domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}
func (m *mockMessageStore) Get(ctx context.Context, threadID, messageID string) (*domain.Message, error) {
	args := m.Called(ctx, threadID, messageID)
	if msg, _ := args.Get(0).(*domain.Message); msg != nil {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockMessageStore) ListByThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	args := m.Called(ctx, threadID)
	if msgs, _ := args.Get(0).([]domain.Message); msgs != nil {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockMessageStore) SetReactions(ctx context.Context, threadID, messageID string, reactions map[string][]string) error {
	return m.Called(ctx, threadID, messageID, reactions).Error(0)
}

type mockThreadStore struct{ mock.Mock }

func (m *mockThreadStore) Get(ctx context.Context, threadID string) (*domain.Thread, error) {
	args := m.Called(ctx, threadID)
	if t, _ := args.Get(0).(*domain.Thread); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockThreadStore) Put(ctx context.Context, t *domain.Thread) error {
	return m.Called(ctx, t).Error(0)
}
func (m *mockThreadStore) TouchActivity(ctx context.Context, threadID string, at time.Time) error {
	return m.Called(ctx, threadID, at).Error(0)
}

type mockReadStateStore struct{ mock.Mock }

func (m *mockReadStateStore) MarkRead(ctx context.Context, userID, threadID string, at time.Time) error {
	return m.Called(ctx, userID, threadID, at).Error(0)
}

type mockTriggerStore struct{ mock.Mock }

func (m *mockTriggerStore) Put(ctx context.Context, t *domain.NotificationTrigger) error {
	return m.Called(ctx, t).Error(0)
}

type mockTypingStore struct{ mock.Mock }

func (m *mockTypingStore) Delete(ctx context.Context, threadID, userID string) error {
	return m.Called(ctx, threadID, userID).Error(0)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) DispatchAsync(triggerID string) {
	m.Called(triggerID)
}

type mockHub struct{ mock.Mock }

func (m *mockHub) PublishMessage(msg domain.Message) {
	m.Called(msg)
}
func (m *mockHub) PublishMessageUpdate(msg domain.Message) {
	m.Called(msg)
}
func (m *mockHub) PublishRead(ev threadsync.ReadEvent) {
	m.Called(ev)
}
func (m *mockHub) PublishTyping(ev threadsync.TypingEvent) {
	m.Called(ev)
}

type mockAttachmentStore struct{ mock.Mock }

func (m *mockAttachmentStore) UploadAttachment(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

// --- helpers ---

type fixture struct {
	messages   *mockMessageStore
	threads    *mockThreadStore
	readStates *mockReadStateStore
	triggers   *mockTriggerStore
	typing     *mockTypingStore
	dispatcher *mockDispatcher
	hub        *mockHub
	uploads    *mockAttachmentStore
	svc        Service
}

func newFixture() *fixture {
	f := &fixture{
		messages:   &mockMessageStore{},
		threads:    &mockThreadStore{},
		readStates: &mockReadStateStore{},
		triggers:   &mockTriggerStore{},
		typing:     &mockTypingStore{},
		dispatcher: &mockDispatcher{},
		hub:        &mockHub{},
		uploads:    &mockAttachmentStore{},
	}
	f.svc = NewService(Deps{
		Messages:    f.messages,
		Threads:     f.threads,
		ReadStates:  f.readStates,
		Triggers:    f.triggers,
		Typing:      f.typing,
		Dispatcher:  f.dispatcher,
		Hub:         f.hub,
		Attachments: f.uploads,
	})
	return f
}

// armTypingClear satisfies the implicit stopped-typing every successful send
// performs for its author.
func (f *fixture) armTypingClear() {
	f.typing.On("Delete", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.hub.On("PublishTyping", mock.Anything).Return()
}

func existingThread() *domain.Thread {
	return &domain.Thread{
		ThreadID:       "t-1",
		IssueID:        "issue-1",
		RestaurantName: "La Cocina",
		ParticipantIDs: []string{"alice", "bob", "carol"},
	}
}

func validSend() SendRequest {
	return SendRequest{
		ThreadID:   "t-1",
		AuthorID:   "alice",
		AuthorName: "Alice",
		AuthorKind: domain.AuthorHuman,
		Body:       "the fridge is leaking again",
		IssueTitle: "Fridge leak",
	}
}

// --- Send tests ---

func TestSend_PersistsAndNotifies(t *testing.T) {
	f := newFixture()

	f.threads.On("Get", mock.Anything, "t-1").Return(existingThread(), nil)
	f.messages.On("Put", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
	f.threads.On("TouchActivity", mock.Anything, "t-1", mock.Anything).Return(nil)
	f.triggers.On("Put", mock.Anything, mock.AnythingOfType("*domain.NotificationTrigger")).Return(nil)
	f.dispatcher.On("DispatchAsync", mock.Anything).Return()
	f.hub.On("PublishMessage", mock.Anything).Return()
	f.armTypingClear()

	msg, err := f.svc.Send(context.Background(), validSend())

	require.NoError(t, err)
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, "alice", msg.AuthorID)
	assert.False(t, msg.CreatedAt.IsZero())

	// Trigger targets everyone except the author.
	trigger := f.triggers.Calls[0].Arguments.Get(1).(*domain.NotificationTrigger)
	assert.ElementsMatch(t, []string{"bob", "carol"}, trigger.RecipientUserIDs)
	assert.Equal(t, domain.PayloadMessage, trigger.Payload.Kind)
	assert.Equal(t, "t-1", trigger.Payload.ConversationID)
	f.dispatcher.AssertCalled(t, "DispatchAsync", trigger.TriggerID)
	f.hub.AssertCalled(t, "PublishMessage", mock.Anything)
}

func TestSend_ClientSuppliedIDAndTimestampKept(t *testing.T) {
	f := newFixture()
	at := time.Now().UTC().Add(-2 * time.Minute)

	f.threads.On("Get", mock.Anything, "t-1").Return(existingThread(), nil)
	f.messages.On("Put", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
	f.threads.On("TouchActivity", mock.Anything, "t-1", at).Return(nil)
	f.triggers.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.dispatcher.On("DispatchAsync", mock.Anything).Return()
	f.hub.On("PublishMessage", mock.Anything).Return()
	f.armTypingClear()

	req := validSend()
	req.MessageID = "client-id-9"
	req.CreatedAt = at

	msg, err := f.svc.Send(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "client-id-9", msg.MessageID)
	assert.Equal(t, at, msg.CreatedAt)
}

func TestSend_FutureTimestampRejected(t *testing.T) {
	f := newFixture()

	req := validSend()
	req.CreatedAt = time.Now().UTC().Add(10 * time.Minute)

	_, err := f.svc.Send(context.Background(), req)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	f.messages.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestSend_EmptyMessageRejected(t *testing.T) {
	f := newFixture()

	req := validSend()
	req.Body = ""

	_, err := f.svc.Send(context.Background(), req)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestSend_UnknownThreadWithoutParticipants(t *testing.T) {
	f := newFixture()

	f.threads.On("Get", mock.Anything, "t-1").Return(nil, domain.ErrNotFound)

	_, err := f.svc.Send(context.Background(), validSend())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSend_TransientThreadLookupErrorSurfaces(t *testing.T) {
	f := newFixture()

	f.threads.On("Get", mock.Anything, "t-1").Return(nil, errors.New("throttled: rate exceeded"))

	req := validSend()
	req.ParticipantIDs = []string{"alice", "bob"}

	_, err := f.svc.Send(context.Background(), req)

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	// A lookup failure must never recreate the thread or persist anything.
	f.threads.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	f.messages.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestSend_ClearsAuthorTyping(t *testing.T) {
	f := newFixture()

	f.threads.On("Get", mock.Anything, "t-1").Return(existingThread(), nil)
	f.messages.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.threads.On("TouchActivity", mock.Anything, "t-1", mock.Anything).Return(nil)
	f.triggers.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.dispatcher.On("DispatchAsync", mock.Anything).Return()
	f.hub.On("PublishMessage", mock.Anything).Return()
	f.typing.On("Delete", mock.Anything, "t-1", "alice").Return(nil)
	f.hub.On("PublishTyping", mock.Anything).Return()

	_, err := f.svc.Send(context.Background(), validSend())

	require.NoError(t, err)
	f.typing.AssertCalled(t, "Delete", mock.Anything, "t-1", "alice")

	var ev threadsync.TypingEvent
	for _, c := range f.hub.Calls {
		if c.Method == "PublishTyping" {
			ev = c.Arguments.Get(0).(threadsync.TypingEvent)
		}
	}
	assert.Equal(t, "t-1", ev.ThreadID)
	assert.Equal(t, "alice", ev.UserID)
	assert.False(t, ev.IsTyping)
}

func TestSend_TypingClearFailureDoesNotFailSend(t *testing.T) {
	f := newFixture()

	f.threads.On("Get", mock.Anything, "t-1").Return(existingThread(), nil)
	f.messages.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.threads.On("TouchActivity", mock.Anything, "t-1", mock.Anything).Return(nil)
	f.triggers.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.dispatcher.On("DispatchAsync", mock.Anything).Return()
	f.hub.On("PublishMessage", mock.Anything).Return()
	f.typing.On("Delete", mock.Anything, "t-1", "alice").Return(errors.New("table missing"))
	f.hub.On("PublishTyping", mock.Anything).Return()

	msg, err := f.svc.Send(context.Background(), validSend())

	require.NoError(t, err)
	assert.NotNil(t, msg)
	// The stop event still reaches watchers; the stale row expires by TTL.
	f.hub.AssertCalled(t, "PublishTyping", mock.Anything)
}

func TestSend_FirstMessageCreatesThread(t *testing.T) {
	f := newFixture()

	f.threads.On("Get", mock.Anything, "t-1").Return(nil, domain.ErrNotFound)
	f.threads.On("Put", mock.Anything, mock.AnythingOfType("*domain.Thread")).Return(nil)
	f.messages.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.threads.On("TouchActivity", mock.Anything, "t-1", mock.Anything).Return(nil)
	f.triggers.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.dispatcher.On("DispatchAsync", mock.Anything).Return()
	f.hub.On("PublishMessage", mock.Anything).Return()
	f.armTypingClear()

	req := validSend()
	req.IssueID = "issue-1"
	req.RestaurantName = "La Cocina"
	req.ParticipantIDs = []string{"alice", "bob"}

	_, err := f.svc.Send(context.Background(), req)

	require.NoError(t, err)
	created := f.threads.Calls[1].Arguments.Get(1).(*domain.Thread)
	assert.Equal(t, "t-1", created.ThreadID)
	assert.Equal(t, []string{"alice", "bob"}, created.ParticipantIDs)
}

func TestSend_PersistFailureSurfacesToSender(t *testing.T) {
	f := newFixture()

	f.threads.On("Get", mock.Anything, "t-1").Return(existingThread(), nil)
	f.messages.On("Put", mock.Anything, mock.Anything).Return(errors.New("throughput exceeded"))

	_, err := f.svc.Send(context.Background(), validSend())

	require.Error(t, err)
	f.hub.AssertNotCalled(t, "PublishMessage", mock.Anything)
	f.triggers.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestSend_TriggerFailureDoesNotFailSend(t *testing.T) {
	f := newFixture()

	f.threads.On("Get", mock.Anything, "t-1").Return(existingThread(), nil)
	f.messages.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.threads.On("TouchActivity", mock.Anything, "t-1", mock.Anything).Return(nil)
	f.triggers.On("Put", mock.Anything, mock.Anything).Return(errors.New("table missing"))
	f.hub.On("PublishMessage", mock.Anything).Return()
	f.armTypingClear()

	msg, err := f.svc.Send(context.Background(), validSend())

	require.NoError(t, err)
	assert.NotNil(t, msg)
	f.dispatcher.AssertNotCalled(t, "DispatchAsync", mock.Anything)
	f.hub.AssertCalled(t, "PublishMessage", mock.Anything)
}

func TestSend_UploadsAttachment(t *testing.T) {
	f := newFixture()

	f.threads.On("Get", mock.Anything, "t-1").Return(existingThread(), nil)
	f.uploads.On("UploadAttachment", mock.Anything, mock.Anything, []byte{0xFF, 0xD8}, "image/jpeg").
		Return("https://attachments.s3.us-east-1.amazonaws.com/threads/t-1/m-1", nil)
	f.messages.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.threads.On("TouchActivity", mock.Anything, "t-1", mock.Anything).Return(nil)
	f.triggers.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.dispatcher.On("DispatchAsync", mock.Anything).Return()
	f.hub.On("PublishMessage", mock.Anything).Return()
	f.armTypingClear()

	req := validSend()
	req.Body = ""
	req.Attachment = &Attachment{Data: []byte{0xFF, 0xD8}, ContentType: "image/jpeg"}

	msg, err := f.svc.Send(context.Background(), req)

	require.NoError(t, err)
	require.NotNil(t, msg.AttachmentURL)
	assert.Equal(t, "https://attachments.s3.us-east-1.amazonaws.com/threads/t-1/m-1", *msg.AttachmentURL)
}

func TestSend_ProposalDefaultsToProposed(t *testing.T) {
	f := newFixture()

	f.threads.On("Get", mock.Anything, "t-1").Return(existingThread(), nil)
	f.messages.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.threads.On("TouchActivity", mock.Anything, "t-1", mock.Anything).Return(nil)
	f.triggers.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.dispatcher.On("DispatchAsync", mock.Anything).Return()
	f.hub.On("PublishMessage", mock.Anything).Return()
	f.armTypingClear()

	req := validSend()
	req.AuthorKind = domain.AuthorAssistant
	req.Proposal = &domain.Proposal{
		Field:   domain.ProposalFieldPriority,
		Value:   "urgent",
		IssueID: "issue-1",
	}

	msg, err := f.svc.Send(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, domain.ProposalProposed, msg.Proposal.State)
}

// --- List tests ---

func TestList_OrderedByTimestampThenID(t *testing.T) {
	f := newFixture()
	base := time.Now().UTC()

	f.messages.On("ListByThread", mock.Anything, "t-1").Return([]domain.Message{
		{MessageID: "b", CreatedAt: base},
		{MessageID: "a", CreatedAt: base},
		{MessageID: "c", CreatedAt: base.Add(-time.Minute)},
	}, nil)

	msgs, err := f.svc.List(context.Background(), "t-1")

	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "c", msgs[0].MessageID)
	assert.Equal(t, "a", msgs[1].MessageID)
	assert.Equal(t, "b", msgs[2].MessageID)
}

// --- reaction tests ---

func TestAddReaction_WritesAndPublishes(t *testing.T) {
	f := newFixture()

	f.messages.On("Get", mock.Anything, "t-1", "m-1").Return(&domain.Message{
		MessageID: "m-1", ThreadID: "t-1",
	}, nil)
	f.messages.On("SetReactions", mock.Anything, "t-1", "m-1", mock.Anything).Return(nil)
	f.hub.On("PublishMessageUpdate", mock.Anything).Return()

	msg, err := f.svc.AddReaction(context.Background(), "t-1", "m-1", "👍", "bob")

	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, msg.Reactions["👍"])
	f.hub.AssertCalled(t, "PublishMessageUpdate", mock.Anything)
}

func TestAddReaction_DuplicateIsNoWrite(t *testing.T) {
	f := newFixture()

	f.messages.On("Get", mock.Anything, "t-1", "m-1").Return(&domain.Message{
		MessageID: "m-1", ThreadID: "t-1",
		Reactions: map[string][]string{"👍": {"bob"}},
	}, nil)

	msg, err := f.svc.AddReaction(context.Background(), "t-1", "m-1", "👍", "bob")

	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, msg.Reactions["👍"])
	f.messages.AssertNotCalled(t, "SetReactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.hub.AssertNotCalled(t, "PublishMessageUpdate", mock.Anything)
}

func TestRemoveReaction_AbsentIsNoWrite(t *testing.T) {
	f := newFixture()

	f.messages.On("Get", mock.Anything, "t-1", "m-1").Return(&domain.Message{
		MessageID: "m-1", ThreadID: "t-1",
	}, nil)

	_, err := f.svc.RemoveReaction(context.Background(), "t-1", "m-1", "👍", "bob")

	require.NoError(t, err)
	f.messages.AssertNotCalled(t, "SetReactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveReaction_LastUserDropsSymbol(t *testing.T) {
	f := newFixture()

	f.messages.On("Get", mock.Anything, "t-1", "m-1").Return(&domain.Message{
		MessageID: "m-1", ThreadID: "t-1",
		Reactions: map[string][]string{"👍": {"bob"}},
	}, nil)
	f.messages.On("SetReactions", mock.Anything, "t-1", "m-1", mock.Anything).Return(nil)
	f.hub.On("PublishMessageUpdate", mock.Anything).Return()

	msg, err := f.svc.RemoveReaction(context.Background(), "t-1", "m-1", "👍", "bob")

	require.NoError(t, err)
	_, present := msg.Reactions["👍"]
	assert.False(t, present)
}

// --- MarkRead tests ---

func TestMarkRead_PublishesWatermark(t *testing.T) {
	f := newFixture()

	f.readStates.On("MarkRead", mock.Anything, "bob", "t-1", mock.Anything).Return(nil)
	f.hub.On("PublishRead", mock.Anything).Return()

	err := f.svc.MarkRead(context.Background(), "bob", "t-1")

	require.NoError(t, err)
	ev := f.hub.Calls[0].Arguments.Get(0).(threadsync.ReadEvent)
	assert.Equal(t, "bob", ev.UserID)
	assert.Equal(t, "t-1", ev.ThreadID)
	assert.False(t, ev.LastReadAt.IsZero())
}

func TestMarkRead_StoreFailureSurfaces(t *testing.T) {
	f := newFixture()

	f.readStates.On("MarkRead", mock.Anything, "bob", "t-1", mock.Anything).Return(errors.New("unavailable"))

	err := f.svc.MarkRead(context.Background(), "bob", "t-1")

	require.Error(t, err)
	f.hub.AssertNotCalled(t, "PublishRead", mock.Anything)
}
