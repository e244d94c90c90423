package threadsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tablemend/tablemend-api/internal/domain"
)

// eventBuffer is the per-subscription channel depth. A subscriber that falls
// this far behind loses events and is expected to reconcile by id on its
// next snapshot.
const eventBuffer = 64

type messageLister interface {
	ListByThread(ctx context.Context, threadID string) ([]domain.Message, error)
}

type readMarker interface {
	MarkRead(ctx context.Context, userID, threadID string, at time.Time) error
}

// Hub owns the live view of open threads: a de-duplicated message set per
// thread plus the subscriptions watching it. One Hub per process, passed by
// reference to whoever needs it — no package-level state.
type Hub struct {
	messages   messageLister
	readStates readMarker

	mu      sync.RWMutex
	threads map[string]*threadView
}

type threadView struct {
	byID map[string]domain.Message
	subs map[*Subscription]struct{}
}

// Subscription is a live handle on one thread. The caller owns its
// lifecycle: Close is idempotent and must run on every exit path.
type Subscription struct {
	hub      *Hub
	threadID string
	userID   string
	events   chan Event
	snapshot []domain.Message
	once     sync.Once
}

// Events is the live stream. It is closed by Close.
func (s *Subscription) Events() <-chan Event { return s.events }

// Snapshot is the full ordered message set as of subscription time.
func (s *Subscription) Snapshot() []domain.Message { return s.snapshot }

// Close tears the subscription down and releases the thread view once the
// last watcher leaves. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		close(s.events)
	})
}

func NewHub(messages messageLister, readStates readMarker) *Hub {
	return &Hub{
		messages:   messages,
		readStates: readStates,
		threads:    make(map[string]*threadView),
	}
}

// Subscribe opens a live view of threadID for userID. The returned
// subscription carries the full current message set — not a delta — so a
// reconnecting client reconciles by id instead of resuming a cursor.
// Subscribing marks the thread read for the subscriber.
func (h *Hub) Subscribe(ctx context.Context, threadID, userID string) (*Subscription, error) {
	h.mu.Lock()
	view, ok := h.threads[threadID]
	if !ok {
		// First watcher loads the durable set. Loading under the lock keeps
		// a concurrent publish from racing the initial fill.
		msgs, err := h.messages.ListByThread(ctx, threadID)
		if err != nil {
			h.mu.Unlock()
			return nil, err
		}
		view = &threadView{
			byID: make(map[string]domain.Message, len(msgs)),
			subs: make(map[*Subscription]struct{}),
		}
		for _, m := range msgs {
			view.byID[m.MessageID] = m
		}
		h.threads[threadID] = view
	}

	sub := &Subscription{
		hub:      h,
		threadID: threadID,
		userID:   userID,
		events:   make(chan Event, eventBuffer),
		snapshot: view.ordered(),
	}
	view.subs[sub] = struct{}{}
	h.mu.Unlock()

	if err := h.readStates.MarkRead(ctx, userID, threadID, time.Now()); err != nil {
		// The stream is still usable; the unread badge just lags.
		slog.Warn("mark read on subscribe failed", "thread", threadID, "user", userID, "err", err)
	}
	return sub, nil
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	view, ok := h.threads[sub.threadID]
	if !ok {
		return
	}
	delete(view.subs, sub)
	if len(view.subs) == 0 {
		delete(h.threads, sub.threadID)
	}
}

// PublishMessage merges a new message into the live view and fans it out.
// A message id already present is dropped: it is neither re-inserted nor
// re-announced, which is what keeps at-least-once delivery safe upstream.
func (h *Hub) PublishMessage(msg domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	view, ok := h.threads[msg.ThreadID]
	if !ok {
		return // nobody watching; next subscriber loads it from the store
	}
	if _, dup := view.byID[msg.MessageID]; dup {
		return
	}
	view.byID[msg.MessageID] = msg
	view.fanout(Event{Type: EventMessagePosted, Message: &msg})
}

// PublishMessageUpdate replaces an existing message in place (reactions,
// proposal state) and fans the new version out. Ordering is untouched since
// (createdAt, id) never changes.
func (h *Hub) PublishMessageUpdate(msg domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	view, ok := h.threads[msg.ThreadID]
	if !ok {
		return
	}
	view.byID[msg.MessageID] = msg
	view.fanout(Event{Type: EventMessageUpdated, Message: &msg})
}

// PublishTyping fans a presence change out to everyone but the typist; a
// user never sees their own typing state reflected back.
func (h *Hub) PublishTyping(ev TypingEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	view, ok := h.threads[ev.ThreadID]
	if !ok {
		return
	}
	for sub := range view.subs {
		if sub.userID == ev.UserID {
			continue
		}
		sub.deliver(Event{Type: EventTypingChanged, Typing: &ev})
	}
}

// PublishRead fans a read-watermark move out to the thread's watchers.
func (h *Hub) PublishRead(ev ReadEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	view, ok := h.threads[ev.ThreadID]
	if !ok {
		return
	}
	for sub := range view.subs {
		if sub.userID == ev.UserID {
			continue
		}
		sub.deliver(Event{Type: EventReadChanged, Read: &ev})
	}
}

func (v *threadView) fanout(ev Event) {
	for sub := range v.subs {
		sub.deliver(ev)
	}
}

func (s *Subscription) deliver(ev Event) {
	select {
	case s.events <- ev:
	default:
		slog.Warn("dropping event for slow subscriber", "thread", s.threadID, "user", s.userID, "type", ev.Type)
	}
}

func (v *threadView) ordered() []domain.Message {
	out := make([]domain.Message, 0, len(v.byID))
	for _, m := range v.byID {
		out = append(out, m)
	}
	domain.SortMessages(out)
	return out
}
