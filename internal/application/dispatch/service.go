package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tablemend/tablemend-api/internal/domain"
	"github.com/tablemend/tablemend-api/internal/infrastructure/sns"
)

// tokenResolveParallelism bounds concurrent token lookups per trigger.
const tokenResolveParallelism = 4

type Service interface {
	// Dispatch runs one trigger to its terminal state. Safe under duplicate
	// invocation for the same trigger id: the first invocation's terminal
	// write wins and every other one is a no-op.
	Dispatch(ctx context.Context, triggerID string) error
	// DispatchAsync runs Dispatch on a detached context so an in-flight job
	// always reaches its terminal write regardless of the caller's lifetime.
	DispatchAsync(triggerID string)
}

type triggerStore interface {
	Get(ctx context.Context, triggerID string) (*domain.NotificationTrigger, error)
	MarkProcessed(ctx context.Context, triggerID string, outcome domain.DispatchOutcome, at time.Time) error
}

type pushSender interface {
	SendMulticast(ctx context.Context, tokens []string, note sns.Note) (*sns.MulticastResult, error)
	Send(ctx context.Context, token string, note sns.Note) error
}

type service struct {
	triggers triggerStore
	tokens   domain.TokenResolver
	push     pushSender
	timeout  time.Duration
}

func NewService(triggers triggerStore, tokens domain.TokenResolver, push pushSender, timeout time.Duration) Service {
	return &service{triggers: triggers, tokens: tokens, push: push, timeout: timeout}
}

func (s *service) DispatchAsync(triggerID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Dispatch(ctx, triggerID); err != nil {
			slog.Error("async dispatch failed", "trigger", triggerID, "err", err)
		}
	}()
}

func (s *service) Dispatch(ctx context.Context, triggerID string) error {
	trigger, err := s.triggers.Get(ctx, triggerID)
	if err != nil {
		return fmt.Errorf("load trigger: %w", err)
	}
	if trigger.IsProcessed() {
		// Duplicate invocation; the job already ran to completion.
		slog.Debug("trigger already processed", "trigger", triggerID)
		return nil
	}

	if s.push == nil {
		// No platform application configured. Triggers still reach a terminal
		// state so the pending queue drains instead of growing forever.
		return s.finish(ctx, triggerID, domain.DispatchOutcome{
			Error: "push sender not configured",
		})
	}

	tokens := s.resolveTokens(ctx, trigger.RecipientUserIDs)
	if len(tokens) == 0 {
		return s.finish(ctx, triggerID, domain.DispatchOutcome{
			Error: "no deliverable device tokens",
		})
	}

	note := sns.Note{
		Title:          trigger.Title,
		Body:           trigger.Body,
		Data:           trigger.Payload.Flatten(),
		BadgeIncrement: true,
		HighPriority:   true,
	}

	outcome := domain.DispatchOutcome{}
	res, err := s.push.SendMulticast(ctx, tokens, note)
	if err != nil {
		// Transport-level failure of the multicast call itself: fall back to
		// individual sends so one bad recipient never blocks the rest.
		slog.Warn("multicast send failed, falling back to individual sends",
			"trigger", triggerID, "tokens", len(tokens), "err", err)
		for _, token := range tokens {
			if sendErr := s.push.Send(ctx, token, note); sendErr != nil {
				slog.Warn("individual send failed", "trigger", triggerID, "err", sendErr)
				outcome.FailureCount++
			} else {
				outcome.SuccessCount++
			}
		}
	} else {
		outcome.SuccessCount = res.SuccessCount
		outcome.FailureCount = res.FailureCount
		for _, r := range res.Results {
			if r.Err != nil {
				slog.Warn("push rejected for token", "trigger", triggerID, "err", r.Err)
			}
		}
	}

	return s.finish(ctx, triggerID, outcome)
}

// resolveTokens looks up every recipient's push token with bounded
// parallelism. Recipients without a token are skipped with a warning; lookup
// errors degrade the same way rather than failing the whole job.
func (s *service) resolveTokens(ctx context.Context, userIDs []string) []string {
	var mu sync.Mutex
	tokens := make([]string, 0, len(userIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tokenResolveParallelism)
	for _, uid := range userIDs {
		g.Go(func() error {
			token, err := s.tokens.ResolveDeviceToken(gctx, uid)
			if err != nil {
				slog.Warn("token lookup failed", "user", uid, "err", err)
				return nil
			}
			if token == nil || *token == "" {
				slog.Warn("no device token for recipient", "user", uid)
				return nil
			}
			mu.Lock()
			tokens = append(tokens, *token)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; they degrade per recipient
	return tokens
}

// finish is the single terminal write. The store's conditional update makes
// racing duplicates provably no-ops rather than merely unlikely ones.
func (s *service) finish(ctx context.Context, triggerID string, outcome domain.DispatchOutcome) error {
	err := s.triggers.MarkProcessed(ctx, triggerID, outcome, time.Now().UTC())
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		slog.Debug("lost terminal write race, duplicate invocation", "trigger", triggerID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark trigger processed: %w", err)
	}
	slog.Info("trigger processed", "trigger", triggerID,
		"success", outcome.SuccessCount, "failure", outcome.FailureCount, "error", outcome.Error)
	return nil
}
