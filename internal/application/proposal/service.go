package proposal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tablemend/tablemend-api/internal/domain"
)

// Action is what a participant does with an assistant proposal.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDismiss Action = "dismiss"
)

type Service interface {
	// Resolve moves a proposal out of the proposed state. Accepting applies
	// the change to the issue first; dismissing records only. A second
	// resolution attempt is a no-op returning the current message.
	Resolve(ctx context.Context, threadID, messageID string, action Action, userID string) (*domain.Message, error)
}

type messageStore interface {
	Get(ctx context.Context, threadID, messageID string) (*domain.Message, error)
	ResolveProposal(ctx context.Context, threadID, messageID string, state domain.ProposalState, userID string, at time.Time) error
}

type publisher interface {
	PublishMessageUpdate(msg domain.Message)
}

type service struct {
	messages messageStore
	issues   domain.IssueUpdater
	hub      publisher
}

func NewService(messages messageStore, issues domain.IssueUpdater, hub publisher) Service {
	return &service{messages: messages, issues: issues, hub: hub}
}

func (s *service) Resolve(ctx context.Context, threadID, messageID string, action Action, userID string) (*domain.Message, error) {
	msg, err := s.messages.Get(ctx, threadID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Proposal == nil {
		return nil, fmt.Errorf("message %s carries no proposal: %w", messageID, domain.ErrBadRequest)
	}
	if msg.Proposal.Resolved() {
		// Already terminal; nothing to do, nothing to write.
		return msg, domain.ErrAlreadyResolved
	}

	var state domain.ProposalState
	switch action {
	case ActionAccept:
		state = domain.ProposalAccepted
		// Apply before recording: if the issue update fails the proposal
		// stays proposed and the caller can retry.
		if err := s.issues.ApplyChange(ctx, msg.Proposal.IssueID, msg.Proposal.Field, msg.Proposal.Value); err != nil {
			return nil, fmt.Errorf("apply proposal to issue %s: %w", msg.Proposal.IssueID, err)
		}
	case ActionDismiss:
		state = domain.ProposalDismissed
	default:
		return nil, fmt.Errorf("unknown proposal action %q: %w", action, domain.ErrBadRequest)
	}

	err = s.messages.ResolveProposal(ctx, threadID, messageID, state, userID, time.Now().UTC())
	if errors.Is(err, domain.ErrAlreadyResolved) {
		// Lost a race with another resolver; surface the stored state.
		current, getErr := s.messages.Get(ctx, threadID, messageID)
		if getErr != nil {
			return nil, getErr
		}
		return current, domain.ErrAlreadyResolved
	}
	if err != nil {
		return nil, err
	}

	current, err := s.messages.Get(ctx, threadID, messageID)
	if err != nil {
		return nil, err
	}
	s.hub.PublishMessageUpdate(*current)
	return current, nil
}
