package domain

import "time"

// ProposalState is the lifecycle of an assistant suggestion attached to a
// message. proposed is the only non-terminal state.
type ProposalState string

const (
	ProposalProposed  ProposalState = "proposed"
	ProposalAccepted  ProposalState = "accepted"
	ProposalDismissed ProposalState = "dismissed"
)

// ProposalField names the issue attribute a proposal wants to change.
type ProposalField string

const (
	ProposalFieldStatus   ProposalField = "status"
	ProposalFieldPriority ProposalField = "priority"
	ProposalFieldCost     ProposalField = "cost"
)

// Proposal is a structured change suggestion carried by an assistant message,
// e.g. "set priority to urgent" derived from a photo analysis.
type Proposal struct {
	Field      ProposalField `json:"field" dynamodbav:"field"`
	Value      string        `json:"value" dynamodbav:"value"`
	IssueID    string        `json:"issue_id" dynamodbav:"issue_id"`
	State      ProposalState `json:"state" dynamodbav:"state"`
	ResolvedBy *string       `json:"resolved_by,omitempty" dynamodbav:"resolved_by"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty" dynamodbav:"resolved_at"`
}

// Resolved reports whether the proposal has reached a terminal state.
func (p *Proposal) Resolved() bool {
	return p.State == ProposalAccepted || p.State == ProposalDismissed
}
