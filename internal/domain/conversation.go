package domain

import (
	"fmt"
	"time"
)

// ConversationStatus represents the deflection state of a conversation
type ConversationStatus string

const (
	ConversationStatusNew            ConversationStatus = "new"
	ConversationStatusAIChat         ConversationStatus = "ai_chat"
	ConversationStatusPendingHandoff ConversationStatus = "pending_handoff"
	ConversationStatusActive         ConversationStatus = "active"
	ConversationStatusClosed         ConversationStatus = "closed"
)

// Conversation represents a customer conversation.
// Status changes only through ValidateTransition-approved moves;
// closed conversations are terminal and never reopened.
type Conversation struct {
	ID                 string
	OrgID              string
	Status             ConversationStatus
	AssignedTo         *string
	IsAssigned         bool
	CustomerID         string
	SatisfactionScore  *int
	DeflectionFailures int
	ClosedAt           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewConversation creates a conversation in the new state, unassigned.
func NewConversation(id, orgID, customerID string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:         id,
		OrgID:      orgID,
		Status:     ConversationStatusNew,
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SenderType identifies who authored a message
type SenderType string

const (
	SenderTypeCustomer SenderType = "customer"
	SenderTypeAgent    SenderType = "agent"
	SenderTypeSystem   SenderType = "system"
)

// Message is an append-only conversation entry. A synthetic system
// message accompanies every status change.
type Message struct {
	ID             string
	ConversationID string
	SenderType     SenderType
	Content        string
	CreatedAt      time.Time
}

// AssignmentEffect describes the assignment write that accompanies a
// status transition.
type AssignmentEffect struct {
	Apply      bool
	Assigned   bool
	AssignToAI bool
}

// TransitionRule pairs the set of statuses reachable from a state with
// the assignment effect applied atomically with the status write.
type TransitionRule struct {
	Next   map[ConversationStatus]struct{}
	Effect AssignmentEffect
}

// transitionTable is consulted once per transition request. Statuses
// absent from a rule's Next set are rejected; closed is terminal.
var transitionTable = map[ConversationStatus]TransitionRule{
	ConversationStatusNew: {
		Next:   statusSet(ConversationStatusAIChat),
		Effect: AssignmentEffect{Apply: true, Assigned: true, AssignToAI: true},
	},
	ConversationStatusAIChat: {
		Next:   statusSet(ConversationStatusPendingHandoff, ConversationStatusClosed),
		Effect: AssignmentEffect{Apply: true, Assigned: true, AssignToAI: true},
	},
	ConversationStatusPendingHandoff: {
		Next:   statusSet(ConversationStatusActive),
		Effect: AssignmentEffect{Apply: true, Assigned: false, AssignToAI: false},
	},
	ConversationStatusActive: {
		Next:   statusSet(ConversationStatusClosed),
		Effect: AssignmentEffect{Apply: false},
	},
	ConversationStatusClosed: {
		Next:   statusSet(),
		Effect: AssignmentEffect{Apply: false},
	},
}

func statusSet(statuses ...ConversationStatus) map[ConversationStatus]struct{} {
	set := make(map[ConversationStatus]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

// ValidateTransition checks the transition table and returns the
// assignment effect to apply with the status write.
func ValidateTransition(from, to ConversationStatus) (AssignmentEffect, error) {
	rule, ok := transitionTable[from]
	if !ok {
		return AssignmentEffect{}, NewDomainError(ErrCodeInvalidTransition,
			fmt.Sprintf("unknown conversation status %q", from))
	}
	if _, allowed := rule.Next[to]; !allowed {
		return AssignmentEffect{}, NewDomainError(ErrCodeInvalidTransition,
			fmt.Sprintf("cannot transition conversation from %q to %q", from, to))
	}
	return rule.Effect, nil
}

// IsValidConversationStatus checks if a ConversationStatus is valid
func IsValidConversationStatus(s ConversationStatus) bool {
	_, ok := transitionTable[s]
	return ok
}

// ValidateConversation validates a Conversation instance
func ValidateConversation(c *Conversation) error {
	if c == nil {
		return fmt.Errorf("conversation cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("conversation ID is required")
	}

	if c.OrgID == "" {
		return fmt.Errorf("conversation OrgID is required")
	}

	if !IsValidConversationStatus(c.Status) {
		return fmt.Errorf("conversation Status is invalid: %s", c.Status)
	}

	return nil
}

// IsValidSenderType checks if a SenderType is valid
func IsValidSenderType(s SenderType) bool {
	switch s {
	case SenderTypeCustomer, SenderTypeAgent, SenderTypeSystem:
		return true
	}
	return false
}
