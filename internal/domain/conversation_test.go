package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition_AllowedMoves(t *testing.T) {
	tests := []struct {
		name string
		from ConversationStatus
		to   ConversationStatus
	}{
		{"new to ai_chat", ConversationStatusNew, ConversationStatusAIChat},
		{"ai_chat to pending_handoff", ConversationStatusAIChat, ConversationStatusPendingHandoff},
		{"ai_chat to closed", ConversationStatusAIChat, ConversationStatusClosed},
		{"pending_handoff to active", ConversationStatusPendingHandoff, ConversationStatusActive},
		{"active to closed", ConversationStatusActive, ConversationStatusClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateTransition(tt.from, tt.to)
			assert.NoError(t, err)
		})
	}
}

func TestValidateTransition_RejectedMoves(t *testing.T) {
	tests := []struct {
		name string
		from ConversationStatus
		to   ConversationStatus
	}{
		{"new to closed", ConversationStatusNew, ConversationStatusClosed},
		{"new to active", ConversationStatusNew, ConversationStatusActive},
		{"new to pending_handoff", ConversationStatusNew, ConversationStatusPendingHandoff},
		{"ai_chat to active", ConversationStatusAIChat, ConversationStatusActive},
		{"ai_chat back to new", ConversationStatusAIChat, ConversationStatusNew},
		{"pending_handoff to closed", ConversationStatusPendingHandoff, ConversationStatusClosed},
		{"active to ai_chat", ConversationStatusActive, ConversationStatusAIChat},
		{"closed to active", ConversationStatusClosed, ConversationStatusActive},
		{"closed to new", ConversationStatusClosed, ConversationStatusNew},
		{"unknown status", ConversationStatus("archived"), ConversationStatusClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateTransition(tt.from, tt.to)
			require.Error(t, err)
			var de *DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, ErrCodeInvalidTransition, de.Code)
		})
	}
}

func TestValidateTransition_AssignmentEffects(t *testing.T) {
	effect, err := ValidateTransition(ConversationStatusNew, ConversationStatusAIChat)
	require.NoError(t, err)
	assert.True(t, effect.Apply)
	assert.True(t, effect.Assigned)
	assert.True(t, effect.AssignToAI)

	effect, err = ValidateTransition(ConversationStatusPendingHandoff, ConversationStatusActive)
	require.NoError(t, err)
	assert.True(t, effect.Apply)
	assert.False(t, effect.Assigned)
	assert.False(t, effect.AssignToAI)

	effect, err = ValidateTransition(ConversationStatusActive, ConversationStatusClosed)
	require.NoError(t, err)
	assert.False(t, effect.Apply)
}

func TestNewConversation(t *testing.T) {
	conv := NewConversation("conv-1", "org-123", "cust-1")

	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, "org-123", conv.OrgID)
	assert.Equal(t, "cust-1", conv.CustomerID)
	assert.Equal(t, ConversationStatusNew, conv.Status)
	assert.Nil(t, conv.AssignedTo)
	assert.False(t, conv.IsAssigned)
	assert.Zero(t, conv.DeflectionFailures)
	assert.False(t, conv.CreatedAt.IsZero())
}

func TestIsValidConversationStatus(t *testing.T) {
	assert.True(t, IsValidConversationStatus(ConversationStatusNew))
	assert.True(t, IsValidConversationStatus(ConversationStatusAIChat))
	assert.True(t, IsValidConversationStatus(ConversationStatusPendingHandoff))
	assert.True(t, IsValidConversationStatus(ConversationStatusActive))
	assert.True(t, IsValidConversationStatus(ConversationStatusClosed))
	assert.False(t, IsValidConversationStatus(ConversationStatus("archived")))
	assert.False(t, IsValidConversationStatus(ConversationStatus("")))
}

func TestValidateConversation(t *testing.T) {
	valid := NewConversation("conv-1", "org-123", "cust-1")
	assert.NoError(t, ValidateConversation(valid))

	assert.Error(t, ValidateConversation(nil))
	assert.Error(t, ValidateConversation(&Conversation{OrgID: "org-123", Status: ConversationStatusNew}))
	assert.Error(t, ValidateConversation(&Conversation{ID: "conv-1", Status: ConversationStatusNew}))
	assert.Error(t, ValidateConversation(&Conversation{ID: "conv-1", OrgID: "org-123", Status: "bogus"}))
}

func TestIsValidSenderType(t *testing.T) {
	assert.True(t, IsValidSenderType(SenderTypeCustomer))
	assert.True(t, IsValidSenderType(SenderTypeAgent))
	assert.True(t, IsValidSenderType(SenderTypeSystem))
	assert.False(t, IsValidSenderType(SenderType("bot")))
}
