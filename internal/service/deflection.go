package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/cloo-solutions/deskpilot/internal/trace"
)

const (
	maxDeflectionFailures = 3

	// ThankYouFarewell is the canned reply for end-of-conversation
	// pleasantries. Returned verbatim, with no LLM call.
	ThankYouFarewell = "You're welcome! If anything else comes up, we're always here to help. Have a great day!"

	// EscalationMessage is returned once deflection has failed three
	// times in a row and the conversation is handed to a human.
	EscalationMessage = "I'm connecting you with a member of our support team who can help you further. They'll be with you shortly."

	clarifyMessage = "I couldn't find an answer for that just yet. Could you rephrase your question or add a little more detail?"
)

// thankYouPhrases are matched as substrings of the normalized question.
var thankYouPhrases = []string{
	"thank you", "thanks", "thx", "bye", "goodbye", "good bye", "that's all",
}

// ConversationRepositoryInterface is the conversation persistence the
// deflection service consumes, inside and outside transactions.
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Conversation, error)
	UpdateStatus(ctx context.Context, id string, status domain.ConversationStatus, assignedTo *string, isAssigned bool) error
	IncrementDeflectionFailures(ctx context.Context, id string) (int, error)
	ResetDeflectionFailures(ctx context.Context, id string) error
}

// MessageRepositoryInterface is the message persistence the deflection
// service consumes.
type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *domain.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error)
}

// SimilaritySearcher finds knowledge-base articles matching a query.
type SimilaritySearcher interface {
	FindSimilarArticles(ctx context.Context, query, orgID string) ([]*RankedArticle, error)
}

// DeflectionService drives AI conversation deflection: the status
// state machine, chat response generation, and the escalation policy.
type DeflectionService struct {
	tx            TxRunner
	conversations ConversationRepositoryInterface
	messages      MessageRepositoryInterface
	similarity    SimilaritySearcher
	llm           CompletionClient
	tracker       RunTracker
	uuidGen       UUIDGenerator
	aiAssigneeID  string
}

// NewDeflectionService creates a DeflectionService.
func NewDeflectionService(
	tx TxRunner,
	conversations ConversationRepositoryInterface,
	messages MessageRepositoryInterface,
	similarity SimilaritySearcher,
	llm CompletionClient,
	tracker RunTracker,
	uuidGen UUIDGenerator,
	aiAssigneeID string,
) *DeflectionService {
	return &DeflectionService{
		tx:            tx,
		conversations: conversations,
		messages:      messages,
		similarity:    similarity,
		llm:           llm,
		tracker:       tracker,
		uuidGen:       uuidGen,
		aiAssigneeID:  aiAssigneeID,
	}
}

// TransitionStatus validates the status change against the transition
// table and, in one transaction, writes the status with its assignment
// effect and appends the describing system message.
func (s *DeflectionService) TransitionStatus(ctx context.Context, conversationID string, to domain.ConversationStatus) (*domain.Conversation, error) {
	var updated *domain.Conversation

	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		conv, err := repos.Conversations().GetByIDForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}

		effect, err := domain.ValidateTransition(conv.Status, to)
		if err != nil {
			return err
		}

		assignedTo := conv.AssignedTo
		isAssigned := conv.IsAssigned
		if effect.Apply {
			isAssigned = effect.Assigned
			if effect.AssignToAI {
				assignedTo = &s.aiAssigneeID
			} else {
				assignedTo = nil
			}
		}

		if err := repos.Conversations().UpdateStatus(ctx, conversationID, to, assignedTo, isAssigned); err != nil {
			return err
		}

		systemMsg := &domain.Message{
			ID:             s.uuidGen.NewString(),
			ConversationID: conversationID,
			SenderType:     domain.SenderTypeSystem,
			Content:        fmt.Sprintf("Conversation status changed to %s", to),
			CreatedAt:      time.Now().UTC(),
		}
		if err := repos.Messages().Create(ctx, systemMsg); err != nil {
			return err
		}

		conv.Status = to
		conv.AssignedTo = assignedTo
		conv.IsAssigned = isAssigned
		updated = conv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GenerateChatResponse answers a customer question grounded on matched
// article content. Thank-you messages short-circuit to a canned
// farewell with zero LLM invocations.
func (s *DeflectionService) GenerateChatResponse(ctx context.Context, question, articleContent string) (string, error) {
	if question == "" {
		return "", domain.ErrEmptyQuery
	}

	run := s.tracker.StartRun(ctx, "generate-chat-response", "llm", map[string]any{
		"question": question,
	}, "")

	if isThankYouMessage(question) {
		run.End(ctx, map[string]any{
			"response":             ThankYouFarewell,
			"is_thank_you_message": true,
		}, nil)
		return ThankYouFarewell, nil
	}

	prompt := buildChatPrompt(question, articleContent)
	response, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		run.End(ctx, nil, err)
		return "", fmt.Errorf("failed to generate chat response: %w", err)
	}

	// the conversation continues, so the run stays open
	s.tracker.UpdateRunSafely(ctx, run.ID(), map[string]any{
		"status":  trace.StatusInProgress,
		"outputs": map[string]any{"response": response},
	})
	return response, nil
}

func isThankYouMessage(question string) bool {
	normalized := strings.ToLower(strings.TrimSpace(question))
	for _, phrase := range thankYouPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

func buildChatPrompt(question, articleContent string) string {
	return fmt.Sprintf(
		"You are our customer support assistant. Answer in our brand voice: warm, direct, first person plural.\n"+
			"Answer in at most 3 sentences, using only the article below. "+
			"If the article does not cover the question, say so briefly.\n\n"+
			"Article:\n%s\n\nCustomer question: %s",
		articleContent, question,
	)
}

// CustomerTurnResult is the outcome of one customer message.
type CustomerTurnResult struct {
	Response  string
	Status    domain.ConversationStatus
	Escalated bool
}

// HandleCustomerMessage records a customer turn and applies the
// deflection policy: similarity search first, a per-conversation
// failure counter on zero matches, and escalation to a human at three
// consecutive failures.
func (s *DeflectionService) HandleCustomerMessage(ctx context.Context, conversationID, content string) (*CustomerTurnResult, error) {
	if content == "" {
		return nil, domain.ErrEmptyQuery
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if err := s.recordMessage(ctx, conversationID, domain.SenderTypeCustomer, content); err != nil {
		return nil, err
	}

	switch conv.Status {
	case domain.ConversationStatusNew:
		conv, err = s.TransitionStatus(ctx, conversationID, domain.ConversationStatusAIChat)
		if err != nil {
			return nil, err
		}
	case domain.ConversationStatusAIChat:
		// already deflecting
	default:
		// human-handled or terminal, the AI stays out
		return &CustomerTurnResult{Status: conv.Status}, nil
	}

	matches, err := s.similarity.FindSimilarArticles(ctx, content, conv.OrgID)
	if err != nil {
		log.Printf("deflection: similarity search failed for conversation %s: %v", conversationID, err)
		matches = nil
	}

	if len(matches) == 0 {
		return s.handleDeflectionFailure(ctx, conv)
	}

	if err := s.conversations.ResetDeflectionFailures(ctx, conversationID); err != nil {
		return nil, err
	}

	response, err := s.GenerateChatResponse(ctx, content, matches[0].Article.Content)
	if err != nil {
		return nil, err
	}
	if err := s.recordMessage(ctx, conversationID, domain.SenderTypeAgent, response); err != nil {
		return nil, err
	}

	return &CustomerTurnResult{Response: response, Status: conv.Status}, nil
}

func (s *DeflectionService) handleDeflectionFailure(ctx context.Context, conv *domain.Conversation) (*CustomerTurnResult, error) {
	failures, err := s.conversations.IncrementDeflectionFailures(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	if failures < maxDeflectionFailures {
		if err := s.recordMessage(ctx, conv.ID, domain.SenderTypeAgent, clarifyMessage); err != nil {
			return nil, err
		}
		return &CustomerTurnResult{Response: clarifyMessage, Status: conv.Status}, nil
	}

	if err := s.recordMessage(ctx, conv.ID, domain.SenderTypeAgent, EscalationMessage); err != nil {
		return nil, err
	}
	updated, err := s.TransitionStatus(ctx, conv.ID, domain.ConversationStatusPendingHandoff)
	if err != nil {
		return nil, err
	}

	return &CustomerTurnResult{
		Response:  EscalationMessage,
		Status:    updated.Status,
		Escalated: true,
	}, nil
}

func (s *DeflectionService) recordMessage(ctx context.Context, conversationID string, sender domain.SenderType, content string) error {
	return s.messages.Create(ctx, &domain.Message{
		ID:             s.uuidGen.NewString(),
		ConversationID: conversationID,
		SenderType:     sender,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	})
}
