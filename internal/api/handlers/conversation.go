package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/deskpilot/internal/api"
	"github.com/cloo-solutions/deskpilot/internal/api/middleware"
	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/cloo-solutions/deskpilot/internal/service"
	"github.com/go-chi/chi/v5"
)

type DeflectionService interface {
	HandleCustomerMessage(ctx context.Context, conversationID, content string) (*service.CustomerTurnResult, error)
	TransitionStatus(ctx context.Context, conversationID string, to domain.ConversationStatus) (*domain.Conversation, error)
}

type ConversationStore interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
}

// ConversationHandler exposes conversation creation, customer turns,
// and explicit status transitions.
type ConversationHandler struct {
	deflection    DeflectionService
	conversations ConversationStore
	uuidGen       service.UUIDGenerator
}

func NewConversationHandler(deflection DeflectionService, conversations ConversationStore, uuidGen service.UUIDGenerator) *ConversationHandler {
	return &ConversationHandler{
		deflection:    deflection,
		conversations: conversations,
		uuidGen:       uuidGen,
	}
}

type CreateConversationRequest struct {
	CustomerID string `json:"customer_id"`
}

type ConversationResponse struct {
	ID         string  `json:"id"`
	OrgID      string  `json:"org_id"`
	Status     string  `json:"status"`
	AssignedTo *string `json:"assigned_to"`
	IsAssigned bool    `json:"is_assigned"`
	CustomerID string  `json:"customer_id"`
}

func conversationToResponse(c *domain.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:         c.ID,
		OrgID:      c.OrgID,
		Status:     string(c.Status),
		AssignedTo: c.AssignedTo,
		IsAssigned: c.IsAssigned,
		CustomerID: c.CustomerID,
	}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CustomerID == "" {
		api.Error(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	conv := domain.NewConversation(h.uuidGen.NewString(), orgID, req.CustomerID)
	if err := h.conversations.Create(r.Context(), conv); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, conversationToResponse(conv))
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conv, err := h.conversations.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if conv.OrgID != orgID {
		api.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	api.Success(w, http.StatusOK, conversationToResponse(conv))
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

type PostMessageResponse struct {
	Response  string `json:"response"`
	Status    string `json:"status"`
	Escalated bool   `json:"escalated,omitempty"`
}

// PostMessage records one customer turn and runs the deflection policy.
func (h *ConversationHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conversationID := chi.URLParam(r, "id")

	conv, err := h.conversations.GetByID(r.Context(), conversationID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if conv.OrgID != orgID {
		api.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	result, err := h.deflection.HandleCustomerMessage(r.Context(), conversationID, req.Content)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, PostMessageResponse{
		Response:  result.Response,
		Status:    string(result.Status),
		Escalated: result.Escalated,
	})
}

type TransitionRequest struct {
	Status string `json:"status"`
}

// Transition applies an explicit status change, e.g. an agent claiming
// a pending handoff or closing a conversation.
func (h *ConversationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conversationID := chi.URLParam(r, "id")

	conv, err := h.conversations.GetByID(r.Context(), conversationID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if conv.OrgID != orgID {
		api.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Status == "" {
		api.Error(w, http.StatusBadRequest, "status is required")
		return
	}

	updated, err := h.deflection.TransitionStatus(r.Context(), conversationID, domain.ConversationStatus(req.Status))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, conversationToResponse(updated))
}
