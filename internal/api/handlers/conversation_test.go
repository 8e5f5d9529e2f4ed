package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/cloo-solutions/deskpilot/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDeflectionService struct {
	mock.Mock
}

func (m *MockDeflectionService) HandleCustomerMessage(ctx context.Context, conversationID, content string) (*service.CustomerTurnResult, error) {
	args := m.Called(ctx, conversationID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CustomerTurnResult), args.Error(1)
}

func (m *MockDeflectionService) TransitionStatus(ctx context.Context, conversationID string, to domain.ConversationStatus) (*domain.Conversation, error) {
	args := m.Called(ctx, conversationID, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

type MockConversationStore struct {
	mock.Mock
}

func (m *MockConversationStore) Create(ctx context.Context, c *domain.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationStore) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

type MockHandlerUUIDGenerator struct {
	mock.Mock
}

func (m *MockHandlerUUIDGenerator) NewString() string {
	args := m.Called()
	return args.String(0)
}

func newConversationFixture() (*ConversationHandler, *MockDeflectionService, *MockConversationStore, *MockHandlerUUIDGenerator) {
	deflection := new(MockDeflectionService)
	store := new(MockConversationStore)
	uuidGen := new(MockHandlerUUIDGenerator)
	return NewConversationHandler(deflection, store, uuidGen), deflection, store, uuidGen
}

func withConversationID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func storedConversation(status domain.ConversationStatus) *domain.Conversation {
	conv := domain.NewConversation("conv-1", "org-456", "cust-1")
	conv.Status = status
	return conv
}

func TestConversationHandler_Create_Success(t *testing.T) {
	handler, _, store, uuidGen := newConversationFixture()

	uuidGen.On("NewString").Return("conv-1")
	store.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Conversation) bool {
		return c.ID == "conv-1" && c.OrgID == "org-456" && c.CustomerID == "cust-1" && c.Status == domain.ConversationStatusNew
	})).Return(nil)

	body := `{"customer_id":"cust-1"}`
	req := requestWithOrgID(http.MethodPost, "/conversations", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "conv-1", data["id"])
	assert.Equal(t, "org-456", data["org_id"])
	assert.Equal(t, "new", data["status"])
	assert.Equal(t, false, data["is_assigned"])
	store.AssertExpectations(t)
}

func TestConversationHandler_Create_MissingCustomerID(t *testing.T) {
	handler, _, store, _ := newConversationFixture()

	req := requestWithOrgID(http.MethodPost, "/conversations", []byte(`{}`))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "Create")
}

func TestConversationHandler_Create_Unauthorized(t *testing.T) {
	handler, _, store, _ := newConversationFixture()

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewReader([]byte(`{"customer_id":"cust-1"}`)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	store.AssertNotCalled(t, "Create")
}

func TestConversationHandler_Get_Success(t *testing.T) {
	handler, _, store, _ := newConversationFixture()

	store.On("GetByID", mock.Anything, "conv-1").Return(storedConversation(domain.ConversationStatusAIChat), nil)

	req := withConversationID(requestWithOrgID(http.MethodGet, "/conversations/conv-1", nil), "conv-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "conv-1", data["id"])
	assert.Equal(t, "ai_chat", data["status"])
}

func TestConversationHandler_Get_OrgMismatchReturnsNotFound(t *testing.T) {
	handler, _, store, _ := newConversationFixture()

	other := storedConversation(domain.ConversationStatusNew)
	other.OrgID = "other-org"
	store.On("GetByID", mock.Anything, "conv-1").Return(other, nil)

	req := withConversationID(requestWithOrgID(http.MethodGet, "/conversations/conv-1", nil), "conv-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationHandler_Get_NotFound(t *testing.T) {
	handler, _, store, _ := newConversationFixture()

	store.On("GetByID", mock.Anything, "missing").
		Return(nil, domain.NewDomainError(domain.ErrCodeNotFound, "conversation not found"))

	req := withConversationID(requestWithOrgID(http.MethodGet, "/conversations/missing", nil), "missing")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationHandler_PostMessage_Success(t *testing.T) {
	handler, deflection, store, _ := newConversationFixture()

	store.On("GetByID", mock.Anything, "conv-1").Return(storedConversation(domain.ConversationStatusAIChat), nil)
	deflection.On("HandleCustomerMessage", mock.Anything, "conv-1", "how do I return an item").
		Return(&service.CustomerTurnResult{
			Response: "We accept returns within 30 days.",
			Status:   domain.ConversationStatusAIChat,
		}, nil)

	req := withConversationID(requestWithOrgID(http.MethodPost, "/conversations/conv-1/messages", []byte(`{"content":"how do I return an item"}`)), "conv-1")
	w := httptest.NewRecorder()

	handler.PostMessage(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "We accept returns within 30 days.", data["response"])
	assert.Equal(t, "ai_chat", data["status"])
	_, hasEscalated := data["escalated"]
	assert.False(t, hasEscalated)
	deflection.AssertExpectations(t)
}

func TestConversationHandler_PostMessage_EscalatedFlag(t *testing.T) {
	handler, deflection, store, _ := newConversationFixture()

	store.On("GetByID", mock.Anything, "conv-1").Return(storedConversation(domain.ConversationStatusAIChat), nil)
	deflection.On("HandleCustomerMessage", mock.Anything, "conv-1", mock.Anything).
		Return(&service.CustomerTurnResult{
			Response:  service.EscalationMessage,
			Status:    domain.ConversationStatusPendingHandoff,
			Escalated: true,
		}, nil)

	req := withConversationID(requestWithOrgID(http.MethodPost, "/conversations/conv-1/messages", []byte(`{"content":"this still does not work"}`)), "conv-1")
	w := httptest.NewRecorder()

	handler.PostMessage(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "pending_handoff", data["status"])
	assert.Equal(t, true, data["escalated"])
}

func TestConversationHandler_PostMessage_MissingContent(t *testing.T) {
	handler, deflection, store, _ := newConversationFixture()

	store.On("GetByID", mock.Anything, "conv-1").Return(storedConversation(domain.ConversationStatusAIChat), nil)

	req := withConversationID(requestWithOrgID(http.MethodPost, "/conversations/conv-1/messages", []byte(`{}`)), "conv-1")
	w := httptest.NewRecorder()

	handler.PostMessage(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	deflection.AssertNotCalled(t, "HandleCustomerMessage")
}

func TestConversationHandler_PostMessage_OrgMismatch(t *testing.T) {
	handler, deflection, store, _ := newConversationFixture()

	other := storedConversation(domain.ConversationStatusAIChat)
	other.OrgID = "other-org"
	store.On("GetByID", mock.Anything, "conv-1").Return(other, nil)

	req := withConversationID(requestWithOrgID(http.MethodPost, "/conversations/conv-1/messages", []byte(`{"content":"hello"}`)), "conv-1")
	w := httptest.NewRecorder()

	handler.PostMessage(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	deflection.AssertNotCalled(t, "HandleCustomerMessage")
}

func TestConversationHandler_Transition_Success(t *testing.T) {
	handler, deflection, store, _ := newConversationFixture()

	store.On("GetByID", mock.Anything, "conv-1").Return(storedConversation(domain.ConversationStatusPendingHandoff), nil)
	updated := storedConversation(domain.ConversationStatusActive)
	deflection.On("TransitionStatus", mock.Anything, "conv-1", domain.ConversationStatusActive).
		Return(updated, nil)

	req := withConversationID(requestWithOrgID(http.MethodPost, "/conversations/conv-1/transition", []byte(`{"status":"active"}`)), "conv-1")
	w := httptest.NewRecorder()

	handler.Transition(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "active", data["status"])
	deflection.AssertExpectations(t)
}

func TestConversationHandler_Transition_InvalidTransitionMapsTo409(t *testing.T) {
	handler, deflection, store, _ := newConversationFixture()

	store.On("GetByID", mock.Anything, "conv-1").Return(storedConversation(domain.ConversationStatusClosed), nil)
	deflection.On("TransitionStatus", mock.Anything, "conv-1", domain.ConversationStatusActive).
		Return(nil, domain.NewDomainError(domain.ErrCodeInvalidTransition, "cannot transition from closed to active"))

	req := withConversationID(requestWithOrgID(http.MethodPost, "/conversations/conv-1/transition", []byte(`{"status":"active"}`)), "conv-1")
	w := httptest.NewRecorder()

	handler.Transition(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConversationHandler_Transition_MissingStatus(t *testing.T) {
	handler, deflection, store, _ := newConversationFixture()

	store.On("GetByID", mock.Anything, "conv-1").Return(storedConversation(domain.ConversationStatusAIChat), nil)

	req := withConversationID(requestWithOrgID(http.MethodPost, "/conversations/conv-1/transition", []byte(`{}`)), "conv-1")
	w := httptest.NewRecorder()

	handler.Transition(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	deflection.AssertNotCalled(t, "TransitionStatus")
}
