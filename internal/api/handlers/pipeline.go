package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/deskpilot/internal/api"
	"github.com/cloo-solutions/deskpilot/internal/api/middleware"
	"github.com/cloo-solutions/deskpilot/internal/service"
)

type SimilarityService interface {
	FindSimilarArticles(ctx context.Context, query, orgID string) ([]*service.RankedArticle, error)
}

type GenerationService interface {
	GenerateEnhancedArticle(ctx context.Context, in service.GenerateArticleInput) (string, error)
}

type EmbeddingService interface {
	StoreEmbeddings(ctx context.Context, articleID, content, orgID string) error
}

type ChatResponseService interface {
	GenerateChatResponse(ctx context.Context, question, articleContent string) (string, error)
}

// PipelineHandler exposes the content pipeline: similarity search,
// embedding storage, article generation, and chat responses.
type PipelineHandler struct {
	similarity SimilarityService
	generation GenerationService
	embedding  EmbeddingService
	chat       ChatResponseService
}

func NewPipelineHandler(similarity SimilarityService, generation GenerationService, embedding EmbeddingService, chat ChatResponseService) *PipelineHandler {
	return &PipelineHandler{
		similarity: similarity,
		generation: generation,
		embedding:  embedding,
		chat:       chat,
	}
}

type SearchSimilarRequest struct {
	Query          string `json:"query"`
	OrganizationID string `json:"organization_id"`
}

type SimilarArticleResponse struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Content          string  `json:"content"`
	Relevance        float64 `json:"relevance"`
	VectorSimilarity float64 `json:"vector_similarity"`
}

type SearchSimilarResponse struct {
	Articles []SimilarArticleResponse `json:"articles"`
}

func (h *PipelineHandler) SearchSimilar(w http.ResponseWriter, r *http.Request) {
	var req SearchSimilarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.OrganizationID == "" {
		api.Error(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	ranked, err := h.similarity.FindSimilarArticles(r.Context(), req.Query, req.OrganizationID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SearchSimilarResponse{Articles: make([]SimilarArticleResponse, 0, len(ranked))}
	for _, ra := range ranked {
		resp.Articles = append(resp.Articles, SimilarArticleResponse{
			ID:               ra.Article.ID,
			Title:            ra.Article.Title,
			Content:          ra.Article.Content,
			Relevance:        ra.Relevance,
			VectorSimilarity: ra.VectorSimilarity,
		})
	}
	api.Success(w, http.StatusOK, resp)
}

type GenerateResponseRequest struct {
	Question       string `json:"question"`
	ArticleContent string `json:"article_content"`
}

type GenerateResponseResponse struct {
	Response string `json:"response"`
}

func (h *PipelineHandler) GenerateResponse(w http.ResponseWriter, r *http.Request) {
	var req GenerateResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	response, err := h.chat.GenerateChatResponse(r.Context(), req.Question, req.ArticleContent)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, GenerateResponseResponse{Response: response})
}

type GenerateEnhancedArticleRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	OrganizationID string `json:"organization_id"`
	CollectionID   string `json:"collection_id,omitempty"`
}

type GenerateEnhancedArticleResponse struct {
	Content string `json:"content"`
}

func (h *PipelineHandler) GenerateEnhancedArticle(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req GenerateEnhancedArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.OrganizationID == "" {
		req.OrganizationID = orgID
	}
	if req.OrganizationID != orgID {
		api.Error(w, http.StatusForbidden, "organization mismatch")
		return
	}

	content, err := h.generation.GenerateEnhancedArticle(r.Context(), service.GenerateArticleInput{
		Title:        req.Title,
		Description:  req.Description,
		OrgID:        req.OrganizationID,
		CollectionID: req.CollectionID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, GenerateEnhancedArticleResponse{Content: content})
}

type StoreEmbeddingsRequest struct {
	ArticleID      string `json:"article_id"`
	Content        string `json:"content"`
	OrganizationID string `json:"organization_id"`
}

type StoreEmbeddingsResponse struct {
	Success bool `json:"success"`
}

func (h *PipelineHandler) StoreEmbeddings(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrgID(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req StoreEmbeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ArticleID == "" {
		api.Error(w, http.StatusBadRequest, "article_id is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.OrganizationID == "" {
		req.OrganizationID = orgID
	}
	if req.OrganizationID != orgID {
		api.Error(w, http.StatusForbidden, "organization mismatch")
		return
	}

	if err := h.embedding.StoreEmbeddings(r.Context(), req.ArticleID, req.Content, req.OrganizationID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, StoreEmbeddingsResponse{Success: true})
}
