package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingChunkRepository defines the repository interface for
// chunked article embeddings
type EmbeddingChunkRepository interface {
	ReplaceChunks(ctx context.Context, articleID string, chunks []domain.ArticleChunk) error
}

// EmbeddingService regenerates the chunk embeddings for an article's
// content. Chunks are always replaced wholesale; there is no
// partial-update path.
type EmbeddingService struct {
	client    EmbeddingClient
	chunkRepo EmbeddingChunkRepository
	uuidGen   UUIDGenerator
	chunkCfg  ChunkConfig
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, chunkRepo EmbeddingChunkRepository, uuidGen UUIDGenerator) *EmbeddingService {
	return &EmbeddingService{
		client:    client,
		chunkRepo: chunkRepo,
		uuidGen:   uuidGen,
		chunkCfg:  DefaultChunkConfig(),
	}
}

// StoreEmbeddings chunks content deterministically, embeds every
// chunk, and replaces the article's chunk set in one operation.
func (s *EmbeddingService) StoreEmbeddings(ctx context.Context, articleID, content, orgID string) error {
	if articleID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "article ID is required")
	}
	if orgID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "organization ID is required")
	}
	if content == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "content is required")
	}

	chunks := chunkText(content, s.chunkCfg)
	entries := make([]domain.ArticleChunk, 0, len(chunks))
	createdAt := time.Now().UTC()

	for i, chunk := range chunks {
		embedding, err := s.client.GenerateEmbedding(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to generate chunk embedding: %w", err)
		}

		entries = append(entries, domain.ArticleChunk{
			ID:         s.uuidGen.NewString(),
			ArticleID:  articleID,
			OrgID:      orgID,
			ChunkIndex: i,
			Content:    chunk,
			Embedding:  embedding,
			CreatedAt:  createdAt,
		})
	}

	if err := s.chunkRepo.ReplaceChunks(ctx, articleID, entries); err != nil {
		return fmt.Errorf("failed to replace article chunks: %w", err)
	}

	return nil
}
