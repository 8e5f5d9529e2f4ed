package domain

import (
	"fmt"
	"time"
)

// Article represents a help-center article owned by an organization.
// Content is the source of truth for embeddings: whenever it changes,
// the article's chunk set is regenerated wholesale.
type Article struct {
	ID          string
	OrgID       string
	Title       string
	Description string
	Content     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ArticleChunk represents one embedded segment of an article's content.
// Chunk sets for an article are always replaced together; chunk indices
// from different generations never interleave.
type ArticleChunk struct {
	ID         string
	ArticleID  string
	OrgID      string
	ChunkIndex int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// ValidateArticle validates an Article instance
func ValidateArticle(a *Article) error {
	if a == nil {
		return fmt.Errorf("article cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("article ID is required")
	}

	if a.OrgID == "" {
		return fmt.Errorf("article OrgID is required")
	}

	if a.Title == "" {
		return fmt.Errorf("article Title is required")
	}

	return nil
}
