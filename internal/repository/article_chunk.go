package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/cloo-solutions/deskpilot/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ArticleChunkRepository handles persistence of embedded article chunks.
type ArticleChunkRepository struct {
	db dbtx
}

func NewArticleChunkRepository(pool *pgxpool.Pool) *ArticleChunkRepository {
	return &ArticleChunkRepository{db: pool}
}

func NewArticleChunkRepositoryWithTx(tx pgx.Tx) *ArticleChunkRepository {
	return &ArticleChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for an article and inserts new
// ones. Chunk sets are always replaced together; old and new indices
// never interleave.
func (r *ArticleChunkRepository) ReplaceChunks(ctx context.Context, articleID string, chunks []domain.ArticleChunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM article_chunks WHERE article_id = $1`, articleID)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO article_chunks
				(id, article_id, org_id, chunk_index, content, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7)`,
			c.ID,
			c.ArticleID,
			c.OrgID,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// MatchArticles returns the articles whose best chunk cosine
// similarity against the query embedding meets the threshold, scoped
// to orgID, ordered by similarity descending.
func (r *ArticleChunkRepository) MatchArticles(ctx context.Context, embedding []float32, threshold float64, limit int, orgID string) ([]service.ArticleMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT article_id, MAX(1 - (embedding <=> $1)) AS similarity
		 FROM article_chunks
		 WHERE org_id = $2
		 GROUP BY article_id
		 HAVING MAX(1 - (embedding <=> $1)) >= $3
		 ORDER BY similarity DESC
		 LIMIT $4`,
		vec, orgID, threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]service.ArticleMatch, 0, limit)
	for rows.Next() {
		var m service.ArticleMatch
		if err := rows.Scan(&m.ArticleID, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
