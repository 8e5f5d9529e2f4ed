package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ArticleRepository struct {
	db dbtx
}

func NewArticleRepository(pool *pgxpool.Pool) *ArticleRepository {
	return &ArticleRepository{db: pool}
}

func NewArticleRepositoryWithTx(tx pgx.Tx) *ArticleRepository {
	return &ArticleRepository{db: tx}
}

func (r *ArticleRepository) Create(ctx context.Context, a *domain.Article) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO articles (id, org_id, title, description, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.OrgID, a.Title, a.Description, a.Content, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *ArticleRepository) GetByID(ctx context.Context, id, orgID string) (*domain.Article, error) {
	var a domain.Article
	err := r.db.QueryRow(ctx,
		`SELECT id, org_id, title, description, content, created_at, updated_at
		 FROM articles WHERE id = $1 AND org_id = $2`,
		id, orgID,
	).Scan(&a.ID, &a.OrgID, &a.Title, &a.Description, &a.Content, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrArticleNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetByIDs fetches article rows for the given ids, scoped to orgID.
// Missing ids are silently omitted.
func (r *ArticleRepository) GetByIDs(ctx context.Context, ids []string, orgID string) ([]*domain.Article, error) {
	if len(ids) == 0 {
		return []*domain.Article{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, org_id, title, description, content, created_at, updated_at
		 FROM articles WHERE id = ANY($1) AND org_id = $2`,
		ids, orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []*domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Title, &a.Description, &a.Content, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		articles = append(articles, &a)
	}
	return articles, rows.Err()
}

func (r *ArticleRepository) UpdateContent(ctx context.Context, id, orgID, content string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE articles SET content = $1, updated_at = NOW() WHERE id = $2 AND org_id = $3`,
		content, id, orgID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrArticleNotFound
	}
	return nil
}
