package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

const conversationColumns = `id, org_id, status, assigned_to, is_assigned, customer_id,
	satisfaction_score, deflection_failures, closed_at, created_at, updated_at`

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations
			(id, org_id, status, assigned_to, is_assigned, customer_id,
			 satisfaction_score, deflection_failures, closed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.OrgID, c.Status, c.AssignedTo, c.IsAssigned, c.CustomerID,
		c.SatisfactionScore, c.DeflectionFailures, c.ClosedAt, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	return scanConversation(row)
}

// GetByIDForUpdate locks the conversation row for the duration of the
// surrounding transaction, serializing concurrent transitions.
func (r *ConversationRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Conversation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1 FOR UPDATE`, id)
	return scanConversation(row)
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.OrgID, &c.Status, &c.AssignedTo, &c.IsAssigned, &c.CustomerID,
		&c.SatisfactionScore, &c.DeflectionFailures, &c.ClosedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UpdateStatus writes a new status together with its assignment fields
// in one statement. Callers are responsible for having validated the
// transition.
func (r *ConversationRepository) UpdateStatus(ctx context.Context, id string, status domain.ConversationStatus, assignedTo *string, isAssigned bool) error {
	var closedAt *time.Time
	if status == domain.ConversationStatusClosed {
		now := time.Now().UTC()
		closedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE conversations
		 SET status = $1, assigned_to = $2, is_assigned = $3,
		     closed_at = COALESCE($4, closed_at), updated_at = NOW()
		 WHERE id = $5`,
		status, assignedTo, isAssigned, closedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// IncrementDeflectionFailures bumps the consecutive zero-result
// counter and returns the new value.
func (r *ConversationRepository) IncrementDeflectionFailures(ctx context.Context, id string) (int, error) {
	var failures int
	err := r.db.QueryRow(ctx,
		`UPDATE conversations
		 SET deflection_failures = deflection_failures + 1, updated_at = NOW()
		 WHERE id = $1
		 RETURNING deflection_failures`,
		id,
	).Scan(&failures)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrConversationNotFound
		}
		return 0, err
	}
	return failures, nil
}

// ResetDeflectionFailures clears the counter after a successful match.
func (r *ConversationRepository) ResetDeflectionFailures(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE conversations
		 SET deflection_failures = 0, updated_at = NOW()
		 WHERE id = $1 AND deflection_failures <> 0`,
		id,
	)
	return err
}
