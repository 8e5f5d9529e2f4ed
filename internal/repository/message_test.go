//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/domain"
	"github.com/cloo-solutions/deskpilot/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	org := seedOrg(ctx, t, NewOrgRepository(pool))
	conv := seedConversation(ctx, t, NewConversationRepository(pool), org.ID)
	repo := NewMessageRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	first := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderType:     domain.SenderTypeCustomer,
		Content:        "how do I return an item",
		CreatedAt:      base,
	}
	second := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderType:     domain.SenderTypeAgent,
		Content:        "We accept returns within 30 days.",
		CreatedAt:      base.Add(time.Second),
	}
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))

	messages, err := repo.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first.Content, messages[0].Content)
	assert.Equal(t, domain.SenderTypeCustomer, messages[0].SenderType)
	assert.Equal(t, second.Content, messages[1].Content)
}

func TestMessageRepository_ListByConversation_Empty(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	repo := NewMessageRepository(pool)

	messages, err := repo.ListByConversation(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, messages)
}
