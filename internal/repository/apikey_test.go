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

func seedOrg(ctx context.Context, t *testing.T, repo *OrgRepository) *domain.Organization {
	t.Helper()
	org := &domain.Organization{
		ID:        uuid.NewString(),
		Name:      "org-" + uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, org))
	return org
}

func TestAPIKeyRepository_CreateAndGetByHash(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	org := seedOrg(ctx, t, NewOrgRepository(pool))
	repo := NewAPIKeyRepository(pool)

	key := &domain.APIKey{
		ID:        uuid.NewString(),
		OrgID:     org.ID,
		Name:      "ci key",
		KeyHash:   "hash-abc",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, key))

	retrieved, err := repo.GetByHash(ctx, "hash-abc")
	require.NoError(t, err)
	assert.Equal(t, key.ID, retrieved.ID)
	assert.Equal(t, org.ID, retrieved.OrgID)
	assert.Nil(t, retrieved.RevokedAt)
}

func TestAPIKeyRepository_GetByHash_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	repo := NewAPIKeyRepository(pool)

	_, err := repo.GetByHash(ctx, "no-such-hash")
	assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
}

func TestAPIKeyRepository_GetByOrgID(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	org := seedOrg(ctx, t, NewOrgRepository(pool))
	repo := NewAPIKeyRepository(pool)

	older := &domain.APIKey{
		ID: uuid.NewString(), OrgID: org.ID, Name: "older", KeyHash: "hash-1",
		CreatedAt: time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond),
	}
	newer := &domain.APIKey{
		ID: uuid.NewString(), OrgID: org.ID, Name: "newer", KeyHash: "hash-2",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	keys, err := repo.GetByOrgID(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "newer", keys[0].Name)
	assert.Equal(t, "older", keys[1].Name)
}

func TestAPIKeyRepository_Revoke(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	org := seedOrg(ctx, t, NewOrgRepository(pool))
	repo := NewAPIKeyRepository(pool)

	key := &domain.APIKey{
		ID: uuid.NewString(), OrgID: org.ID, Name: "to revoke", KeyHash: "hash-revoke",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, key))

	require.NoError(t, repo.Revoke(ctx, key.ID))

	retrieved, err := repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved.RevokedAt)
	assert.True(t, retrieved.IsRevoked())

	// revoking twice affects no rows
	err = repo.Revoke(ctx, key.ID)
	assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
}

func TestAPIKeyRepository_Revoke_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	repo := NewAPIKeyRepository(pool)

	err := repo.Revoke(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
}
