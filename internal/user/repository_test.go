package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskauth/internal/database/dbtest"
	"github.com/redmonkez12/taskauth/internal/user"
)

func TestRepository_CreateAndGet(t *testing.T) {
	db := dbtest.New(t)
	repo := user.NewRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, "  Alice@Example.com ", "hash")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, time.UTC, created.CreatedAt.Location())
	assert.WithinDuration(t, time.Now(), created.CreatedAt, 5*time.Second)

	byEmail, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)
	assert.True(t, created.CreatedAt.Equal(byID.CreatedAt))
}

func TestRepository_DuplicateEmail(t *testing.T) {
	db := dbtest.New(t)
	repo := user.NewRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, "a@b.com", "hash")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "A@B.COM", "other")
	require.ErrorIs(t, err, user.ErrDuplicateEmail)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepository_NotFound(t *testing.T) {
	repo := user.NewRepository(dbtest.New(t))
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, user.ErrNotFound)

	_, err = repo.GetByID(ctx, 42)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestRepository_VisibleWithinTransaction(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		repo := user.NewRepository(tx)
		created, err := repo.Create(ctx, "tx@example.com", "hash")
		require.NoError(t, err)

		found, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Email, found.Email)
		return nil
	})
	require.NoError(t, err)
}
