package userrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/health-insight/internal/domain/auth"
)

func TestMemoryRepository_Users(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, auth.User{Username: "runner", DisplayName: "Runner"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	_, err = repo.Create(ctx, auth.User{Username: "runner"})
	require.ErrorIs(t, err, auth.ErrUsernameExists)

	found, ok, err := repo.GetByUsername(ctx, "runner")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, created, found)

	_, ok, err = repo.GetByID(ctx, 99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryRepository_Identities(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.UpsertIdentity(ctx, auth.Identity{Provider: "google", ProviderSubject: "sub"})
	require.Error(t, err)

	first, err := repo.UpsertIdentity(ctx, auth.Identity{UserID: 1, Provider: "google", ProviderSubject: "sub", RefreshToken: "enc-1"})
	require.NoError(t, err)

	updated, err := repo.UpsertIdentity(ctx, auth.Identity{UserID: 1, Provider: "google", ProviderSubject: "sub", ProviderEmail: "a@b.c"})
	require.NoError(t, err)
	require.Equal(t, first.ID, updated.ID)
	require.Equal(t, "enc-1", updated.RefreshToken)
	require.Equal(t, "a@b.c", updated.ProviderEmail)

	byUser, ok, err := repo.GetIdentityByUser(ctx, 1, "google")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, updated, byUser)

	_, ok, err = repo.GetIdentity(ctx, "google", "other")
	require.NoError(t, err)
	require.False(t, ok)
}
