// Package storagetest holds the behaviour every storage.Repo must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/storage"
)

// Run exercises repo against the storage.Repo contract. The repo must start empty.
func Run(t *testing.T, repo storage.Repo) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get(context.Background(), "missing")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("PutAndGet", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, repo.Apply(ctx, storage.Put("access_token", "a1")))
		v, err := repo.Get(ctx, "access_token")
		require.NoError(t, err)
		require.Equal(t, "a1", v)
	})

	t.Run("Overwrite", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, repo.Apply(ctx, storage.Put("access_token", "a2")))
		v, err := repo.Get(ctx, "access_token")
		require.NoError(t, err)
		require.Equal(t, "a2", v)
	})

	t.Run("BatchPutAndDelete", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, repo.Apply(ctx,
			storage.Put("refresh_token", "r1"),
			storage.Put("remember_me", "true"),
			storage.Delete("access_token"),
		))
		_, err := repo.Get(ctx, "access_token")
		require.ErrorIs(t, err, storage.ErrNotFound)

		v, err := repo.Get(ctx, "refresh_token")
		require.NoError(t, err)
		require.Equal(t, "r1", v)

		v, err = repo.Get(ctx, "remember_me")
		require.NoError(t, err)
		require.Equal(t, "true", v)
	})

	t.Run("DeleteMissingIsNoop", func(t *testing.T) {
		require.NoError(t, repo.Apply(context.Background(), storage.Delete("never-set")))
	})

	t.Run("JSONValues", func(t *testing.T) {
		ctx := context.Background()
		envelope := `{"state":{"currentUser":{"role":null,"user_id":6,"username":"Clrkk"}}}`
		require.NoError(t, repo.Apply(ctx, storage.Put("userStore", envelope)))
		v, err := repo.Get(ctx, "userStore")
		require.NoError(t, err)
		require.JSONEq(t, envelope, v)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		require.NoError(t, repo.Apply(context.Background()))
	})
}
