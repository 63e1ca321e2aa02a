package sessions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/storage/repofake"
	"github.com/jrsteele09/go-auth-client/users"
)

func newStore(t *testing.T) (*sessions.Store, *repofake.FakeRepo) {
	t.Helper()
	repo := repofake.NewFakeRepo()
	s, err := sessions.New(repo)
	require.NoError(t, err)
	return s, repo
}

func clrkk() users.Identity {
	return users.Identity{UserID: 6, Username: "Clrkk"}
}

func TestStore_SetUserWritesEnvelope(t *testing.T) {
	s, repo := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetUser(ctx, clrkk()))
	require.True(t, s.IsAuthenticated())

	envelope, err := repo.Get(ctx, sessions.UserStoreKey)
	require.NoError(t, err)
	require.JSONEq(t, `{"state":{"currentUser":{"role":null,"user_id":6,"username":"Clrkk"}}}`, envelope)

	bare, err := repo.Get(ctx, sessions.CurrentUserKey)
	require.NoError(t, err)
	require.JSONEq(t, `{"role":null,"user_id":6,"username":"Clrkk"}`, bare)
}

func TestStore_SetUserRejectsInvalidIdentity(t *testing.T) {
	s, repo := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetUser(ctx, clrkk()))

	err := s.SetUser(ctx, users.Identity{UserID: 0, Username: "x"})
	require.ErrorIs(t, err, sessionerrors.ErrValidation)

	require.Equal(t, int64(6), s.Current().UserID)
	envelope, err := repo.Get(ctx, sessions.UserStoreKey)
	require.NoError(t, err)
	require.Contains(t, envelope, `"Clrkk"`)
}

func TestStore_SetUserStorageFailureKeepsPriorState(t *testing.T) {
	s, repo := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetUser(ctx, clrkk()))

	repo.FailApply = repofake.ErrInjected
	require.ErrorIs(t, s.SetUser(ctx, users.Identity{UserID: 9, Username: "other"}), repofake.ErrInjected)
	require.Equal(t, "Clrkk", s.Current().Username)
}

func TestStore_UpdateUser(t *testing.T) {
	s, repo := newStore(t)
	ctx := context.Background()

	t.Run("no-op without identity", func(t *testing.T) {
		require.NoError(t, s.UpdateUser(ctx, users.Patch{Role: utils.Ptr("admin")}))
		require.Nil(t, s.Current())
		require.Empty(t, repo.Keys())
	})

	require.NoError(t, s.SetUser(ctx, clrkk()))

	t.Run("merges role", func(t *testing.T) {
		require.NoError(t, s.UpdateUser(ctx, users.Patch{Role: utils.Ptr("admin")}))
		require.Equal(t, "admin", utils.Value(s.Current().Role))
		envelope, err := repo.Get(ctx, sessions.UserStoreKey)
		require.NoError(t, err)
		require.JSONEq(t, `{"state":{"currentUser":{"role":"admin","user_id":6,"username":"Clrkk"}}}`, envelope)
	})

	t.Run("rejects invalid merge", func(t *testing.T) {
		err := s.UpdateUser(ctx, users.Patch{Username: utils.Ptr("")})
		require.ErrorIs(t, err, sessionerrors.ErrValidation)
		require.Equal(t, "Clrkk", s.Current().Username)
	})
}

func TestStore_ClearUser(t *testing.T) {
	s, repo := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetUser(ctx, clrkk()))

	require.NoError(t, s.ClearUser(ctx))
	require.Nil(t, s.Current())
	require.False(t, s.IsAuthenticated())
	require.False(t, repo.Has(sessions.UserStoreKey))
	require.False(t, repo.Has(sessions.CurrentUserKey))
}

func TestStore_RehydrateRoundTrip(t *testing.T) {
	s, repo := newStore(t)
	ctx := context.Background()
	identity := users.Identity{UserID: 6, Username: "Clrkk", Role: utils.Ptr("buyer")}
	require.NoError(t, s.SetUser(ctx, identity))

	restarted, err := sessions.New(repo)
	require.NoError(t, err)
	require.Nil(t, restarted.Current())
	require.NoError(t, restarted.Rehydrate(ctx))
	require.Equal(t, identity, *restarted.Current())
	require.True(t, restarted.IsAuthenticated())
}

func TestStore_RehydrateMalformedDegradesToLoggedOut(t *testing.T) {
	cases := map[string]string{
		"not json":         `{oops`,
		"missing state":    `{"other":1}`,
		"string user id":   `{"state":{"currentUser":{"user_id":"6","username":"Clrkk"}}}`,
		"empty username":   `{"state":{"currentUser":{"user_id":6,"username":""}}}`,
		"bad role":         `{"state":{"currentUser":{"user_id":6,"username":"a","role":{}}}}`,
		"user not object":  `{"state":{"currentUser":5}}`,
		"state not object": `{"state":"x"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			s, repo := newStore(t)
			ctx := context.Background()
			require.NoError(t, s.SetUser(ctx, clrkk()))
			repo.Set(sessions.UserStoreKey, raw)

			require.NoError(t, s.Rehydrate(ctx))
			require.Nil(t, s.Current())
			require.False(t, s.IsAuthenticated())
		})
	}
}

func TestStore_RehydrateNullUser(t *testing.T) {
	s, repo := newStore(t)
	repo.Set(sessions.UserStoreKey, `{"state":{"currentUser":null}}`)
	require.NoError(t, s.Rehydrate(context.Background()))
	require.Nil(t, s.Current())
}

func TestStore_Verify(t *testing.T) {
	s, repo := newStore(t)
	ctx := context.Background()

	require.ErrorIs(t, s.Verify(ctx, clrkk()), sessionerrors.ErrPersistFailed)

	require.NoError(t, s.SetUser(ctx, clrkk()))
	require.NoError(t, s.Verify(ctx, clrkk()))
	require.ErrorIs(t, s.Verify(ctx, users.Identity{UserID: 7, Username: "x"}), sessionerrors.ErrPersistFailed)

	repo.Set(sessions.UserStoreKey, `garbage`)
	require.ErrorIs(t, s.Verify(ctx, clrkk()), sessionerrors.ErrPersistFailed)
}

func TestHasStoredSession(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeRepo()
	require.False(t, sessions.HasStoredSession(ctx, repo))

	repo.Set(sessions.UserStoreKey, `{"state":{"currentUser":{"role":null,"user_id":6,"username":"Clrkk"}}}`)
	require.True(t, sessions.HasStoredSession(ctx, repo))

	repo.Set(sessions.UserStoreKey, `{"state":{"currentUser":{"user_id":"6","username":"Clrkk"}}}`)
	require.False(t, sessions.HasStoredSession(ctx, repo))

	repo.Set(sessions.UserStoreKey, `{"state":{"currentUser":null}}`)
	require.False(t, sessions.HasStoredSession(ctx, repo))
}
