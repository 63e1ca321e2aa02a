package sealed_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/storage/repofake"
	"github.com/jrsteele09/go-auth-client/storage/sealed"
	"github.com/jrsteele09/go-auth-client/storage/storagetest"
)

var testKey = bytes.Repeat([]byte{7}, 32)

func TestSealedRepo(t *testing.T) {
	r, err := sealed.New(repofake.NewFakeRepo(), testKey)
	require.NoError(t, err)
	storagetest.Run(t, r)
}

func TestSealedRepo_ValuesAreNotPlaintext(t *testing.T) {
	inner := repofake.NewFakeRepo()
	r, err := sealed.New(inner, testKey)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Apply(ctx, storage.Put("access_token", "secret-access")))

	raw, err := inner.Get(ctx, "access_token")
	require.NoError(t, err)
	require.NotContains(t, raw, "secret-access")
}

func TestSealedRepo_SwappedValueFails(t *testing.T) {
	inner := repofake.NewFakeRepo()
	r, err := sealed.New(inner, testKey)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Apply(ctx, storage.Put("access_token", "a")))
	raw, err := inner.Get(ctx, "access_token")
	require.NoError(t, err)
	inner.Set("refresh_token", raw)

	_, err = r.Get(ctx, "refresh_token")
	require.ErrorIs(t, err, sealed.ErrTampered)
}

func TestSealedRepo_WrongKeyFails(t *testing.T) {
	inner := repofake.NewFakeRepo()
	r, err := sealed.New(inner, testKey)
	require.NoError(t, err)
	require.NoError(t, r.Apply(context.Background(), storage.Put("access_token", "a")))

	other, err := sealed.New(inner, bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	_, err = other.Get(context.Background(), "access_token")
	require.ErrorIs(t, err, sealed.ErrTampered)
}

func TestSealedRepo_KeyLength(t *testing.T) {
	_, err := sealed.New(repofake.NewFakeRepo(), []byte("short"))
	require.Error(t, err)
}
