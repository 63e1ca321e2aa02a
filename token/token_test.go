package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/token"
)

func TestIssuer_IssueAndPeek(t *testing.T) {
	issuer, err := token.NewIssuer([]byte("secret"), 5*time.Minute, token.WithIssuerName("mockapi"))
	require.NoError(t, err)

	raw, err := issuer.Issue(6, utils.Ptr("buyer"))
	require.NoError(t, err)

	claims, err := token.Peek(raw)
	require.NoError(t, err)
	require.Equal(t, "6", claims.Subject)
	require.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)

	id, ok := claims.UserID()
	require.True(t, ok)
	require.Equal(t, int64(6), id)

	verified, err := issuer.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, int64(6), verified)
}

func TestIssuer_UniqueTokens(t *testing.T) {
	issuer, err := token.NewIssuer([]byte("secret"), time.Minute)
	require.NoError(t, err)
	a, err := issuer.Issue(1, nil)
	require.NoError(t, err)
	b, err := issuer.Issue(1, nil)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestIssuer_VerifyRejects(t *testing.T) {
	issuer, err := token.NewIssuer([]byte("secret"), time.Minute)
	require.NoError(t, err)
	other, err := token.NewIssuer([]byte("other"), time.Minute)
	require.NoError(t, err)

	raw, err := other.Issue(1, nil)
	require.NoError(t, err)
	_, err = issuer.Verify(raw)
	require.Error(t, err)

	now := time.Now()
	token.NowTimeFunc = func() time.Time { return now.Add(-time.Hour) }
	defer func() { token.NowTimeFunc = time.Now }()
	expired, err := issuer.Issue(1, nil)
	require.NoError(t, err)
	token.NowTimeFunc = time.Now
	_, err = issuer.Verify(expired)
	require.Error(t, err)
}

func TestNewIssuer_Validation(t *testing.T) {
	_, err := token.NewIssuer(nil, time.Minute)
	require.Error(t, err)
	_, err = token.NewIssuer([]byte("s"), 0)
	require.Error(t, err)
}

func TestPeek_Opaque(t *testing.T) {
	_, err := token.Peek("opaque-access-token")
	require.ErrorIs(t, err, token.ErrNotJWT)

	_, err = token.Peek("a.b.c")
	require.ErrorIs(t, err, token.ErrNotJWT)
}

func TestClaims_UserID(t *testing.T) {
	_, ok := token.Claims{Subject: "abc"}.UserID()
	require.False(t, ok)
	_, ok = token.Claims{Subject: "0"}.UserID()
	require.False(t, ok)
	id, ok := token.Claims{Subject: "42"}.UserID()
	require.True(t, ok)
	require.Equal(t, int64(42), id)
}
