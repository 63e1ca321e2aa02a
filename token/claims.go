package token

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ErrNotJWT is returned by Peek for opaque (non-JWT) tokens.
var ErrNotJWT = errors.New("token is not a JWT")

// Claims is the subset of access-token claims the client inspects.
type Claims struct {
	Subject   string
	ExpiresAt *time.Time
	ID        string
}

// UserID returns the subject as a numeric user id, when it is one.
func (c Claims) UserID() (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Subject), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Peek reads the claims of an access token without verifying its signature.
// The client holds no verification key; the server remains the authority.
func Peek(raw string) (*Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return nil, ErrNotJWT
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(ErrNotJWT, err.Error())
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("[token.Peek] error extracting claims")
	}

	claims := &Claims{}
	switch sub := mapClaims["sub"].(type) {
	case string:
		claims.Subject = sub
	case float64:
		claims.Subject = strconv.FormatFloat(sub, 'f', -1, 64)
	}
	if jti, ok := mapClaims["jti"].(string); ok {
		claims.ID = jti
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		claims.ExpiresAt = &t
	}
	return claims, nil
}
