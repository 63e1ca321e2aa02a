package token

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Issuer signs HS256 access tokens for the reference backend.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

type IssuerOption func(*Issuer)

func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = name
	}
}

func NewIssuer(secret []byte, ttl time.Duration, options ...IssuerOption) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("[NewIssuer] signing secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("[NewIssuer] access token ttl must be positive")
	}
	i := &Issuer{secret: secret, ttl: ttl}
	for _, opt := range options {
		opt(i)
	}
	return i, nil
}

// Issue returns a signed access token for userID.
func (i *Issuer) Issue(userID int64, role *string) (string, error) {
	now := NowTimeFunc()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"iat": now.Unix(),
		"exp": now.Add(i.ttl).Unix(),
		"jti": uuid.New().String(),
	}
	if i.issuer != "" {
		claims["iss"] = i.issuer
	}
	if role != nil {
		claims["role"] = *role
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.Issue] SignedString")
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the token's user id.
func (i *Issuer) Verify(raw string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(raw, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		return 0, errors.Wrap(err, "[Issuer.Verify] ParseWithClaims")
	}
	if !parsed.Valid {
		return 0, errors.New("[Issuer.Verify] invalid token")
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return 0, errors.Wrap(err, "[Issuer.Verify] GetSubject")
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "[Issuer.Verify] subject is not a user id")
	}
	return id, nil
}
