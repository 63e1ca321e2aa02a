package config

import (
	"strings"
	"time"
)

// MockConfig configures the reference backend served by cmd/mockapi.
type MockConfig interface {
	GetJWTSecret() []byte
	GetAccessTokenTTL() time.Duration
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type Mock struct {
	JWTSecret      string        `env:"MOCK_JWT_SECRET" envDefault:"dev-secret-change-me"`
	AccessTokenTTL time.Duration `env:"MOCK_ACCESS_TOKEN_TTL" envDefault:"5m"`
	Origins        []string      `env:"MOCK_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
}

var _ MockConfig = Mock{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

func (m Mock) GetJWTSecret() []byte {
	return []byte(m.JWTSecret)
}

func (m Mock) GetAccessTokenTTL() time.Duration {
	return m.AccessTokenTTL
}

func (m Mock) GetAllowedOrigins() AllowedOrigins {
	origins := make(AllowedOrigins, len(m.Origins))
	for _, o := range m.Origins {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = nullValue{}
		}
	}
	return origins
}

func (Mock) GetAllowedMethods() string {
	return "GET, POST, PUT, DELETE, OPTIONS"
}

func (Mock) GetAllowedHeaders() string {
	return "Content-Type, Authorization, X-CSRF-Token, X-Request-ID"
}
