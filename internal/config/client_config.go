package config

import (
	"fmt"
	"net/url"
	"time"
)

// IdentityPolicy decides what happens when a refreshed access token names a
// different subject than the stored session identity.
type IdentityPolicy string

const (
	IdentityPolicyIgnore  IdentityPolicy = "ignore"
	IdentityPolicyWarn    IdentityPolicy = "warn"
	IdentityPolicyEnforce IdentityPolicy = "enforce"
)

type ClientConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetRefreshTimeout() time.Duration
	GetLoginPath() string
	GetIdentityPolicy() IdentityPolicy
}

type Client struct {
	BaseURL        string         `env:"SESSION_API_BASE_URL" envDefault:"http://localhost:8080"`
	RequestTimeout time.Duration  `env:"SESSION_REQUEST_TIMEOUT" envDefault:"15s"`
	RefreshTimeout time.Duration  `env:"SESSION_REFRESH_TIMEOUT" envDefault:"10s"`
	LoginPath      string         `env:"SESSION_LOGIN_PATH" envDefault:"/login"`
	IdentityPolicy IdentityPolicy `env:"SESSION_IDENTITY_POLICY" envDefault:"enforce"`
}

var _ ClientConfig = Client{}

func (c Client) GetBaseURL() string {
	return c.BaseURL
}

func (c Client) GetRequestTimeout() time.Duration {
	return c.RequestTimeout
}

func (c Client) GetRefreshTimeout() time.Duration {
	return c.RefreshTimeout
}

func (c Client) GetLoginPath() string {
	return c.LoginPath
}

func (c Client) GetIdentityPolicy() IdentityPolicy {
	return c.IdentityPolicy
}

func (c Client) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SESSION_API_BASE_URL %q is not an absolute url", c.BaseURL)
	}
	switch c.IdentityPolicy {
	case IdentityPolicyIgnore, IdentityPolicyWarn, IdentityPolicyEnforce:
	default:
		return fmt.Errorf("SESSION_IDENTITY_POLICY %q must be ignore, warn or enforce", c.IdentityPolicy)
	}
	return nil
}
