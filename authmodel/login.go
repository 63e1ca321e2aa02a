// Package authmodel holds the wire payloads exchanged with the session backend.
package authmodel

import (
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// LoginRequest is the body posted to the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse keeps the raw login payload. The backend may nest the user
// under "user" or flatten it into the top level, so the payload is not bound to
// a fixed struct.
type LoginResponse map[string]any

// AccessToken returns the accessToken field, or "" when absent.
func (r LoginResponse) AccessToken() string {
	return stringField(r, "accessToken")
}

// RefreshToken returns the refreshToken field, or "" when absent.
func (r LoginResponse) RefreshToken() string {
	return stringField(r, "refreshToken")
}

// DecodeLoginResponse reads a login body, keeping numbers as json.Number so
// user ids survive without float rounding.
func DecodeLoginResponse(body []byte) (LoginResponse, error) {
	var payload map[string]any
	if err := utils.DecodeJSON(body, &payload); err != nil {
		return nil, err
	}
	return LoginResponse(payload), nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
