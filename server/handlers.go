package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/users"
)

const maxBodySize = 1 << 20

// HealthHandler reports liveness
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// LoginHandler checks the password and starts a session:
// {accessToken, refreshToken, user:{role,user_id,username}}
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logins.Add(1)

		var req authmodel.LoginRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
			writeJSONError(w, "invalid_request", "username and password are required", http.StatusBadRequest)
			return
		}

		account, err := s.accounts.GetByUsername(req.Username)
		if err != nil || !users.CheckPasswordHash(req.Password, account.PasswordHash) {
			writeJSONError(w, "invalid_credentials", "unknown username or wrong password", http.StatusUnauthorized)
			return
		}

		access, err := s.issueAccessToken(account)
		if err != nil {
			log.Err(err).Int64("user_id", account.ID).Msg("issuing access token")
			writeJSONError(w, "server_error", "could not issue token", http.StatusInternalServerError)
			return
		}
		refresh, err := s.grants.Create(account.ID)
		if err != nil {
			log.Err(err).Int64("user_id", account.ID).Msg("issuing refresh token")
			writeJSONError(w, "server_error", "could not issue token", http.StatusInternalServerError)
			return
		}

		s.setSessionCookies(w, r, refresh)
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":  access,
			"refreshToken": refresh,
			"user":         account.Identity(),
		})
	}
}

// RefreshHandler rotates the refresh token from the body, or from the refresh
// cookie when the body is empty, and issues a new access token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.refreshes.Add(1)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			writeJSONError(w, "invalid_request", "unreadable body", http.StatusBadRequest)
			return
		}
		var req authmodel.RefreshRequest
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeJSONError(w, "invalid_request", "malformed body", http.StatusBadRequest)
				return
			}
		}
		if req.RefreshToken == "" {
			if cookie, err := r.Cookie(refreshCookieName); err == nil {
				req.RefreshToken = cookie.Value
			}
		}
		if req.RefreshToken == "" {
			writeJSONError(w, "invalid_grant", "no refresh token", http.StatusUnauthorized)
			return
		}

		userID, next, err := s.grants.Rotate(req.RefreshToken)
		if err != nil {
			writeJSONError(w, "invalid_grant", err.Error(), http.StatusUnauthorized)
			return
		}
		account, err := s.accounts.GetByID(userID)
		if err != nil {
			writeJSONError(w, "invalid_grant", "unknown user", http.StatusUnauthorized)
			return
		}
		access, err := s.issueAccessToken(account)
		if err != nil {
			log.Err(err).Int64("user_id", userID).Msg("issuing access token on refresh")
			writeJSONError(w, "server_error", "could not issue token", http.StatusInternalServerError)
			return
		}

		s.setSessionCookies(w, r, next)
		writeJSON(w, http.StatusOK, authmodel.RefreshResponse{AccessToken: access, RefreshToken: next})
	}
}

// LogoutHandler revokes whatever the request can prove it holds and clears the
// session cookies. It always answers 204.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logouts.Add(1)

		if access, ok := bearerToken(r); ok {
			if userID, ok := s.authenticate(access); ok {
				s.grants.RevokeUser(userID)
				s.revokeAccessTokens(userID)
			}
		}
		if cookie, err := r.Cookie(refreshCookieName); err == nil {
			s.grants.Revoke(cookie.Value)
		}

		s.clearSessionCookies(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the account behind the bearer token
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())
		account, err := s.accounts.GetByID(userID)
		if err != nil {
			writeJSONError(w, "invalid_token", "unknown user", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, authmodel.MeResponse{
			UserID:   account.ID,
			Username: account.Username,
			Role:     account.Role,
		})
	}
}

// ShoesHandler serves the protected catalog
func (s *Server) ShoesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.catalog) == 0 {
			writeJSONError(w, "not_found", "catalog is empty", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, s.catalog)
	}
}
