// Package auth ties the credential cache and the session store together: they
// are always set and cleared as a pair by Login, Logout and Restore.
package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/credentials"
	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/users"
)

const defaultLoginPath = "/login"

// Redirect navigates the caller to path. Logout passes the login entry point.
type Redirect func(path string)

// Session is the read-only projection returned by CurrentSession.
type Session struct {
	User            *users.Identity
	IsAuthenticated bool
}

// Service is the session orchestrator.
type Service struct {
	client    *apiclient.Client
	creds     *credentials.Cache
	store     *sessions.Store
	loginPath string

	// serialises Login, Logout and Restore
	mu sync.Mutex
}

type ServiceOption func(*Service)

// WithLoginPath sets the path handed to the Logout redirect.
func WithLoginPath(path string) ServiceOption {
	return func(s *Service) {
		s.loginPath = path
	}
}

// NewService wires the orchestrator over an already constructed client, cache
// and store. Open builds all four from configuration.
func NewService(client *apiclient.Client, creds *credentials.Cache, store *sessions.Store, options ...ServiceOption) (*Service, error) {
	if client == nil {
		return nil, errors.New("[NewService] api client is required")
	}
	if creds == nil {
		return nil, errors.New("[NewService] credential cache is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] session store is required")
	}
	s := &Service{
		client:    client,
		creds:     creds,
		store:     store,
		loginPath: defaultLoginPath,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login authenticates against the backend and establishes the session. When
// the returned identity is unusable, or does not persist, the session is
// discarded as a whole, including any session the login was replacing. The raw login
// payload is returned on success.
func (s *Service) Login(ctx context.Context, username, password string, remember bool) (authmodel.LoginResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.client.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      apiclient.LoginPath,
		Body:      authmodel.LoginRequest{Username: username, Password: password},
		NoRefresh: true,
	})
	if err != nil {
		switch apiclient.StatusCode(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return nil, sessionerrors.Join(sessionerrors.ErrInvalidCredentials, err)
		}
		return nil, errors.Wrap(err, "[Service.Login] login request")
	}

	payload, err := authmodel.DecodeLoginResponse(resp.Body)
	if err != nil {
		return nil, sessionerrors.Join(sessionerrors.ErrInvalidUserStructure, err)
	}

	if err := s.creds.Set(ctx, payload.AccessToken(), payload.RefreshToken(), remember); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] store credentials")
	}

	identity := users.FromPayload(payload)
	if err := identity.Validate(); err != nil {
		s.discard(ctx)
		return nil, sessionerrors.Join(sessionerrors.ErrInvalidUserStructure, err)
	}

	if err := s.store.SetUser(ctx, identity); err != nil {
		s.discard(ctx)
		return nil, sessionerrors.Join(sessionerrors.ErrPersistFailed, err)
	}
	if err := s.store.Verify(ctx, identity); err != nil {
		s.discard(ctx)
		return nil, errors.Wrap(err, "[Service.Login] verify session")
	}

	log.Info().Int64("user_id", identity.UserID).Bool("remember", remember).Msg("logged in")
	return payload, nil
}

// Logout always ends the local session. The backend call is best effort; only
// failures to clear local state are returned. redirect may be nil.
func (s *Service) Logout(ctx context.Context, redirect Redirect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.client.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      apiclient.LogoutPath,
		NoRefresh: true,
	}); err != nil {
		log.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
	}

	credsErr := s.creds.Clear(ctx)
	userErr := s.store.ClearUser(ctx)
	if credsErr != nil {
		return errors.Wrap(credsErr, "[Service.Logout] clear credentials")
	}
	if userErr != nil {
		return errors.Wrap(userErr, "[Service.Logout] clear session user")
	}

	log.Info().Msg("logged out")
	if redirect != nil {
		redirect(s.loginPath)
	}
	return nil
}

// CurrentSession never performs I/O. The flag is derived from the same
// identity copy it is returned with.
func (s *Service) CurrentSession() Session {
	user := s.store.Current()
	return Session{
		User:            user,
		IsAuthenticated: user != nil && user.UserID > 0,
	}
}

// Restore reloads credentials and identity from durable storage at process
// start. An identity left over from a session whose credentials were not
// remembered is cleared.
func (s *Service) Restore(ctx context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.creds.Load(ctx); err != nil {
		return Session{}, errors.Wrap(err, "[Service.Restore] load credentials")
	}
	if err := s.store.Rehydrate(ctx); err != nil {
		return Session{}, errors.Wrap(err, "[Service.Restore] rehydrate session")
	}
	if s.store.Current() != nil && s.creds.Access() == "" && s.creds.Refresh() == "" {
		log.Debug().Msg("stored identity has no credentials, clearing")
		if err := s.store.ClearUser(ctx); err != nil {
			return Session{}, errors.Wrap(err, "[Service.Restore] clear orphaned identity")
		}
	}
	return s.CurrentSession(), nil
}

// Refresh renews the access token now, joining any renewal already running.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.client.Refresher().Refresh(ctx)
	return err
}

// Me fetches the backend's view of the current user.
func (s *Service) Me(ctx context.Context) (*authmodel.MeResponse, error) {
	resp, err := s.client.Get(ctx, apiclient.MePath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Me] request")
	}
	var me authmodel.MeResponse
	if err := resp.Decode(&me); err != nil {
		return nil, errors.Wrap(err, "[Service.Me] decode")
	}
	return &me, nil
}

// UpdateUser merges patch into the current identity.
func (s *Service) UpdateUser(ctx context.Context, patch users.Patch) error {
	return s.store.UpdateUser(ctx, patch)
}

// discard rolls back a login whose identity could not be established. Both
// halves end empty.
func (s *Service) discard(ctx context.Context) {
	if err := s.creds.Clear(ctx); err != nil {
		log.Err(err).Msg("discarding credentials after failed login")
	}
	if err := s.store.ClearUser(ctx); err != nil {
		log.Err(err).Msg("discarding identity after failed login")
	}
}
