// Package server is a reference backend for the session client: it serves the
// login, refresh, logout and current-user endpoints plus a protected catalog.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/token/grants"
	"github.com/jrsteele09/go-auth-client/users"
)

// Config is the slice of configuration the backend reads.
type Config interface {
	config.EnvConfig
	config.MockConfig
}

// Stats counts calls to the session endpoints.
type Stats struct {
	Logins    int64
	Refreshes int64
	Logouts   int64
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   Config
	accounts users.AccountRepo
	grants   *grants.Manager
	issuer   *token.Issuer
	catalog  []Shoe

	// access tokens currently honoured, token to user id
	active     map[string]int64
	activeLock sync.RWMutex

	logins    atomic.Int64
	refreshes atomic.Int64
	logouts   atomic.Int64
}

type Option func(*Server)

// WithCatalog replaces the seeded shoe catalog.
func WithCatalog(shoes []Shoe) Option {
	return func(s *Server) {
		s.catalog = shoes
	}
}

func New(cfg Config, accounts users.AccountRepo, grantManager *grants.Manager, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] config is required")
	}
	if accounts == nil {
		return nil, errors.New("[server.New] account repo is required")
	}
	if grantManager == nil {
		return nil, errors.New("[server.New] grant manager is required")
	}
	issuer, err := token.NewIssuer(cfg.GetJWTSecret(), cfg.GetAccessTokenTTL(), token.WithIssuerName(cfg.GetAppName()))
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] token issuer")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		accounts: accounts,
		grants:   grantManager,
		issuer:   issuer,
		catalog:  defaultCatalog(),
		active:   make(map[string]int64),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

// Stats returns a snapshot of the endpoint counters.
func (s *Server) Stats() Stats {
	return Stats{
		Logins:    s.logins.Load(),
		Refreshes: s.refreshes.Load(),
		Logouts:   s.logouts.Load(),
	}
}

// ExpireAccessTokens stops honouring every access token issued so far, as if
// they had all timed out. Refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.activeLock.Lock()
	defer s.activeLock.Unlock()
	s.active = make(map[string]int64)
}

func (s *Server) issueAccessToken(account *users.Account) (string, error) {
	access, err := s.issuer.Issue(account.ID, account.Role)
	if err != nil {
		return "", err
	}
	s.activeLock.Lock()
	s.active[access] = account.ID
	s.activeLock.Unlock()
	return access, nil
}

// authenticate resolves a bearer token to its account id.
func (s *Server) authenticate(access string) (int64, bool) {
	userID, err := s.issuer.Verify(access)
	if err != nil {
		return 0, false
	}
	s.activeLock.RLock()
	activeID, ok := s.active[access]
	s.activeLock.RUnlock()
	return userID, ok && activeID == userID
}

func (s *Server) revokeAccessTokens(userID int64) {
	s.activeLock.Lock()
	defer s.activeLock.Unlock()
	for access, id := range s.active {
		if id == userID {
			delete(s.active, access)
		}
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
