// Package refresh renews the access token on behalf of every request that was
// rejected with 401 while a renewal was due. At most one renewal is in flight;
// concurrent callers join it and share its outcome.
package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/internal/config"
	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/users"
)

const (
	defaultTimeout = 10 * time.Second
	flightKey      = "refresh"
)

// State reports whether a renewal is currently running.
type State int

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// Exchanger posts a refresh token to the backend and returns its reply.
// An empty refreshToken means no body is sent.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (authmodel.RefreshResponse, error)
}

// IdentityStore is the part of the session store a renewal touches.
type IdentityStore interface {
	Current() *users.Identity
	ClearUser(ctx context.Context) error
}

// Coordinator runs at most one renewal at a time for a credential cache and
// the session store that shares its lifetime.
type Coordinator struct {
	exchanger Exchanger
	creds     *credentials.Cache
	store     IdentityStore
	policy    config.IdentityPolicy
	timeout   time.Duration

	group     singleflight.Group
	inflight  atomic.Int32
	completed atomic.Int64
}

type Option func(*Coordinator)

// WithIdentityPolicy sets how a renewed token naming another user is handled.
func WithIdentityPolicy(policy config.IdentityPolicy) Option {
	return func(c *Coordinator) {
		c.policy = policy
	}
}

// WithTimeout bounds a single renewal, independently of any caller's context.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = timeout
	}
}

// New returns an Idle coordinator. The identity policy defaults to enforce.
func New(exchanger Exchanger, creds *credentials.Cache, store IdentityStore, options ...Option) (*Coordinator, error) {
	if exchanger == nil {
		return nil, errors.New("[refresh.New] exchanger is required")
	}
	if creds == nil {
		return nil, errors.New("[refresh.New] credential cache is required")
	}
	if store == nil {
		return nil, errors.New("[refresh.New] session store is required")
	}
	c := &Coordinator{
		exchanger: exchanger,
		creds:     creds,
		store:     store,
		policy:    config.IdentityPolicyEnforce,
		timeout:   defaultTimeout,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c, nil
}

// State is Refreshing while a renewal runs and Idle otherwise.
func (c *Coordinator) State() State {
	if c.inflight.Load() > 0 {
		return Refreshing
	}
	return Idle
}

// Completed counts successful renewals since construction.
func (c *Coordinator) Completed() int64 {
	return c.completed.Load()
}

// Refresh starts a renewal, or joins the one in flight, and returns the new
// access token. Cancelling ctx abandons this caller's wait only; the shared
// renewal keeps running under its own timeout.
//
// On failure the credentials and the session identity are cleared and the
// returned error matches ErrRefreshFailed. A session that was cleared or
// replaced while the renewal ran is left as it is; the error then also
// matches ErrSessionChanged.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		c.inflight.Add(1)
		defer c.inflight.Add(-1)

		runCtx, cancel := context.WithTimeout(detached, c.timeout)
		defer cancel()
		return c.run(runCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "[Coordinator.Refresh] abandoned wait")
	}
}

func (c *Coordinator) run(ctx context.Context) (string, error) {
	generation := c.creds.Generation()
	previous := c.creds.Refresh()

	resp, err := c.exchanger.Exchange(ctx, previous)
	if err != nil {
		return "", c.fail(ctx, generation, err)
	}
	if resp.AccessToken == "" {
		return "", c.fail(ctx, generation, errors.New("refresh response has no accessToken"))
	}
	if err := c.checkIdentity(resp.AccessToken); err != nil {
		return "", c.fail(ctx, generation, err)
	}

	next := resp.RefreshToken
	if next == "" {
		next = previous
	}
	err = c.creds.SetAt(ctx, generation, resp.AccessToken, next, c.creds.Persist())
	if errors.Is(err, sessionerrors.ErrSessionChanged) {
		log.Debug().Msg("session changed during refresh, renewed token discarded")
		return "", sessionerrors.Join(sessionerrors.ErrRefreshFailed, err)
	}
	if err != nil {
		return "", c.fail(ctx, generation, err)
	}

	c.completed.Add(1)
	log.Debug().Bool("rotated", resp.RefreshToken != "").Msg("access token refreshed")
	return resp.AccessToken, nil
}

// checkIdentity compares a JWT subject with the stored identity. Opaque tokens
// and non-numeric subjects pass.
func (c *Coordinator) checkIdentity(access string) error {
	if c.policy == config.IdentityPolicyIgnore {
		return nil
	}
	current := c.store.Current()
	if current == nil {
		return nil
	}
	claims, err := token.Peek(access)
	if err != nil {
		return nil
	}
	subject, ok := claims.UserID()
	if !ok || subject == current.UserID {
		return nil
	}
	if c.policy == config.IdentityPolicyWarn {
		log.Warn().Int64("session_user", current.UserID).Int64("token_subject", subject).Msg("refreshed token names a different user")
		return nil
	}
	return errors.Wrapf(sessionerrors.ErrIdentityMismatch, "session user %d, token subject %d", current.UserID, subject)
}

// fail clears credentials and identity, unless the session has moved past
// generation. Clearing runs even when ctx has expired.
func (c *Coordinator) fail(ctx context.Context, generation uint64, cause error) error {
	cleanup := context.WithoutCancel(ctx)
	err := c.creds.ClearAt(cleanup, generation)
	if errors.Is(err, sessionerrors.ErrSessionChanged) {
		log.Debug().Err(cause).Msg("refresh failed after the session changed, leaving it in place")
		return sessionerrors.Join(sessionerrors.ErrRefreshFailed, sessionerrors.Join(sessionerrors.ErrSessionChanged, cause))
	}
	if err != nil {
		log.Err(err).Msg("clearing credentials after failed refresh")
	}
	if err := c.store.ClearUser(cleanup); err != nil {
		log.Err(err).Msg("clearing session identity after failed refresh")
	}
	log.Warn().Err(cause).Msg("token refresh failed, session cleared")
	return sessionerrors.Join(sessionerrors.ErrRefreshFailed, cause)
}
