// Package sessions is the single source of truth for the authenticated identity.
//
// The identity is persisted under UserStoreKey as the envelope
// {"state":{"currentUser":…}} that external route guards read, and mirrored as
// a bare identity under CurrentUserKey.
package sessions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/users"
)

// Durable keys owned by the store.
const (
	UserStoreKey   = "userStore"
	CurrentUserKey = "currentUser"
)

// Envelope is the persisted shape under UserStoreKey.
type Envelope struct {
	State State `json:"state"`
}

type State struct {
	CurrentUser *users.Identity `json:"currentUser"`
}

// Store holds the current identity and its durable envelope.
type Store struct {
	repo storage.Repo

	mu      sync.RWMutex
	current *users.Identity
}

// New returns a store with no identity. Call Rehydrate to restore one.
func New(repo storage.Repo) (*Store, error) {
	if repo == nil {
		return nil, errors.New("[sessions.New] storage repo is required")
	}
	return &Store{repo: repo}, nil
}

// SetUser validates identity and replaces the current one. Nothing is written
// when validation fails.
func (s *Store) SetUser(ctx context.Context, identity users.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, identity)
}

// UpdateUser merges patch into the current identity. It does nothing when no
// identity is set; the merged identity must still validate.
func (s *Store) UpdateUser(ctx context.Context, patch users.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	next := s.current.Merge(patch)
	if err := next.Validate(); err != nil {
		return err
	}
	return s.write(ctx, next)
}

// ClearUser forgets the identity and removes both durable entries.
func (s *Store) ClearUser(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	err := s.repo.Apply(ctx, storage.Delete(UserStoreKey), storage.Delete(CurrentUserKey))
	return errors.Wrap(err, "[Store.ClearUser] repo.Apply")
}

// Rehydrate rebuilds the in-memory identity from the durable envelope. A missing
// or malformed envelope yields no identity rather than an error; only storage
// read failures are returned.
func (s *Store) Rehydrate(ctx context.Context) error {
	identity, err := readEnvelope(ctx, s.repo)
	if err != nil && !errors.Is(err, errMalformed) {
		return errors.Wrap(err, "[Store.Rehydrate] readEnvelope")
	}
	if err != nil {
		log.Warn().Err(err).Msg("discarding malformed persisted session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = identity
	return nil
}

// Verify checks that the durable envelope holds exactly identity.
func (s *Store) Verify(ctx context.Context, identity users.Identity) error {
	stored, err := readEnvelope(ctx, s.repo)
	if err != nil {
		return sessionerrors.Join(sessionerrors.ErrPersistFailed, err)
	}
	if stored == nil || !stored.Equal(identity) {
		return sessionerrors.ErrPersistFailed
	}
	return nil
}

// Current returns a copy of the identity, or nil when logged out.
func (s *Store) Current() *users.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// IsAuthenticated is derived from the identity, never stored.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.UserID > 0
}

func (s *Store) write(ctx context.Context, identity users.Identity) error {
	bare, err := json.Marshal(identity)
	if err != nil {
		return errors.Wrap(err, "[Store.write] marshal identity")
	}
	envelope, err := json.Marshal(Envelope{State: State{CurrentUser: &identity}})
	if err != nil {
		return errors.Wrap(err, "[Store.write] marshal envelope")
	}
	if err := s.repo.Apply(ctx,
		storage.Put(UserStoreKey, string(envelope)),
		storage.Put(CurrentUserKey, string(bare)),
	); err != nil {
		return errors.Wrap(err, "[Store.write] repo.Apply")
	}
	s.current = &identity
	return nil
}
