// Package grants issues and rotates the opaque refresh tokens handed out by
// the reference backend.
package grants

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

const defaultTokenLength = 32

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var (
	ErrUnknownGrant = errors.New("unknown refresh token")
	ErrExpiredGrant = errors.New("refresh token expired")
)

// Manager handles refresh token creation, rotation and revocation
type Manager struct {
	repo   Repo
	expiry time.Duration
}

func NewManager(repo Repo, expiry time.Duration) *Manager {
	return &Manager{
		repo:   repo,
		expiry: expiry,
	}
}

// Create issues a refresh token for userID, replacing any previous one.
func (m *Manager) Create(userID int64) (string, error) {
	if existing, err := m.repo.GetByUserID(userID); err == nil && existing != nil {
		if err := m.repo.Delete(existing.Token); err != nil {
			return "", errors.Wrap(err, "[Manager.Create] delete existing grant")
		}
	}

	tokenBytes := make([]byte, defaultTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "[Manager.Create] rand.Read")
	}

	token := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&Grant{Token: token, UserID: userID, Iat: NowTimeFunc()}); err != nil {
		return "", errors.Wrap(err, "[Manager.Create] store grant")
	}
	return token, nil
}

// Rotate consumes token and issues its replacement for the same user.
func (m *Manager) Rotate(token string) (int64, string, error) {
	grant, err := m.repo.Get(token)
	if err != nil || grant == nil {
		return 0, "", ErrUnknownGrant
	}
	if m.expiry > 0 && NowTimeFunc().Sub(grant.Iat) > m.expiry {
		_ = m.repo.Delete(token)
		return 0, "", ErrExpiredGrant
	}
	next, err := m.Create(grant.UserID)
	if err != nil {
		return 0, "", err
	}
	return grant.UserID, next, nil
}

// Revoke drops the grant behind token. Unknown tokens are ignored.
func (m *Manager) Revoke(token string) {
	if token == "" {
		return
	}
	_ = m.repo.Delete(token)
}

// RevokeUser drops whatever grant userID currently holds.
func (m *Manager) RevokeUser(userID int64) {
	if grant, err := m.repo.GetByUserID(userID); err == nil && grant != nil {
		_ = m.repo.Delete(grant.Token)
	}
}
