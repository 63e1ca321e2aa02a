// Package credentials holds the access/refresh credential pair in process memory,
// optionally mirrored into durable storage when the session is remembered.
//
// Durable storage is only consulted by Load and written by Set and Clear; the
// getters never leave memory, so attaching a token to a request costs no I/O.
package credentials

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/storage"
)

// Durable keys owned by the cache.
const (
	AccessKey   = "access_token"
	RefreshKey  = "refresh_token"
	RememberKey = "remember_me"
)

// ErrNoAccessToken is returned by Token when no access token is cached.
var ErrNoAccessToken = errors.New("no access token")

var _ oauth2.TokenSource = (*Cache)(nil)

// Cache is the in-memory credential pair with its durable mirror. Every Load,
// Set and Clear starts a new generation.
type Cache struct {
	repo storage.Repo

	mu         sync.RWMutex
	access     string
	refresh    string
	persist    bool
	generation uint64
}

// New returns an empty cache over repo. Call Load to restore a remembered pair.
func New(repo storage.Repo) (*Cache, error) {
	if repo == nil {
		return nil, errors.New("[credentials.New] storage repo is required")
	}
	return &Cache{repo: repo}, nil
}

// Load restores the cache from durable storage. Tokens are only read when the
// remember flag is "true"; otherwise memory is reset to empty.
func (c *Cache) Load(ctx context.Context) error {
	remember, err := c.get(ctx, RememberKey)
	if err != nil {
		return errors.Wrap(err, "[Cache.Load] remember flag")
	}
	var access, refresh string
	persist := remember == "true"
	if persist {
		if access, err = c.get(ctx, AccessKey); err != nil {
			return errors.Wrap(err, "[Cache.Load] access token")
		}
		if refresh, err = c.get(ctx, RefreshKey); err != nil {
			return errors.Wrap(err, "[Cache.Load] refresh token")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.access, c.refresh, c.persist = access, refresh, persist
	c.generation++
	return nil
}

// Set replaces the credential pair and the persist flag. The durable mirror is
// written as one batch before memory changes, so a failed write leaves both
// untouched.
func (c *Cache) Set(ctx context.Context, access, refresh string, persist bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set(ctx, access, refresh, persist)
}

// SetAt is Set, applied only while the cache is still at generation. A cache
// that moved on returns ErrSessionChanged and is left untouched.
func (c *Cache) SetAt(ctx context.Context, generation uint64, access, refresh string, persist bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return errors.Wrap(sessionerrors.ErrSessionChanged, "[Cache.SetAt]")
	}
	return c.set(ctx, access, refresh, persist)
}

// Clear drops both tokens from memory and durable storage whatever the persist
// flag says. The flag itself is kept.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clear(ctx)
}

// ClearAt is Clear, applied only while the cache is still at generation.
func (c *Cache) ClearAt(ctx context.Context, generation uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return errors.Wrap(sessionerrors.ErrSessionChanged, "[Cache.ClearAt]")
	}
	return c.clear(ctx)
}

// Generation identifies the current credential state. It changes on every
// Load, Set and Clear.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Access returns the in-memory access token, "" when none.
func (c *Cache) Access() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access
}

// Refresh returns the in-memory refresh token, "" when none.
func (c *Cache) Refresh() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresh
}

// Persist reports whether the pair is mirrored to durable storage.
func (c *Cache) Persist() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.persist
}

// Snapshot returns the cached pair as an oauth2 token, or nil when empty.
func (c *Cache) Snapshot() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.access == "" && c.refresh == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.access,
		RefreshToken: c.refresh,
		TokenType:    "Bearer",
	}
}

// Token implements oauth2.TokenSource over the in-memory pair.
func (c *Cache) Token() (*oauth2.Token, error) {
	t := c.Snapshot()
	if t == nil || t.AccessToken == "" {
		return nil, ErrNoAccessToken
	}
	return t, nil
}

func (c *Cache) set(ctx context.Context, access, refresh string, persist bool) error {
	var mutations []storage.Mutation
	if persist {
		mutations = []storage.Mutation{
			putOrDelete(AccessKey, access),
			putOrDelete(RefreshKey, refresh),
			storage.Put(RememberKey, "true"),
		}
	} else {
		mutations = []storage.Mutation{
			storage.Delete(AccessKey),
			storage.Delete(RefreshKey),
			storage.Put(RememberKey, "false"),
		}
	}
	if err := c.repo.Apply(ctx, mutations...); err != nil {
		return errors.Wrap(err, "[Cache.Set] repo.Apply")
	}
	c.access, c.refresh, c.persist = access, refresh, persist
	c.generation++
	return nil
}

func (c *Cache) clear(ctx context.Context) error {
	c.access, c.refresh = "", ""
	c.generation++
	if err := c.repo.Apply(ctx, storage.Delete(AccessKey), storage.Delete(RefreshKey)); err != nil {
		return errors.Wrap(err, "[Cache.Clear] repo.Apply")
	}
	return nil
}

func (c *Cache) get(ctx context.Context, key string) (string, error) {
	v, err := c.repo.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func putOrDelete(key, value string) storage.Mutation {
	if value == "" {
		return storage.Delete(key)
	}
	return storage.Put(key, value)
}
