package repofake

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jrsteele09/go-auth-client/storage"
)

var _ storage.Repo = (*FakeRepo)(nil)

// FakeRepo is an in-memory storage.Repo. It survives "restarts" within a test as
// long as the same instance is handed to the next cache or store.
type FakeRepo struct {
	values map[string]string
	lock   sync.RWMutex

	// FailApply, when set, is returned by every Apply call without writing.
	FailApply error
	// DropKeys lists keys whose writes are silently discarded.
	DropKeys map[string]bool
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{
		values: make(map[string]string),
	}
}

func (r *FakeRepo) Get(_ context.Context, key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (r *FakeRepo) Apply(_ context.Context, mutations ...storage.Mutation) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.FailApply != nil {
		return r.FailApply
	}
	for _, m := range mutations {
		if r.DropKeys[m.Key] {
			continue
		}
		if m.Value == nil {
			delete(r.values, m.Key)
			continue
		}
		r.values[m.Key] = *m.Value
	}
	return nil
}

// Set writes a raw value, bypassing the owners of the key. Tests use it to
// simulate corrupted or externally written storage.
func (r *FakeRepo) Set(key, value string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[key] = value
}

// Has reports whether key currently holds a value.
func (r *FakeRepo) Has(key string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.values[key]
	return ok
}

// Keys lists stored keys in sorted order.
func (r *FakeRepo) Keys() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *FakeRepo) Close() error {
	return nil
}

// ErrInjected is a convenience failure for FailApply.
var ErrInjected = errors.New("injected storage failure")
