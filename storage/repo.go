// Package storage defines the durable key/value contract behind the credential
// cache and the session store. Keys and values are plain strings, mirroring the
// browser storage the session layout was designed around.
package storage

import (
	"context"
	"errors"

	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// ErrNotFound is returned by Get when a key holds no value.
var ErrNotFound = sessionerrors.ErrNotFound

// ErrCorrupt marks a stored value that exists but cannot be trusted.
var ErrCorrupt = errors.New("stored value is corrupt")

// Mutation is one write in an atomic batch. A nil Value deletes the key.
type Mutation struct {
	Key   string
	Value *string
}

// Put returns a mutation that writes value under key.
func Put(key, value string) Mutation {
	return Mutation{Key: key, Value: &value}
}

// Delete returns a mutation that removes key.
func Delete(key string) Mutation {
	return Mutation{Key: key}
}

// Repo is durable key/value storage surviving process restart.
// Apply must make every mutation in the batch visible together or not at all.
type Repo interface {
	Get(ctx context.Context, key string) (string, error)
	Apply(ctx context.Context, mutations ...Mutation) error
	Close() error
}
