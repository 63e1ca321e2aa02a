// Package sealed encrypts values at rest for any storage.Repo. Keys stay in the
// clear; each value is sealed with XChaCha20-Poly1305 using the key name as
// associated data, so a value copied under another key fails to open.
package sealed

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jrsteele09/go-auth-client/storage"
)

// ErrTampered is returned when a stored value fails authentication.
var ErrTampered = fmt.Errorf("sealed value failed authentication: %w", storage.ErrCorrupt)

var _ storage.Repo = (*Repo)(nil)

type Repo struct {
	inner storage.Repo
	key   []byte
}

// New wraps inner. key must be chacha20poly1305.KeySize bytes.
func New(inner storage.Repo, key []byte) (*Repo, error) {
	if inner == nil {
		return nil, errors.New("[sealed.New] inner repo is required")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("[sealed.New] key must be %d bytes", chacha20poly1305.KeySize)
	}
	return &Repo{inner: inner, key: append([]byte(nil), key...)}, nil
}

func (r *Repo) Get(ctx context.Context, key string) (string, error) {
	v, err := r.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	plain, err := r.open(key, v)
	if err != nil {
		return "", errors.Wrapf(err, "[sealed.Get] %s", key)
	}
	return plain, nil
}

func (r *Repo) Apply(ctx context.Context, mutations ...storage.Mutation) error {
	sealedMutations := make([]storage.Mutation, 0, len(mutations))
	for _, m := range mutations {
		if m.Value == nil {
			sealedMutations = append(sealedMutations, m)
			continue
		}
		v, err := r.seal(m.Key, *m.Value)
		if err != nil {
			return errors.Wrapf(err, "[sealed.Apply] %s", m.Key)
		}
		sealedMutations = append(sealedMutations, storage.Put(m.Key, v))
	}
	return r.inner.Apply(ctx, sealedMutations...)
}

func (r *Repo) Close() error {
	return r.inner.Close()
}

func (r *Repo) seal(key, plain string) (string, error) {
	aead, err := chacha20poly1305.NewX(r.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(plain), []byte(key))
	return base64.RawStdEncoding.EncodeToString(out), nil
}

func (r *Repo) open(key, stored string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(stored)
	if err != nil {
		return "", ErrTampered
	}
	aead, err := chacha20poly1305.NewX(r.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrTampered
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", ErrTampered
	}
	return string(plain), nil
}
