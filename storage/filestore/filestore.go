// Package filestore keeps session storage in a single JSON document on disk.
// Every batch rewrites the document through a temp file and rename so a crash
// never leaves a half-written file behind.
package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/storage"
)

const filePerm = 0o600

var _ storage.Repo = (*Store)(nil)

type Store struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// Open reads path (if it exists) and returns a store writing back to it.
// A missing file is an empty store; an unreadable one is an error.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("[filestore.Open] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.Open] MkdirAll")
	}
	s := &Store{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, errors.Wrap(err, "[filestore.Open] ReadFile")
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, errors.Wrapf(err, "[filestore.Open] %s is not a storage document", path)
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) Apply(_ context.Context, mutations ...storage.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.values)+len(mutations))
	for k, v := range s.values {
		next[k] = v
	}
	for _, m := range mutations {
		if m.Value == nil {
			delete(next, m.Key)
			continue
		}
		next[m.Key] = *m.Value
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

func (s *Store) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[filestore.write] Marshal")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.tmp")
	if err != nil {
		return errors.Wrap(err, "[filestore.write] CreateTemp")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.write] Write")
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.write] Chmod")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.write] Sync")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[filestore.write] Close")
	}
	return errors.Wrap(os.Rename(tmpName, s.path), "[filestore.write] Rename")
}

func (s *Store) Close() error {
	return nil
}
