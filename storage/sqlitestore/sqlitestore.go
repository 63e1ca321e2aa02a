// Package sqlitestore keeps session storage in a single-table SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jrsteele09/go-auth-client/storage"
)

const schema = `CREATE TABLE IF NOT EXISTS session_kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

var _ storage.Repo = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("[sqlitestore.Open] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] MkdirAll")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] sql.Open")
	}
	// SQLite allows one writer; a single connection keeps batches serialised.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "[sqlitestore.Get] %s", key)
	}
	return value, nil
}

func (s *Store) Apply(ctx context.Context, mutations ...storage.Mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "[sqlitestore.Apply] BeginTx")
	}
	defer tx.Rollback()

	for _, m := range mutations {
		if m.Value == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM session_kv WHERE key = ?`, m.Key)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO session_kv (key, value) VALUES (?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, m.Key, *m.Value)
		}
		if err != nil {
			return errors.Wrapf(err, "[sqlitestore.Apply] %s", m.Key)
		}
	}
	return errors.Wrap(tx.Commit(), "[sqlitestore.Apply] Commit")
}

func (s *Store) Close() error {
	return s.db.Close()
}
