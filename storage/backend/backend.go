// Package backend opens the storage.Repo selected by configuration.
package backend

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/storage/filestore"
	"github.com/jrsteele09/go-auth-client/storage/redisstore"
	"github.com/jrsteele09/go-auth-client/storage/repofake"
	"github.com/jrsteele09/go-auth-client/storage/sealed"
	"github.com/jrsteele09/go-auth-client/storage/sqlitestore"
)

// Open returns the configured repo, sealed when a seal key is configured.
func Open(ctx context.Context, cfg config.StorageConfig) (storage.Repo, error) {
	var (
		repo storage.Repo
		err  error
	)
	switch cfg.GetStorageDriver() {
	case config.StorageDriverMemory:
		repo = repofake.NewFakeRepo()
	case config.StorageDriverFile:
		repo, err = filestore.Open(cfg.GetStoragePath())
	case config.StorageDriverRedis:
		repo, err = redisstore.Connect(ctx, cfg.GetRedisURL(), cfg.GetRedisPrefix())
	case config.StorageDriverSQLite:
		repo, err = sqlitestore.Open(ctx, cfg.GetStoragePath())
	default:
		return nil, errors.Errorf("[backend.Open] unsupported storage driver %q", cfg.GetStorageDriver())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[backend.Open] %s", cfg.GetStorageDriver())
	}

	if key := cfg.GetSealKey(); key != nil {
		sealedRepo, err := sealed.New(repo, key)
		if err != nil {
			_ = repo.Close()
			return nil, errors.Wrap(err, "[backend.Open] sealed.New")
		}
		repo = sealedRepo
	}

	log.Debug().Str("driver", string(cfg.GetStorageDriver())).Bool("sealed", cfg.GetSealKey() != nil).Msg("session storage opened")
	return repo, nil
}
