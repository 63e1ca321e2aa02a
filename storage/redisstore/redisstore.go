// Package redisstore keeps session storage in Redis, one string key per storage
// key under a configurable prefix.
package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-auth-client/storage"
)

const defaultPrefix = "session:"

var _ storage.Repo = (*Store)(nil)

// Config contains configuration options for the Redis storage
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "session:"
	KeyPrefix string
}

type Store struct {
	client    *redis.Client
	keyPrefix string
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, errors.New("[redisstore.New] redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultPrefix
	}
	return &Store{client: cfg.Client, keyPrefix: cfg.KeyPrefix}, nil
}

// Connect parses url, pings the server (retrying until ctx expires) and returns a store.
func Connect(ctx context.Context, url, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "[redisstore.Connect] ParseURL")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for {
		err = client.Ping(ctx).Err()
		if err == nil {
			return New(Config{Client: client, KeyPrefix: prefix})
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, errors.Wrap(err, "[redisstore.Connect] Ping")
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if err == redis.Nil {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "[redisstore.Get] %s", key)
	}
	return v, nil
}

// Apply runs the batch inside MULTI/EXEC so readers never observe half of it.
func (s *Store) Apply(ctx context.Context, mutations ...storage.Mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range mutations {
			if m.Value == nil {
				pipe.Del(ctx, s.keyPrefix+m.Key)
				continue
			}
			pipe.Set(ctx, s.keyPrefix+m.Key, *m.Value, 0)
		}
		return nil
	})
	return errors.Wrap(err, "[redisstore.Apply] TxPipelined")
}

func (s *Store) Close() error {
	return s.client.Close()
}
