package config

import (
	"encoding/hex"
	"fmt"
)

type StorageDriver string

const (
	StorageDriverMemory StorageDriver = "memory"
	StorageDriverFile   StorageDriver = "file"
	StorageDriverRedis  StorageDriver = "redis"
	StorageDriverSQLite StorageDriver = "sqlite"
)

type StorageConfig interface {
	GetStorageDriver() StorageDriver
	GetStoragePath() string
	GetRedisURL() string
	GetRedisPrefix() string
	// GetSealKey returns the 32 byte at-rest key, or nil when sealing is off.
	GetSealKey() []byte
}

type Storage struct {
	Driver      StorageDriver `env:"SESSION_STORAGE_DRIVER" envDefault:"file"`
	Path        string        `env:"SESSION_STORAGE_PATH" envDefault:"./data/session.json"`
	RedisURL    string        `env:"SESSION_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix string        `env:"SESSION_REDIS_PREFIX" envDefault:"session:"`
	SealKey     string        `env:"SESSION_SEAL_KEY"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageDriver() StorageDriver {
	return s.Driver
}

func (s Storage) GetStoragePath() string {
	return s.Path
}

func (s Storage) GetRedisURL() string {
	return s.RedisURL
}

func (s Storage) GetRedisPrefix() string {
	return s.RedisPrefix
}

func (s Storage) GetSealKey() []byte {
	if s.SealKey == "" {
		return nil
	}
	key, err := hex.DecodeString(s.SealKey)
	if err != nil {
		return nil
	}
	return key
}

func (s Storage) validate() error {
	switch s.Driver {
	case StorageDriverMemory, StorageDriverFile, StorageDriverRedis, StorageDriverSQLite:
	default:
		return fmt.Errorf("SESSION_STORAGE_DRIVER %q is not supported", s.Driver)
	}
	if s.SealKey != "" {
		key, err := hex.DecodeString(s.SealKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("SESSION_SEAL_KEY must be 64 hex characters")
		}
	}
	return nil
}
