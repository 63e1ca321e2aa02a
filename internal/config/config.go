package config

import (
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	ClientConfig
	StorageConfig
	MockConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Client
	Storage
	Mock
}

var dotEnvLoaded sync.Once

// New loads .env (when present) and parses the environment into a Config.
func New() (Config, error) {
	dotEnvLoaded.Do(func() {
		// A missing .env file is not an error
		_ = godotenv.Load()
	})
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "[config.New] env.Parse")
	}
	if err := c.Client.validate(); err != nil {
		return nil, errors.Wrap(err, "[config.New] client")
	}
	if err := c.Storage.validate(); err != nil {
		return nil, errors.Wrap(err, "[config.New] storage")
	}
	return c, nil
}

// Default returns a Config populated only from the envDefault tags.
func Default() Config {
	var c mainConfig
	_ = env.ParseWithOptions(&c, env.Options{Environment: map[string]string{}})
	return c
}
