package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	ClientConfig
	StoreConfig
}

type EnvConfig interface {
	GetAPIURL() string
	GetAppName() string
	GetLogLevel() string
	GetEnv() string
}

type ClientConfig interface {
	GetRequestTimeout() time.Duration
	GetRefreshTimeout() time.Duration
	GetRateLimit() (rps float64, burst int)
	GetLoginPath() string
}

type StoreConfig interface {
	GetCredentialStore() StoreKind
	GetCredentialFile() string
	GetCredentialPassphrase() string
	GetRedisAddr() string
	GetRedisNamespace() string
}

type mainConfig struct {
	EnvVars
	Client
	Store
}

// New loads a .env file from the working directory when present and returns
// a Config backed by the process environment.
func New() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}
	return mainConfig{}
}
