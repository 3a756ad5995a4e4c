package config

import (
	"os"
	"path/filepath"
	"strings"
)

// StoreKind selects the credential store backend.
type StoreKind string

const (
	MemoryStore StoreKind = "memory"
	FileStore   StoreKind = "file"
	RedisStore  StoreKind = "redis"
)

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetCredentialStore() StoreKind {
	switch kind := StoreKind(strings.ToLower(GetEnv("CREDENTIAL_STORE", string(FileStore)))); kind {
	case MemoryStore, FileStore, RedisStore:
		return kind
	default:
		return FileStore
	}
}

func (Store) GetCredentialFile() string {
	if file := os.Getenv("CREDENTIAL_FILE"); file != "" {
		return file
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "taxappeal", "session.enc")
}

func (Store) GetCredentialPassphrase() string {
	return GetEnv("CREDENTIAL_PASSPHRASE", "")
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisNamespace() string {
	return GetEnv("REDIS_NAMESPACE", "taxappeal:session")
}
