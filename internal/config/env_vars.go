package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	apiURLVar   = "API_URL"
	appNameVar  = "APP_NAME"
	logLevelVar = "LOG_LEVEL"
	envVar      = "ENV"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

// GetAPIURL returns the backend root (e.g. "https://appeals.example.com").
// All relative request paths and the OAuth redirect target hang off it.
func (EnvVars) GetAPIURL() string {
	return strings.TrimRight(GetEnv(apiURLVar, "http://localhost:8080"), "/")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Tax Appeals")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv(envVar)
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration parses a Go duration ("30s") or a plain number of seconds.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
