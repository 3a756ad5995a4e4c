package config

import (
	"strconv"
	"time"
)

type Client struct{}

var _ ClientConfig = Client{}

func (Client) GetRequestTimeout() time.Duration {
	return GetDuration("REQUEST_TIMEOUT", 30*time.Second)
}

// GetRefreshTimeout bounds a single refresh-token exchange. The exchange is
// shared by every request waiting on it, so it does not inherit any one
// caller's deadline.
func (Client) GetRefreshTimeout() time.Duration {
	return GetDuration("REFRESH_TIMEOUT", 15*time.Second)
}

// GetRateLimit returns the outbound request rate. rps <= 0 disables limiting.
func (Client) GetRateLimit() (float64, int) {
	rps, err := strconv.ParseFloat(GetEnv("RATE_LIMIT_RPS", "0"), 64)
	if err != nil {
		rps = 0
	}
	burst, err := strconv.Atoi(GetEnv("RATE_LIMIT_BURST", "1"))
	if err != nil || burst < 1 {
		burst = 1
	}
	return rps, burst
}

func (Client) GetLoginPath() string {
	return GetEnv("LOGIN_PATH", "/staff-login")
}
