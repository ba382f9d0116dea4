package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines settings for the Redis token-bucket limiter
// that guards the checkout surface.  When Enabled is false or no Redis
// client is available the middleware is a no-op.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int           // bucket size (burst)
	RefillTokens   int           // tokens added per interval
	RefillInterval time.Duration // how often tokens are refilled
	TTL            time.Duration // idle key expiry
	Scope          string        // "user" (per authenticated user) or "ip"
	Debug          bool
}

// LoadRateLimitConfig reads environment variables to build a
// RateLimitConfig.  Defaults allow short bursts while keeping repeated
// checkout hammering out.
func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:        getenv("RATELIMIT_ENABLED", "true") == "true",
		Capacity:       atoi(getenv("RATELIMIT_CAPACITY", "10")),
		RefillTokens:   atoi(getenv("RATELIMIT_REFILL_TOKENS", "1")),
		RefillInterval: parseDur(getenv("RATELIMIT_REFILL_INTERVAL", "1s")),
		TTL:            parseDur(getenv("RATELIMIT_TTL", "10m")),
		Scope:          strings.ToLower(getenv("RATELIMIT_SCOPE", "user")),
		Debug:          getenv("RATELIMIT_DEBUG", "false") == "true",
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
