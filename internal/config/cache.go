package config

import (
	"strings"
	"time"
)

// CacheConfig groups the Redis-backed caches. PermissionTTL and ProfileTTL
// bound the read-through caches of the auth core. The Response* fields
// drive the HTTP response cache placed in front of the book listing; it is
// disabled when ResponseEnabled is false. ResponseMethods lists the HTTP
// methods to cache and ResponseMaxBody caps the stored body size.
type CacheConfig struct {
	PermissionTTL   time.Duration
	ProfileTTL      time.Duration
	ResponseEnabled bool
	ResponseMethods map[string]bool
	ResponseTTL     time.Duration
	ResponsePrefix  string
	ResponseMaxBody int
}

// LoadCacheConfig reads CACHE_* variables, using defaults when unset.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		PermissionTTL:   envDur("PERMISSION_CACHE_TTL", time.Hour),
		ProfileTTL:      envDur("PROFILE_CACHE_TTL", time.Hour),
		ResponseEnabled: envBool("CACHE_ENABLED", true),
		ResponseMethods: parseMethods(envStr("CACHE_METHODS", "GET")),
		ResponseTTL:     envDur("CACHE_TTL", 30*time.Second),
		ResponsePrefix:  envStr("CACHE_PREFIX", "cache"),
		ResponseMaxBody: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
