package config

import "time"

// LoginLimitConfig controls the login throttle. Attempts are counted per
// client IP in a fixed window that starts with the first attempt.
type LoginLimitConfig struct {
	MaxAttempts int
	Decay       time.Duration
	Prefix      string
}

func LoadLoginLimitConfig() LoginLimitConfig {
	cfg := LoginLimitConfig{
		MaxAttempts: envInt("LOGIN_MAX_ATTEMPTS", 5),
		Decay:       envDur("LOGIN_DECAY", 60*time.Second),
		Prefix:      envStr("LOGIN_LIMIT_PREFIX", "login"),
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Decay < time.Second {
		cfg.Decay = time.Second
	}
	return cfg
}

func envDur(k string, d time.Duration) time.Duration {
	v := envStr(k, "")
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
