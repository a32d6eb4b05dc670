package ratelimit

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config controls the Redis-backed token bucket.
type Config struct {
	Enabled         bool    `toml:"enabled"`
	RedisAddr       string  `toml:"redis_addr"`
	RedisPassword   string  `toml:"redis_password"`
	RedisDB         int     `toml:"redis_db"`
	KeyPrefix       string  `toml:"key_prefix"`
	Capacity        int     `toml:"capacity"`
	RefillPerSecond float64 `toml:"refill_per_second"`
	TTL             string  `toml:"ttl"`
	FailClosed      bool    `toml:"fail_closed"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled         string
	RedisAddr       string
	RedisPassword   string
	RedisDB         string
	Capacity        string
	RefillPerSecond string
	TTL             string
	FailClosed      string
}

func (c *Config) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	c.Enabled = c.Enabled || overlay.Enabled
	c.FailClosed = c.FailClosed || overlay.FailClosed
	if overlay.RedisAddr != "" {
		c.RedisAddr = overlay.RedisAddr
	}
	if overlay.RedisPassword != "" {
		c.RedisPassword = overlay.RedisPassword
	}
	if overlay.RedisDB != 0 {
		c.RedisDB = overlay.RedisDB
	}
	if overlay.KeyPrefix != "" {
		c.KeyPrefix = overlay.KeyPrefix
	}
	if overlay.Capacity != 0 {
		c.Capacity = overlay.Capacity
	}
	if overlay.RefillPerSecond != 0 {
		c.RefillPerSecond = overlay.RefillPerSecond
	}
	if overlay.TTL != "" {
		c.TTL = overlay.TTL
	}
}

func (c *Config) loadDefaults() {
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "scribe:ratelimit:"
	}
	if c.Capacity == 0 {
		c.Capacity = 10
	}
	if c.RefillPerSecond == 0 {
		c.RefillPerSecond = 0.5
	}
	if c.TTL == "" {
		c.TTL = "10m"
	}
}

func (c *Config) loadEnv(env *Env) {
	setBool(&c.Enabled, env.Enabled)
	setString(&c.RedisAddr, env.RedisAddr)
	setString(&c.RedisPassword, env.RedisPassword)
	if v := lookup(env.RedisDB); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := lookup(env.Capacity); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Capacity = n
		}
	}
	if v := lookup(env.RefillPerSecond); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RefillPerSecond = f
		}
	}
	setString(&c.TTL, env.TTL)
	setBool(&c.FailClosed, env.FailClosed)
}

func lookup(key string) string {
	if key == "" {
		return ""
	}
	return os.Getenv(key)
}

func setString(dst *string, key string) {
	if v := lookup(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := lookup(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (c *Config) validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1")
	}
	if c.RefillPerSecond <= 0 {
		return fmt.Errorf("refill_per_second must be positive")
	}
	if d, err := time.ParseDuration(c.TTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid ttl %q", c.TTL)
	}
	if c.Enabled && c.RedisAddr == "" {
		return fmt.Errorf("redis_addr required when enabled")
	}
	return nil
}
