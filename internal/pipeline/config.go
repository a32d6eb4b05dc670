package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config tunes the worker: executor count, collaborator timeouts, and the
// analysis retry policy.
type Config struct {
	Workers        int    `toml:"workers"`
	ExtractTimeout string `toml:"extract_timeout"`
	AnalyzeTimeout string `toml:"analyze_timeout"`
	StorageTimeout string `toml:"storage_timeout"`
	MaxAttempts    int    `toml:"max_attempts"`
	RetryDelay     string `toml:"retry_delay"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Workers        string
	ExtractTimeout string
	AnalyzeTimeout string
	StorageTimeout string
	MaxAttempts    string
	RetryDelay     string
}

func (c *Config) ExtractTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ExtractTimeout)
	return d
}

func (c *Config) AnalyzeTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.AnalyzeTimeout)
	return d
}

func (c *Config) StorageTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.StorageTimeout)
	return d
}

func (c *Config) RetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryDelay)
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
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.ExtractTimeout != "" {
		c.ExtractTimeout = overlay.ExtractTimeout
	}
	if overlay.AnalyzeTimeout != "" {
		c.AnalyzeTimeout = overlay.AnalyzeTimeout
	}
	if overlay.StorageTimeout != "" {
		c.StorageTimeout = overlay.StorageTimeout
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.RetryDelay != "" {
		c.RetryDelay = overlay.RetryDelay
	}
}

func (c *Config) loadDefaults() {
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.ExtractTimeout == "" {
		c.ExtractTimeout = "2m"
	}
	if c.AnalyzeTimeout == "" {
		c.AnalyzeTimeout = "45s"
	}
	if c.StorageTimeout == "" {
		c.StorageTimeout = "30s"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 2
	}
	if c.RetryDelay == "" {
		c.RetryDelay = "1s"
	}
}

func (c *Config) loadEnv(env *Env) {
	setInt(&c.Workers, env.Workers)
	setString(&c.ExtractTimeout, env.ExtractTimeout)
	setString(&c.AnalyzeTimeout, env.AnalyzeTimeout)
	setString(&c.StorageTimeout, env.StorageTimeout)
	setInt(&c.MaxAttempts, env.MaxAttempts)
	setString(&c.RetryDelay, env.RetryDelay)
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

func setInt(dst *int, key string) {
	if v := lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	for name, v := range map[string]string{
		"extract_timeout": c.ExtractTimeout,
		"analyze_timeout": c.AnalyzeTimeout,
		"storage_timeout": c.StorageTimeout,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if d, err := time.ParseDuration(c.RetryDelay); err != nil || d < 0 {
		return fmt.Errorf("invalid retry_delay %q", c.RetryDelay)
	}
	return nil
}
