package stream

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls session buffering, heartbeats, replay and transports.
type Config struct {
	BufferSize        int      `toml:"buffer_size"`
	HeartbeatInterval string   `toml:"heartbeat_interval"`
	ReplayLimit       int      `toml:"replay_limit"`
	WriteTimeout      string   `toml:"write_timeout"`
	AllowedOrigins    []string `toml:"allowed_origins"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BufferSize        string
	HeartbeatInterval string
	ReplayLimit       string
	WriteTimeout      string
	AllowedOrigins    string
}

func (c *Config) HeartbeatDuration() time.Duration {
	d, _ := time.ParseDuration(c.HeartbeatInterval)
	return d
}

func (c *Config) WriteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
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
	if overlay.BufferSize != 0 {
		c.BufferSize = overlay.BufferSize
	}
	if overlay.HeartbeatInterval != "" {
		c.HeartbeatInterval = overlay.HeartbeatInterval
	}
	if overlay.ReplayLimit != 0 {
		c.ReplayLimit = overlay.ReplayLimit
	}
	if overlay.WriteTimeout != "" {
		c.WriteTimeout = overlay.WriteTimeout
	}
	if overlay.AllowedOrigins != nil {
		c.AllowedOrigins = overlay.AllowedOrigins
	}
}

func (c *Config) loadDefaults() {
	if c.BufferSize == 0 {
		c.BufferSize = 64
	}
	if c.HeartbeatInterval == "" {
		c.HeartbeatInterval = "15s"
	}
	if c.ReplayLimit == 0 {
		c.ReplayLimit = 50
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "10s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := lookup(env.BufferSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BufferSize = n
		}
	}
	if v := lookup(env.HeartbeatInterval); v != "" {
		c.HeartbeatInterval = v
	}
	if v := lookup(env.ReplayLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ReplayLimit = n
		}
	}
	if v := lookup(env.WriteTimeout); v != "" {
		c.WriteTimeout = v
	}
	if v := lookup(env.AllowedOrigins); v != "" {
		c.AllowedOrigins = nil
		for o := range strings.SplitSeq(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
}

func lookup(key string) string {
	if key == "" {
		return ""
	}
	return os.Getenv(key)
}

func (c *Config) validate() error {
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer_size must be at least 1")
	}
	if c.ReplayLimit < 0 {
		return fmt.Errorf("replay_limit must not be negative")
	}
	if d, err := time.ParseDuration(c.HeartbeatInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid heartbeat_interval %q", c.HeartbeatInterval)
	}
	if d, err := time.ParseDuration(c.WriteTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid write_timeout %q", c.WriteTimeout)
	}
	return nil
}
