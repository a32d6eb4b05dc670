package auth

import (
	"fmt"
	"os"
	"time"
)

const (
	ModeLocal = "local"
	ModeOIDC  = "oidc"
)

// Config selects how bearer tokens are issued and verified.
type Config struct {
	Mode     string     `toml:"mode"`
	Secret   string     `toml:"secret"`
	Issuer   string     `toml:"issuer"`
	TokenTTL string     `toml:"token_ttl"`
	Users    []User     `toml:"users"`
	OIDC     OIDCConfig `toml:"oidc"`
}

// User is a local account. PasswordHash is a bcrypt hash.
type User struct {
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
	Name         string `toml:"name"`
	Email        string `toml:"email"`
}

// OIDCConfig identifies the provider whose ID tokens are accepted.
type OIDCConfig struct {
	IssuerURL string `toml:"issuer_url"`
	ClientID  string `toml:"client_id"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Mode          string
	Secret        string
	Issuer        string
	TokenTTL      string
	OIDCIssuerURL string
	OIDCClientID  string
}

func (c *Config) TokenTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TokenTTL)
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
	if overlay.Mode != "" {
		c.Mode = overlay.Mode
	}
	if overlay.Secret != "" {
		c.Secret = overlay.Secret
	}
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.TokenTTL != "" {
		c.TokenTTL = overlay.TokenTTL
	}
	if overlay.Users != nil {
		c.Users = overlay.Users
	}
	if overlay.OIDC.IssuerURL != "" {
		c.OIDC.IssuerURL = overlay.OIDC.IssuerURL
	}
	if overlay.OIDC.ClientID != "" {
		c.OIDC.ClientID = overlay.OIDC.ClientID
	}
}

func (c *Config) loadDefaults() {
	if c.Mode == "" {
		c.Mode = ModeLocal
	}
	if c.Issuer == "" {
		c.Issuer = "scribe"
	}
	if c.TokenTTL == "" {
		c.TokenTTL = "60m"
	}
}

func (c *Config) loadEnv(env *Env) {
	setString(&c.Mode, env.Mode)
	setString(&c.Secret, env.Secret)
	setString(&c.Issuer, env.Issuer)
	setString(&c.TokenTTL, env.TokenTTL)
	setString(&c.OIDC.IssuerURL, env.OIDCIssuerURL)
	setString(&c.OIDC.ClientID, env.OIDCClientID)
}

func setString(dst *string, key string) {
	if key == "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeLocal:
		if d, err := time.ParseDuration(c.TokenTTL); err != nil || d <= 0 {
			return fmt.Errorf("invalid token_ttl %q", c.TokenTTL)
		}
		if c.Secret != "" && len(c.Secret) < 16 {
			return fmt.Errorf("secret must be at least 16 bytes")
		}
		for i, u := range c.Users {
			if u.Username == "" || u.PasswordHash == "" {
				return fmt.Errorf("users[%d]: username and password_hash required", i)
			}
		}
	case ModeOIDC:
		if c.OIDC.IssuerURL == "" {
			return fmt.Errorf("oidc.issuer_url required")
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("oidc.client_id required")
		}
	default:
		return fmt.Errorf("unsupported mode %q", c.Mode)
	}
	return nil
}
