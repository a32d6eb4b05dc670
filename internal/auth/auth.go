package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/JaimeStill/scribe/pkg/handlers"
)

// Verifier turns a raw bearer token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// System authenticates requests and, in local mode, issues tokens.
type System struct {
	verifier Verifier
	local    *localIssuer
	logger   *slog.Logger
}

// New builds the System for cfg.Mode. OIDC mode contacts the issuer for
// discovery, so ctx bounds that request.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*System, error) {
	logger = logger.With("system", "auth")

	switch cfg.Mode {
	case ModeOIDC:
		v, err := newOIDCVerifier(ctx, cfg.OIDC)
		if err != nil {
			return nil, err
		}
		logger.Info("verifying oidc tokens", "issuer", cfg.OIDC.IssuerURL)
		return &System{verifier: v, logger: logger}, nil

	case ModeLocal:
		secret := []byte(cfg.Secret)
		if len(secret) == 0 {
			s, err := randomSecret()
			if err != nil {
				return nil, err
			}
			secret = s
			logger.Warn("no auth secret configured; tokens will not survive a restart")
		}

		users := cfg.Users
		if len(users) == 0 {
			hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash default password: %w", err)
			}
			users = []User{{Username: DefaultUsername, PasswordHash: string(hash)}}
			logger.Warn("no users configured; using development credentials", "username", DefaultUsername)
		}

		l := newLocalIssuer(secret, cfg.Issuer, cfg.TokenTTLDuration(), users)
		return &System{verifier: l, local: l, logger: logger}, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}

// Development credentials used when local mode has no configured users.
const (
	DefaultUsername = "user1"
	DefaultPassword = "password123"
)

// Login exchanges credentials for a token. It fails with ErrLoginDisabled in OIDC mode.
func (s *System) Login(ctx context.Context, username, password string) (Token, error) {
	if s.local == nil {
		return Token{}, ErrLoginDisabled
	}
	return s.local.Login(ctx, username, password)
}

// Verify validates a raw token.
func (s *System) Verify(ctx context.Context, token string) (Principal, error) {
	return s.verifier.Verify(ctx, token)
}

// Handler returns the login and identity routes.
func (s *System) Handler() *Handler {
	return NewHandler(s, s.logger)
}

// Middleware rejects requests without a valid bearer token and stores the
// Principal on the request context. Browsers cannot set headers on
// EventSource or WebSocket requests, so the access_token query parameter is
// accepted as a fallback.
func (s *System) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearer(r)
			if err == nil {
				var p Principal
				if p, err = s.verifier.Verify(r.Context(), raw); err == nil {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
					return
				}
			}

			s.logger.Debug("request rejected", "path", r.URL.Path, "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="scribe"`)
			handlers.RespondError(w, s.logger, MapHTTPStatus(err), public(err))
		})
	}
}

// public drops verifier detail from errors returned to clients.
func public(err error) error {
	for _, e := range []error{ErrMissingToken, ErrExpiredToken, ErrInvalidToken} {
		if errors.Is(err, e) {
			return e
		}
	}
	return err
}

func bearer(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
		}
		return strings.TrimSpace(token), nil
	}
	if t := r.URL.Query().Get("access_token"); t != "" {
		return t, nil
	}
	return "", ErrMissingToken
}
