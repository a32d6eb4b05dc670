package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// localIssuer signs and verifies HS256 tokens for configured users.
type localIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	users  map[string]User
	now    func() time.Time
}

func newLocalIssuer(secret []byte, issuer string, ttl time.Duration, users []User) *localIssuer {
	l := &localIssuer{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		users:  make(map[string]User, len(users)),
		now:    time.Now,
	}
	for _, u := range users {
		l.users[u.Username] = u
	}
	return l
}

func (l *localIssuer) Login(_ context.Context, username, password string) (Token, error) {
	u, ok := l.users[username]
	if !ok {
		// Unknown users still pay for one comparison.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}
	return l.issue(u)
}

func (l *localIssuer) issue(u User) (Token, error) {
	now := l.now()
	c := claims{
		Name:  u.Name,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			Issuer:    l.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(l.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int(l.ttl.Seconds()),
	}, nil
}

func (l *localIssuer) Verify(_ context.Context, raw string) (Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return l.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(l.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(l.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Principal{}, ErrExpiredToken
	case err != nil:
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case c.Subject == "":
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Principal{Subject: c.Subject, Name: c.Name, Email: c.Email}, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("scribe"), bcrypt.DefaultCost)

func randomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	return b, nil
}
