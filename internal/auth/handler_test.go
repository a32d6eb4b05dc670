package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/scribe/pkg/routes"
)

func TestLoginAndMeRoutes(t *testing.T) {
	sys := localSystem(t)
	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler().Routes())

	login := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("POST", "/auth/login", strings.NewReader(body)))
		return rec
	}

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"malformed", "{", http.StatusBadRequest},
		{"missing password", `{"username":"user1"}`, http.StatusBadRequest},
		{"wrong password", `{"username":"user1","password":"nope"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := login(tt.body); rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}

	rec := login(`{"username":"user1","password":"password123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body)
	}
	var token Token
	json.NewDecoder(rec.Body).Decode(&token)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"sub":"user1"`) {
		t.Errorf("me = %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("me without token = %d, want 401", rec.Code)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"short secret", Config{Secret: "short"}, true},
		{"bad ttl", Config{TokenTTL: "forever"}, true},
		{"user without hash", Config{Users: []User{{Username: "ada"}}}, true},
		{"oidc without issuer", Config{Mode: ModeOIDC, OIDC: OIDCConfig{ClientID: "x"}}, true},
		{"oidc without client", Config{Mode: ModeOIDC, OIDC: OIDCConfig{IssuerURL: "https://id.example"}}, true},
		{"unknown mode", Config{Mode: "saml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("TEST_AUTH_MODE", "oidc")
	t.Setenv("TEST_AUTH_ISSUER_URL", "https://id.example")
	t.Setenv("TEST_AUTH_CLIENT_ID", "scribe")

	var c Config
	err := c.Finalize(&Env{Mode: "TEST_AUTH_MODE", OIDCIssuerURL: "TEST_AUTH_ISSUER_URL", OIDCClientID: "TEST_AUTH_CLIENT_ID"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if c.Mode != ModeOIDC || c.OIDC.ClientID != "scribe" {
		t.Errorf("config = %+v", c)
	}
}
