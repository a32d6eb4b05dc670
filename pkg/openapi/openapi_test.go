package openapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/scribe/pkg/openapi"
)

func TestNewSpec(t *testing.T) {
	spec := openapi.NewSpec("Test API", "1.0.0")

	if spec.OpenAPI != "3.1.0" {
		t.Errorf("openapi version: got %s, want 3.1.0", spec.OpenAPI)
	}
	if spec.Info.Title != "Test API" || spec.Info.Version != "1.0.0" {
		t.Errorf("info: got %+v", spec.Info)
	}
	if spec.Components == nil || spec.Paths == nil {
		t.Fatal("components and paths should be initialized")
	}

	spec.AddServer("http://localhost:8080")
	spec.SetDescription("A test API")
	if len(spec.Servers) != 1 || spec.Servers[0].URL != "http://localhost:8080" {
		t.Errorf("servers: got %+v", spec.Servers)
	}
	if spec.Info.Description != "A test API" {
		t.Errorf("description: got %s", spec.Info.Description)
	}
}

func TestRefs(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"schema", openapi.SchemaRef("Document").Ref, "#/components/schemas/Document"},
		{"response", openapi.ResponseRef("NotFound").Ref, "#/components/responses/NotFound"},
		{"request body", openapi.RequestBodyJSON("Login", true).Content["application/json"].Schema.Ref, "#/components/schemas/Login"},
		{"response json", openapi.ResponseJSON("ok", "Status").Content["application/json"].Schema.Ref, "#/components/schemas/Status"},
		{"array items", openapi.ArrayOf("Document").Items.Ref, "#/components/schemas/Document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestParams(t *testing.T) {
	p := openapi.PathParam("id", "Document ID")
	if p.In != "path" || !p.Required {
		t.Errorf("path param: got in=%s required=%v", p.In, p.Required)
	}
	if p.Schema.Type != "string" || p.Schema.Format != "uuid" {
		t.Errorf("path schema: got type=%s format=%s", p.Schema.Type, p.Schema.Format)
	}

	q := openapi.QueryParam("search", "string", "Search query", false)
	if q.In != "query" || q.Required || q.Schema.Type != "string" {
		t.Errorf("query param: got %+v", q)
	}
}

func TestNewComponentsDefaults(t *testing.T) {
	c := openapi.NewComponents()

	for _, name := range []string{"Error", "PageRequest"} {
		if _, ok := c.Schemas[name]; !ok {
			t.Errorf("missing default schema: %s", name)
		}
	}

	for _, name := range []string{"BadRequest", "Unauthorized", "NotFound", "Conflict", "TooLarge", "TooManyRequests"} {
		r, ok := c.Responses[name]
		if !ok {
			t.Errorf("missing default response: %s", name)
			continue
		}
		if r.Content["application/json"].Schema.Ref != "#/components/schemas/Error" {
			t.Errorf("%s: should reference the Error schema", name)
		}
	}
}

func TestAddComponents(t *testing.T) {
	c := openapi.NewComponents()
	c.AddSchemas(map[string]*openapi.Schema{"Document": {Type: "object"}})
	c.AddResponses(map[string]*openapi.Response{"Gone": {Description: "gone"}})

	if _, ok := c.Schemas["Document"]; !ok {
		t.Error("Document schema not added")
	}
	if _, ok := c.Schemas["PageRequest"]; !ok {
		t.Error("default PageRequest schema should still exist")
	}
	if _, ok := c.Responses["Gone"]; !ok {
		t.Error("Gone response not added")
	}
}

func TestAddOperation(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	spec.AddOperation(http.MethodGet, "/documents", &openapi.Operation{Summary: "list"})
	spec.AddOperation(http.MethodPost, "/documents", &openapi.Operation{Summary: "upload"})

	item := spec.Paths["/documents"]
	if item == nil || item.Get == nil || item.Post == nil {
		t.Fatalf("path item: got %+v", item)
	}

	t.Run("duplicate panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		spec.AddOperation(http.MethodGet, "/documents", &openapi.Operation{})
	})

	t.Run("unknown method panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		spec.AddOperation(http.MethodPatch, "/documents", &openapi.Operation{})
	})
}

func TestBearerAuth(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	spec.UseBearerAuth()
	spec.AddOperation(http.MethodPost, "/auth/login", &openapi.Operation{Security: openapi.Public()})

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var parsed struct {
		Security   []map[string][]string                             `json:"security"`
		Paths      map[string]map[string]map[string]json.RawMessage `json:"paths"`
		Components struct {
			SecuritySchemes map[string]openapi.SecurityScheme `json:"securitySchemes"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(parsed.Security) != 1 {
		t.Errorf("security: got %v", parsed.Security)
	}
	if sec, ok := parsed.Paths["/auth/login"]["post"]["security"]; !ok || string(sec) != "[]" {
		t.Errorf("login security: got %s, want []", sec)
	}
	if s := parsed.Components.SecuritySchemes["bearer"]; s.Scheme != "bearer" || s.BearerFormat != "JWT" {
		t.Errorf("bearer scheme: got %+v", s)
	}
}

func TestServeSpec(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	rec := httptest.NewRecorder()
	openapi.ServeSpec(data)(rec, httptest.NewRequest("GET", "/openapi.json", nil))

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content-type: got %s", ct)
	}

	body, _ := io.ReadAll(res.Body)
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("body unmarshal failed: %v", err)
	}
	if parsed["openapi"] != "3.1.0" {
		t.Errorf("openapi: got %v", parsed["openapi"])
	}
}

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := openapi.Config{}
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if cfg.Title != "Scribe API" {
			t.Errorf("title: got %s, want Scribe API", cfg.Title)
		}
		if cfg.Description == "" {
			t.Error("description should default")
		}
		if !cfg.IsEnabled() {
			t.Error("should be enabled by default")
		}
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("TEST_TITLE", "Custom API")
		t.Setenv("TEST_DESC", "Custom desc")

		cfg := openapi.Config{}
		if err := cfg.Finalize(&openapi.ConfigEnv{Title: "TEST_TITLE", Description: "TEST_DESC"}); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if cfg.Title != "Custom API" || cfg.Description != "Custom desc" {
			t.Errorf("got %+v", cfg)
		}
	})

	t.Run("merge", func(t *testing.T) {
		off := false
		base := openapi.Config{Title: "Base"}
		base.Merge(&openapi.Config{Title: "Overlay", Enabled: &off})

		if base.Title != "Overlay" {
			t.Errorf("title: got %s, want Overlay", base.Title)
		}
		if base.IsEnabled() {
			t.Error("overlay should disable")
		}
	})
}
