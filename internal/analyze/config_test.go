package analyze_test

import (
	"strings"
	"testing"

	"github.com/JaimeStill/scribe/internal/analyze"
)

func TestConfigDefaults(t *testing.T) {
	var cfg analyze.Config
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"provider", cfg.Provider, "openai"},
		{"model", cfg.Model, "gpt-4.1"},
		{"max_text_chars", cfg.MaxTextChars, 20000},
		{"temperature", cfg.TemperatureValue(), 0.2},
		{"openai.base_url", cfg.OpenAI.BaseURL, "https://api.openai.com/v1"},
		{"vertex.region", cfg.Vertex.Region, "us-central1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestConfigProviderModelDefault(t *testing.T) {
	t.Setenv("TEST_AI_PROVIDER", "vertex")
	t.Setenv("TEST_AI_PROJECT", "scribe-dev")

	var cfg analyze.Config
	err := cfg.Finalize(&analyze.Env{Provider: "TEST_AI_PROVIDER", VertexProject: "TEST_AI_PROJECT"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.Model != "gemini-1.5-pro" {
		t.Errorf("model = %q, want provider default", cfg.Model)
	}
}

func TestConfigZeroTemperatureRespected(t *testing.T) {
	t.Setenv("TEST_AI_TEMP", "0")

	var cfg analyze.Config
	if err := cfg.Finalize(&analyze.Env{Temperature: "TEST_AI_TEMP"}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.TemperatureValue() != 0 {
		t.Errorf("temperature = %v, want 0", cfg.TemperatureValue())
	}
}

func TestConfigValidation(t *testing.T) {
	hot := 3.0
	tests := []struct {
		name    string
		cfg     analyze.Config
		wantErr string
	}{
		{"unknown provider", analyze.Config{Provider: "llama"}, "unknown analyzer provider"},
		{"azure without deployment", analyze.Config{Provider: "azure", Azure: analyze.AzureConfig{Endpoint: "https://x"}}, "azure.endpoint and azure.deployment required"},
		{"vertex without project", analyze.Config{Provider: "vertex"}, "vertex.project required"},
		{"temperature out of range", analyze.Config{Temperature: &hot}, "temperature must be within"},
		{"negative max chars", analyze.Config{MaxTextChars: -1}, "max_text_chars must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	zero := 0.0
	base := analyze.Config{Provider: "openai", Model: "gpt-4.1", MaxTextChars: 20000}
	base.Merge(&analyze.Config{Model: "gpt-4o-mini", Temperature: &zero})

	if base.Provider != "openai" || base.Model != "gpt-4o-mini" || base.MaxTextChars != 20000 {
		t.Errorf("merged = %+v", base)
	}
	if base.TemperatureValue() != 0 {
		t.Errorf("temperature = %v, want 0", base.TemperatureValue())
	}
}
