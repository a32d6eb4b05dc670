package analyze

import (
	"fmt"
	"os"
	"strconv"
)

const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderVertex = "vertex"
)

var defaultModels = map[string]string{
	ProviderOpenAI: "gpt-4.1",
	ProviderAzure:  "gpt-4.1",
	ProviderVertex: "gemini-1.5-pro",
}

// Config selects an LLM provider and holds its parameters.
type Config struct {
	Provider     string       `toml:"provider"`
	Model        string       `toml:"model"`
	MaxTextChars int          `toml:"max_text_chars"`
	Temperature  *float64     `toml:"temperature"`
	OpenAI       OpenAIConfig `toml:"openai"`
	Azure        AzureConfig  `toml:"azure"`
	Vertex       VertexConfig `toml:"vertex"`
}

type OpenAIConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// AzureConfig targets an Azure OpenAI deployment. Without an API key the
// default Azure credential chain supplies an Entra ID token.
type AzureConfig struct {
	Endpoint   string `toml:"endpoint"`
	Deployment string `toml:"deployment"`
	APIVersion string `toml:"api_version"`
	APIKey     string `toml:"api_key"`
}

type VertexConfig struct {
	Project string `toml:"project"`
	Region  string `toml:"region"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider        string
	Model           string
	MaxTextChars    string
	Temperature     string
	OpenAIBaseURL   string
	OpenAIAPIKey    string
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string
	AzureAPIKey     string
	VertexProject   string
	VertexRegion    string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	if c.Model == "" {
		c.Model = defaultModels[c.Provider]
	}
	return c.validate()
}

// TemperatureValue returns the configured sampling temperature.
func (c *Config) TemperatureValue() float64 {
	if c.Temperature == nil {
		return 0.2
	}
	return *c.Temperature
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Provider, overlay.Provider)
	set(&c.Model, overlay.Model)
	if overlay.MaxTextChars > 0 {
		c.MaxTextChars = overlay.MaxTextChars
	}
	if overlay.Temperature != nil {
		t := *overlay.Temperature
		c.Temperature = &t
	}
	set(&c.OpenAI.BaseURL, overlay.OpenAI.BaseURL)
	set(&c.OpenAI.APIKey, overlay.OpenAI.APIKey)
	set(&c.Azure.Endpoint, overlay.Azure.Endpoint)
	set(&c.Azure.Deployment, overlay.Azure.Deployment)
	set(&c.Azure.APIVersion, overlay.Azure.APIVersion)
	set(&c.Azure.APIKey, overlay.Azure.APIKey)
	set(&c.Vertex.Project, overlay.Vertex.Project)
	set(&c.Vertex.Region, overlay.Vertex.Region)
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.MaxTextChars == 0 {
		c.MaxTextChars = 20000
	}
	if c.Temperature == nil {
		t := 0.2
		c.Temperature = &t
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.Azure.APIVersion == "" {
		c.Azure.APIVersion = "2024-10-21"
	}
	if c.Vertex.Region == "" {
		c.Vertex.Region = "us-central1"
	}
}

func (c *Config) loadEnv(env *Env) {
	get := func(key string) string {
		if key == "" {
			return ""
		}
		return os.Getenv(key)
	}
	set := func(dst *string, key string) {
		if v := get(key); v != "" {
			*dst = v
		}
	}

	set(&c.Provider, env.Provider)
	set(&c.Model, env.Model)
	if v := get(env.MaxTextChars); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTextChars = n
		}
	}
	if v := get(env.Temperature); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Temperature = &f
		}
	}
	set(&c.OpenAI.BaseURL, env.OpenAIBaseURL)
	set(&c.OpenAI.APIKey, env.OpenAIAPIKey)
	set(&c.Azure.Endpoint, env.AzureEndpoint)
	set(&c.Azure.Deployment, env.AzureDeployment)
	set(&c.Azure.APIVersion, env.AzureAPIVersion)
	set(&c.Azure.APIKey, env.AzureAPIKey)
	set(&c.Vertex.Project, env.VertexProject)
	set(&c.Vertex.Region, env.VertexRegion)
}

func (c *Config) validate() error {
	if c.MaxTextChars <= 0 {
		return fmt.Errorf("max_text_chars must be positive")
	}
	if t := c.TemperatureValue(); t < 0 || t > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", t)
	}

	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAI.BaseURL == "" {
			return fmt.Errorf("openai.base_url required")
		}
	case ProviderAzure:
		if c.Azure.Endpoint == "" || c.Azure.Deployment == "" {
			return fmt.Errorf("azure.endpoint and azure.deployment required")
		}
	case ProviderVertex:
		if c.Vertex.Project == "" {
			return fmt.Errorf("vertex.project required")
		}
	default:
		return fmt.Errorf("unknown analyzer provider %q", c.Provider)
	}
	return nil
}
