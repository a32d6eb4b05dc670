package storage

import (
	"fmt"
	"os"
	"strconv"
)

// Provider names accepted in Config.Provider.
const (
	ProviderAzure = "azure"
	ProviderS3    = "s3"
	ProviderGCS   = "gcs"
	ProviderLocal = "local"
)

// Config selects a blob storage provider and holds its connection parameters.
type Config struct {
	Provider string      `toml:"provider"`
	Azure    AzureConfig `toml:"azure"`
	S3       S3Config    `toml:"s3"`
	GCS      GCSConfig   `toml:"gcs"`
	Local    LocalConfig `toml:"local"`
}

// AzureConfig authenticates with a connection string, or with an account URL
// and the default Azure credential chain when no connection string is set.
type AzureConfig struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
}

// S3Config targets AWS S3 or any S3-compatible endpoint.
type S3Config struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	PathStyle bool   `toml:"path_style"`
}

type GCSConfig struct {
	Bucket   string `toml:"bucket"`
	Endpoint string `toml:"endpoint"`
}

type LocalConfig struct {
	Root string `toml:"root"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider              string
	AzureContainerName    string
	AzureConnectionString string
	AzureAccountURL       string
	S3Bucket              string
	S3Region              string
	S3Endpoint            string
	S3PathStyle           string
	GCSBucket             string
	GCSEndpoint           string
	LocalRoot             string
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
	mergeString(&c.Provider, overlay.Provider)
	mergeString(&c.Azure.ContainerName, overlay.Azure.ContainerName)
	mergeString(&c.Azure.ConnectionString, overlay.Azure.ConnectionString)
	mergeString(&c.Azure.AccountURL, overlay.Azure.AccountURL)
	mergeString(&c.S3.Bucket, overlay.S3.Bucket)
	mergeString(&c.S3.Region, overlay.S3.Region)
	mergeString(&c.S3.Endpoint, overlay.S3.Endpoint)
	mergeString(&c.GCS.Bucket, overlay.GCS.Bucket)
	mergeString(&c.GCS.Endpoint, overlay.GCS.Endpoint)
	mergeString(&c.Local.Root, overlay.Local.Root)
	c.S3.PathStyle = c.S3.PathStyle || overlay.S3.PathStyle
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.Azure.ContainerName == "" {
		c.Azure.ContainerName = "documents"
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
	if c.Local.Root == "" {
		c.Local.Root = "data/uploads"
	}
}

func (c *Config) loadEnv(env *Env) {
	setString(&c.Provider, env.Provider)
	setString(&c.Azure.ContainerName, env.AzureContainerName)
	setString(&c.Azure.ConnectionString, env.AzureConnectionString)
	setString(&c.Azure.AccountURL, env.AzureAccountURL)
	setString(&c.S3.Bucket, env.S3Bucket)
	setString(&c.S3.Region, env.S3Region)
	setString(&c.S3.Endpoint, env.S3Endpoint)
	setString(&c.GCS.Bucket, env.GCSBucket)
	setString(&c.GCS.Endpoint, env.GCSEndpoint)
	setString(&c.Local.Root, env.LocalRoot)

	if env.S3PathStyle != "" {
		if v := os.Getenv(env.S3PathStyle); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.S3.PathStyle = b
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderAzure:
		if c.Azure.ContainerName == "" {
			return fmt.Errorf("azure.container_name required")
		}
		if c.Azure.ConnectionString == "" && c.Azure.AccountURL == "" {
			return fmt.Errorf("azure.connection_string or azure.account_url required")
		}
	case ProviderS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket required")
		}
	case ProviderGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("gcs.bucket required")
		}
	case ProviderLocal:
		if c.Local.Root == "" {
			return fmt.Errorf("local.root required")
		}
	default:
		return fmt.Errorf("unknown storage provider %q", c.Provider)
	}
	return nil
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setString(dst *string, key string) {
	if key == "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
