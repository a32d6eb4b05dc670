package config

import (
	"github.com/JaimeStill/scribe/internal/analyze"
	"github.com/JaimeStill/scribe/internal/auth"
	"github.com/JaimeStill/scribe/internal/pipeline"
	"github.com/JaimeStill/scribe/internal/ratelimit"
	"github.com/JaimeStill/scribe/internal/stream"
	"github.com/JaimeStill/scribe/pkg/database"
	"github.com/JaimeStill/scribe/pkg/middleware"
	"github.com/JaimeStill/scribe/pkg/openapi"
	"github.com/JaimeStill/scribe/pkg/pagination"
	"github.com/JaimeStill/scribe/pkg/storage"
)

var databaseEnv = &database.Env{
	Host:            "SCRIBE_DB_HOST",
	Port:            "SCRIBE_DB_PORT",
	Name:            "SCRIBE_DB_NAME",
	User:            "SCRIBE_DB_USER",
	Password:        "SCRIBE_DB_PASSWORD",
	SSLMode:         "SCRIBE_DB_SSL_MODE",
	MaxOpenConns:    "SCRIBE_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "SCRIBE_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "SCRIBE_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "SCRIBE_DB_CONN_TIMEOUT",
	AutoMigrate:     "SCRIBE_DB_AUTO_MIGRATE",
}

var storageEnv = &storage.Env{
	Provider:              "SCRIBE_STORAGE_PROVIDER",
	AzureContainerName:    "SCRIBE_STORAGE_AZURE_CONTAINER_NAME",
	AzureConnectionString: "SCRIBE_STORAGE_AZURE_CONNECTION_STRING",
	AzureAccountURL:       "SCRIBE_STORAGE_AZURE_ACCOUNT_URL",
	S3Bucket:              "SCRIBE_STORAGE_S3_BUCKET",
	S3Region:              "SCRIBE_STORAGE_S3_REGION",
	S3Endpoint:            "SCRIBE_STORAGE_S3_ENDPOINT",
	S3PathStyle:           "SCRIBE_STORAGE_S3_PATH_STYLE",
	GCSBucket:             "SCRIBE_STORAGE_GCS_BUCKET",
	GCSEndpoint:           "SCRIBE_STORAGE_GCS_ENDPOINT",
	LocalRoot:             "SCRIBE_STORAGE_LOCAL_ROOT",
}

var corsEnv = &middleware.CORSEnv{
	Enabled:          "SCRIBE_CORS_ENABLED",
	Origins:          "SCRIBE_CORS_ORIGINS",
	AllowedMethods:   "SCRIBE_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "SCRIBE_CORS_ALLOWED_HEADERS",
	AllowCredentials: "SCRIBE_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "SCRIBE_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "SCRIBE_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "SCRIBE_PAGINATION_MAX_PAGE_SIZE",
}

var openAPIEnv = &openapi.ConfigEnv{
	Title:       "SCRIBE_OPENAPI_TITLE",
	Description: "SCRIBE_OPENAPI_DESCRIPTION",
}

var authEnv = &auth.Env{
	Mode:          "SCRIBE_AUTH_MODE",
	Secret:        "SCRIBE_AUTH_SECRET",
	Issuer:        "SCRIBE_AUTH_ISSUER",
	TokenTTL:      "SCRIBE_AUTH_TOKEN_TTL",
	OIDCIssuerURL: "SCRIBE_AUTH_OIDC_ISSUER_URL",
	OIDCClientID:  "SCRIBE_AUTH_OIDC_CLIENT_ID",
}

var pipelineEnv = &pipeline.Env{
	Workers:        "SCRIBE_PIPELINE_WORKERS",
	ExtractTimeout: "SCRIBE_PIPELINE_EXTRACT_TIMEOUT",
	AnalyzeTimeout: "SCRIBE_PIPELINE_ANALYZE_TIMEOUT",
	StorageTimeout: "SCRIBE_PIPELINE_STORAGE_TIMEOUT",
	MaxAttempts:    "SCRIBE_PIPELINE_MAX_ATTEMPTS",
	RetryDelay:     "SCRIBE_PIPELINE_RETRY_DELAY",
}

var streamEnv = &stream.Env{
	BufferSize:        "SCRIBE_STREAM_BUFFER_SIZE",
	HeartbeatInterval: "SCRIBE_STREAM_HEARTBEAT_INTERVAL",
	ReplayLimit:       "SCRIBE_STREAM_REPLAY_LIMIT",
	WriteTimeout:      "SCRIBE_STREAM_WRITE_TIMEOUT",
	AllowedOrigins:    "SCRIBE_STREAM_ALLOWED_ORIGINS",
}

var analyzerEnv = &analyze.Env{
	Provider:        "SCRIBE_ANALYZER_PROVIDER",
	Model:           "SCRIBE_ANALYZER_MODEL",
	MaxTextChars:    "SCRIBE_ANALYZER_MAX_TEXT_CHARS",
	Temperature:     "SCRIBE_ANALYZER_TEMPERATURE",
	OpenAIBaseURL:   "SCRIBE_ANALYZER_OPENAI_BASE_URL",
	OpenAIAPIKey:    "SCRIBE_ANALYZER_OPENAI_API_KEY",
	AzureEndpoint:   "SCRIBE_ANALYZER_AZURE_ENDPOINT",
	AzureDeployment: "SCRIBE_ANALYZER_AZURE_DEPLOYMENT",
	AzureAPIVersion: "SCRIBE_ANALYZER_AZURE_API_VERSION",
	AzureAPIKey:     "SCRIBE_ANALYZER_AZURE_API_KEY",
	VertexProject:   "SCRIBE_ANALYZER_VERTEX_PROJECT",
	VertexRegion:    "SCRIBE_ANALYZER_VERTEX_REGION",
}

var rateLimitEnv = &ratelimit.Env{
	Enabled:         "SCRIBE_RATE_LIMIT_ENABLED",
	RedisAddr:       "SCRIBE_RATE_LIMIT_REDIS_ADDR",
	RedisPassword:   "SCRIBE_RATE_LIMIT_REDIS_PASSWORD",
	RedisDB:         "SCRIBE_RATE_LIMIT_REDIS_DB",
	Capacity:        "SCRIBE_RATE_LIMIT_CAPACITY",
	RefillPerSecond: "SCRIBE_RATE_LIMIT_REFILL_PER_SECOND",
	TTL:             "SCRIBE_RATE_LIMIT_TTL",
	FailClosed:      "SCRIBE_RATE_LIMIT_FAIL_CLOSED",
}
