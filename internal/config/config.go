package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"coursemind"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"coursemind"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	// Collaborator endpoints: the media API serves metadata and caption
	// tracks, the transcriber and extractor are HTTP sidecars.
	MediaAPIBaseURL        string `envconfig:"MEDIA_API_BASE_URL" default:"https://api.vimeo.com"`
	MediaAPIToken          string `envconfig:"MEDIA_API_TOKEN"`
	TranscriberURL         string `envconfig:"TRANSCRIBER_URL" default:"http://transcriber:8000"`
	ExtractorURL           string `envconfig:"EXTRACTOR_URL" default:"http://extractor:8000"`
	ProviderTimeoutSeconds int    `envconfig:"PROVIDER_TIMEOUT_SECONDS" default:"120"`

	// Ingestion
	ChunkSize           int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap        int `envconfig:"CHUNK_OVERLAP" default:"200"`
	EmbedBatchSize      int `envconfig:"EMBED_BATCH_SIZE" default:"100"`
	StorageBatchSize    int `envconfig:"STORAGE_BATCH_SIZE" default:"25"`
	EmbedTimeoutSeconds int `envconfig:"EMBED_TIMEOUT_SECONDS" default:"60"`
	WorkerPoolSize      int `envconfig:"WORKER_POOL_SIZE" default:"8"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.ChunkOverlap <= 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must satisfy 0 < overlap < CHUNK_SIZE", ErrMissingRequired)
	}
	return nil
}
