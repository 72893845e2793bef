// Package config loads application configuration from environment
// variables, with flags in the commands overriding where it makes sense.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	BigQuery BigQueryConfig
	Sync     SyncConfig
	Ingest   IngestConfig
	Notion   NotionConfig
	Archive  ArchiveConfig
	Enrich   EnrichConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
}

// StoreConfig holds local durable store configuration.
type StoreConfig struct {
	Path string
}

// BigQueryConfig holds the remote document store configuration.
type BigQueryConfig struct {
	ProjectID string
	DatasetID string
	TableID   string
}

// SyncConfig holds retry and drain configuration.
type SyncConfig struct {
	OwnerID       string
	MaxAttempts   int
	BaseDelay     time.Duration
	DrainInterval time.Duration
	ProbeAddr     string
}

// IngestConfig holds the message queue configuration.
type IngestConfig struct {
	BufferSize int
	Workers    int
}

// NotionConfig holds the Notion mirror configuration.
type NotionConfig struct {
	Token      string
	DatabaseID string
}

// ArchiveConfig holds the GCS export configuration.
type ArchiveConfig struct {
	Bucket string
}

// EnrichConfig holds the category-suggestion configuration.
type EnrichConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Store: StoreConfig{
			Path: getEnv("LEDGER_DB_PATH", "ledger.db"),
		},
		BigQuery: BigQueryConfig{
			ProjectID: getEnv("BQ_PROJECT_ID", ""),
			DatasetID: getEnv("BQ_DATASET_ID", "ledger"),
			TableID:   getEnv("BQ_TABLE_ID", "transactions"),
		},
		Sync: SyncConfig{
			OwnerID:       getEnv("LEDGER_OWNER_ID", "default"),
			MaxAttempts:   getEnvAsInt("SYNC_MAX_ATTEMPTS", 3),
			BaseDelay:     getEnvAsDuration("SYNC_BASE_DELAY", 500*time.Millisecond),
			DrainInterval: getEnvAsDuration("SYNC_DRAIN_INTERVAL", time.Minute),
			ProbeAddr:     getEnv("SYNC_PROBE_ADDR", "bigquery.googleapis.com:443"),
		},
		Ingest: IngestConfig{
			BufferSize: getEnvAsInt("INGEST_BUFFER_SIZE", 100),
			Workers:    getEnvAsInt("INGEST_WORKERS", 5),
		},
		Notion: NotionConfig{
			Token:      getEnv("NOTION_TOKEN", ""),
			DatabaseID: getEnv("NOTION_DATABASE_ID", ""),
		},
		Archive: ArchiveConfig{
			Bucket: getEnv("GCS_BUCKET", ""),
		},
		Enrich: EnrichConfig{
			Enabled: getEnvAsBool("ENRICH_ENABLED", false),
		},
	}
}

// Validate checks the settings every deployment needs.
func (c *Config) Validate() error {
	if c.BigQuery.ProjectID == "" {
		return fmt.Errorf("config: BQ_PROJECT_ID is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("config: LEDGER_DB_PATH is required")
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("config: SYNC_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
