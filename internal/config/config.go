// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dvloznov/budget-companion/internal/llm"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendBigQuery = "bigquery"
)

// Config is the configuration shared by every binary.
type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend     string
	SQLiteDBPath    string
	BigQueryProject string
	BigQueryDataset string

	// Language model
	GeminiAPIKey          string
	ModelName             string
	CategorizeConcurrency int

	// Archive
	GCSBucket string
	GCSPrefix string

	// AMQP; empty URL selects the in-process queue
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Jobs
	Workers       int
	QueueBuffer   int
	JobMaxRetries int

	// Notion
	NotionToken string
	NotionDBID  string

	UserID   string
	LogLevel string
}

// Load reads a .env file when present and builds the Config from the
// environment. Unset or unparsable values fall back to defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8000"),

		DataBackend:     strings.ToLower(getEnv("DATA_BACKEND", BackendSQLite)),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/budget.db"),
		BigQueryProject: getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "budget_companion"),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		ModelName:             getEnv("MODEL_NAME", llm.DefaultModelName),
		CategorizeConcurrency: getEnvInt("CATEGORIZE_CONCURRENCY", 1),

		GCSBucket: getEnv("GCS_BUCKET", ""),
		GCSPrefix: getEnv("GCS_PREFIX", "uploads"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budget"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "process_file"),

		Workers:       getEnvInt("WORKERS", 2),
		QueueBuffer:   getEnvInt("QUEUE_BUFFER", 100),
		JobMaxRetries: getEnvInt("JOB_MAX_RETRIES", 0),

		NotionToken: getEnv("NOTION_TOKEN", ""),
		NotionDBID:  getEnv("NOTION_DB_ID", ""),

		UserID:   getEnv("USER_ID", "001"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// UseAMQP reports whether jobs go through RabbitMQ.
func (c *Config) UseAMQP() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendBigQuery:
		if c.BigQueryProject == "" {
			errors = append(errors, "BIGQUERY_PROJECT is required when using bigquery backend")
		}
		if c.BigQueryDataset == "" {
			errors = append(errors, "BIGQUERY_DATASET is required when using bigquery backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendSQLite, BackendBigQuery))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.CategorizeConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid categorize concurrency %d: must be at least 1", c.CategorizeConcurrency))
	}
	if c.Workers < 1 {
		errors = append(errors, fmt.Sprintf("invalid worker count %d: must be at least 1", c.Workers))
	}
	if c.QueueBuffer < 0 {
		errors = append(errors, fmt.Sprintf("invalid queue buffer %d: must not be negative", c.QueueBuffer))
	}
	if c.JobMaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("invalid job max retries %d: must not be negative", c.JobMaxRetries))
	}
	if c.UserID == "" {
		errors = append(errors, "USER_ID cannot be empty")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// RequireGemini reports a missing model key.
func (c *Config) RequireGemini() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

// RequireNotion reports missing Notion credentials.
func (c *Config) RequireNotion() error {
	var missing []string
	if c.NotionToken == "" {
		missing = append(missing, "NOTION_TOKEN")
	}
	if c.NotionDBID == "" {
		missing = append(missing, "NOTION_DB_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing Notion configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
