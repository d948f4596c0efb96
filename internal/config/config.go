// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Database    DatabaseConfig
	Storage     StorageConfig
	AWS         AWSConfig
	Redis       RedisConfig
	Log         LogConfig
	Moderation  ModerationConfig
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// StorageConfig describes where File.storage_path values are resolved.
// For the local backend Root is a filesystem directory, for S3 it is the
// key prefix inside the bucket.
type StorageConfig struct {
	Backend      string
	Root         string
	MaxFileSize  int64 // in bytes
	RetryRate    float64
	RetryBurst   int
	RetryBatch   int
	AllowedTypes []string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	Endpoint        string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Channel  string
}

type LogConfig struct {
	Level  string
	Format string
}

type ModerationConfig struct {
	// Telegram ids promoted to admin by the seed command.
	AdminExternalIDs []int64
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "supplymatch"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		Storage: StorageConfig{
			Backend:      getEnv("STORAGE_BACKEND", StorageBackendLocal),
			Root:         getEnv("STORAGE_ROOT", "./storage"),
			MaxFileSize:  int64(getEnvAsInt("STORAGE_MAX_FILE_SIZE_MB", 20)) * 1024 * 1024,
			RetryRate:    getEnvAsFloat("STORAGE_CLEANUP_RETRY_RATE", 5.0),
			RetryBurst:   getEnvAsInt("STORAGE_CLEANUP_RETRY_BURST", 1),
			RetryBatch:   getEnvAsInt("STORAGE_CLEANUP_RETRY_BATCH", 100),
			AllowedTypes: getEnvAsList("STORAGE_ALLOWED_TYPES", []string{".jpg", ".jpeg", ".png", ".mp4", ".pdf", ".doc", ".docx", ".xlsx"}),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_EVENTS_CHANNEL", "supplymatch:events"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Moderation: ModerationConfig{
			AdminExternalIDs: getEnvAsInt64List("ADMIN_IDS"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	switch c.Storage.Backend {
	case StorageBackendLocal:
		if strings.TrimSpace(c.Storage.Root) == "" {
			return fmt.Errorf("STORAGE_ROOT is required for the local storage backend")
		}
	case StorageBackendS3:
		if c.AWS.S3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Storage.RetryRate <= 0 {
		return fmt.Errorf("STORAGE_CLEANUP_RETRY_RATE must be positive")
	}

	return nil
}

func (r *RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, strings.ToLower(item))
		}
	}
	return items
}

// ADMIN_IDS is a comma separated list; malformed entries are skipped.
func getEnvAsInt64List(key string) []int64 {
	var ids []int64
	for _, item := range strings.Split(os.Getenv(key), ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if id, err := strconv.ParseInt(item, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
