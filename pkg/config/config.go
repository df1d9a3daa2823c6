package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/shelf/pkg/observability"
	"github.com/platinummonkey/shelf/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database postgres.ConnectionConfig

	// Redis configuration (permission cache)
	Redis RedisConfig

	// Recycle bin retention
	Retention RetentionConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RedisConfig holds permission cache settings. The cache is optional;
// resolution falls back to the database when disabled.
type RedisConfig struct {
	Enabled bool
	TTL     time.Duration
	Client  postgres.RedisConfig
}

// RetentionConfig controls hard deletion of recycled items
type RetentionConfig struct {
	// Window is how long soft deleted items stay restorable
	Window time.Duration
	// Schedule is a cron expression for the sweeper
	Schedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Retention:     loadRetentionConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SHELF_HOST", "0.0.0.0"),
		Port:            getEnv("SHELF_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SHELF_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SHELF_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SHELF_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHELF_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("SHELF_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() postgres.ConnectionConfig {
	return postgres.ConnectionConfig{
		PrimaryURL:  getEnv("SHELF_POSTGRES_URL", ""),
		ReplicaURLs: postgres.ParseReplicaURLs(getEnv("SHELF_POSTGRES_REPLICA_URLS", "")),
		MaxConns:    getEnvInt("SHELF_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("SHELF_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("SHELF_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("SHELF_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("SHELF_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

// loadRedisConfig loads permission cache configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled: getEnvBool("SHELF_CACHE_ENABLED", false),
		TTL:     getEnvDuration("SHELF_CACHE_TTL", 5*time.Minute),
		Client: postgres.RedisConfig{
			URL:        getEnv("SHELF_REDIS_URL", "redis://localhost:6379/0"),
			Password:   getEnv("SHELF_REDIS_PASSWORD", ""),
			DB:         getEnvInt("SHELF_REDIS_DB", -1),
			MaxRetries: getEnvInt("SHELF_REDIS_MAX_RETRIES", 3),
			PoolSize:   getEnvInt("SHELF_REDIS_POOL_SIZE", 10),
		},
	}
}

// loadRetentionConfig loads recycle bin retention from environment
func loadRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Window:   getEnvDuration("SHELF_RETENTION_WINDOW", 30*24*time.Hour),
		Schedule: getEnv("SHELF_RETENTION_SCHEDULE", "0 3 * * *"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("SHELF_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("SHELF_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("SHELF_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("SHELF_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("SHELF_OTEL_SERVICE_NAME", "shelf-api"),
		OTelServiceVersion: getEnv("SHELF_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("SHELF_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Redis.Enabled && c.Redis.Client.URL == "" {
		return fmt.Errorf("redis URL is required when the permission cache is enabled")
	}

	if c.Retention.Window <= 0 {
		return fmt.Errorf("retention window must be positive")
	}
	if c.Retention.Schedule == "" {
		return fmt.Errorf("retention schedule is required")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
