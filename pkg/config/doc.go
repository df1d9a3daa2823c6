// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	SHELF_HOST="0.0.0.0"
//	SHELF_PORT="8080"
//	SHELF_HEALTH_PORT="9090"
//	SHELF_READ_TIMEOUT="15s"
//	SHELF_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	SHELF_POSTGRES_URL="postgres://localhost/shelf"
//	SHELF_POSTGRES_REPLICA_URLS="postgres://replica1/shelf,postgres://replica2/shelf"
//	SHELF_POSTGRES_MAX_CONNS="25"
//
// Permission cache settings:
//
//	SHELF_CACHE_ENABLED="true"
//	SHELF_CACHE_TTL="5m"
//	SHELF_REDIS_URL="redis://localhost:6379/0"
//	SHELF_REDIS_POOL_SIZE="10"
//
// Recycle bin retention:
//
//	SHELF_RETENTION_WINDOW="720h"     # soft deleted items restorable for 30 days
//	SHELF_RETENTION_SCHEDULE="0 3 * * *"
//
// Observability settings:
//
//	SHELF_LOG_LEVEL="info"  # debug, info, warn, error
//	SHELF_METRICS_ENABLED="true"
//	SHELF_OTEL_ENABLED="true"
//	SHELF_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/storage/postgres: Uses database and Redis configuration
//   - pkg/observability: Uses observability configuration
package config
