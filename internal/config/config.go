// Package config loads adoptsync settings from environment variables.
// Every field carries its env name and default in struct tags; Load fills
// the tree and Validate rejects a bad combination before anything starts.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Session  SessionConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Archive  ArchiveConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout covers reading the whole request, upload included (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 90s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"90s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is how long in-flight imports may take to drain (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 75s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"75s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies pending migrations at startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// ImportConfig holds workbook import settings.
type ImportConfig struct {
	// MaxFileSize is the largest accepted workbook in bytes (default: 20MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the number of dry runs and commits allowed at once (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// CommitTimeout bounds the commit transaction (default: 60s)
	CommitTimeout time.Duration `env:"IMPORT_COMMIT_TIMEOUT" default:"60s"`
}

// SessionConfig holds dry-run session cache settings.
type SessionConfig struct {
	// Backend is where sessions live: memory or redis (default: memory)
	Backend string `env:"SESSION_BACKEND" default:"memory"`

	// TTL is how long a dry run stays committable (default: 5m)
	TTL time.Duration `env:"SESSION_TTL" default:"5m"`

	// ReapInterval is how often expired in-memory sessions are dropped (default: 1m)
	ReapInterval time.Duration `env:"SESSION_REAP_INTERVAL" default:"1m"`

	// MaxSessions caps live in-memory sessions (default: 100)
	MaxSessions int `env:"SESSION_MAX" default:"100"`

	// RedisURL is the redis:// URL used when Backend is redis
	RedisURL string `env:"REDIS_URL"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for dry-run and commit endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys is a comma-separated list of accepted X-API-Key values
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey rejects requests without a valid key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ArchiveConfig holds workbook archiving and audit retention settings.
type ArchiveConfig struct {
	// Bucket is the S3 bucket receiving imported and exported workbooks.
	// Archiving is off when empty.
	Bucket string `env:"ARCHIVE_S3_BUCKET"`

	// Region is the bucket region; the SDK default chain applies when empty
	Region string `env:"ARCHIVE_S3_REGION"`

	// Prefix is prepended to every object key (default: adoptsync)
	Prefix string `env:"ARCHIVE_S3_PREFIX" default:"adoptsync"`

	// Endpoint overrides the S3 endpoint, for MinIO and similar
	Endpoint string `env:"ARCHIVE_S3_ENDPOINT"`

	// PathStyle addresses the bucket in the path instead of the host (default: false)
	PathStyle bool `env:"ARCHIVE_S3_PATH_STYLE" default:"false"`

	// AuditRetentionDays is how long audit rows are kept (default: 365)
	AuditRetentionDays int `env:"AUDIT_RETENTION_DAYS" default:"365"`

	// PurgeBatchSize is rows deleted per purge statement (default: 5000)
	PurgeBatchSize int `env:"AUDIT_PURGE_BATCH_SIZE" default:"5000"`

	// PurgeInterval is how often the retention job runs (default: 24h)
	PurgeInterval time.Duration `env:"AUDIT_PURGE_INTERVAL" default:"24h"`
}

// Enabled reports whether workbooks are archived to S3.
func (c *ArchiveConfig) Enabled() bool {
	return c.Bucket != ""
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enabled mounts the metrics endpoint (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is where metrics are served (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
