package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Media  MediaConfig
	Search SearchConfig
	Cache  CacheConfig
	Clone  CloneConfig
	Ingest IngestConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	APIPrefix       string        `envconfig:"API_PREFIX" default:"/api"`
	Env             string        `envconfig:"APP_ENV" default:"production"`
	PublicBaseURL   string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"300"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
}

// IsDevelopment reports whether error details may be exposed to clients
func (c *ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// DBConfig holds database configuration
type DBConfig struct {
	Driver       string        `envconfig:"DB_DRIVER" default:"mysql"`
	Host         string        `envconfig:"DB_HOST" default:"localhost"`
	Port         int           `envconfig:"DB_PORT" default:"3306"`
	User         string        `envconfig:"DB_USER" default:"root"`
	Password     string        `envconfig:"DB_PASSWORD"`
	Database     string        `envconfig:"DB_NAME" default:"sermons"`
	MaxConns     int           `envconfig:"DB_MAX_CONNS" default:"10"`
	QueryTimeout time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"5s"`
	FixturePath  string        `envconfig:"DB_FIXTURE_PATH"`
}

// MediaConfig holds upstream media origin configuration
type MediaConfig struct {
	Backend       string        `envconfig:"MEDIA_BACKEND" default:"static"`
	BaseURL       string        `envconfig:"MEDIA_BASE_URL"`
	S3Endpoint    string        `envconfig:"MEDIA_S3_ENDPOINT"`
	S3Bucket      string        `envconfig:"MEDIA_S3_BUCKET"`
	S3Region      string        `envconfig:"MEDIA_S3_REGION" default:"us-east-1"`
	S3AccessKey   string        `envconfig:"MEDIA_S3_ACCESS_KEY"`
	S3SecretKey   string        `envconfig:"MEDIA_S3_SECRET_KEY"`
	S3PresignTTL  time.Duration `envconfig:"MEDIA_S3_PRESIGN_TTL" default:"1h"`
	S3PathStyle   bool          `envconfig:"MEDIA_S3_PATH_STYLE" default:"true"`
	DialTimeout   time.Duration `envconfig:"MEDIA_UPSTREAM_DIAL_TIMEOUT" default:"5s"`
	HeaderTimeout time.Duration `envconfig:"MEDIA_UPSTREAM_HEADER_TIMEOUT" default:"15s"`
}

// SearchConfig holds the content-search service configuration
type SearchConfig struct {
	ServiceURL string        `envconfig:"SEARCH_SERVICE_URL"`
	Timeout    time.Duration `envconfig:"SEARCH_TIMEOUT" default:"10s"`
}

// CacheConfig holds query-result cache configuration
type CacheConfig struct {
	Backend       string        `envconfig:"CACHE_BACKEND" default:"memory"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"60s"`
}

// CloneConfig holds configuration of the mirror export endpoints
type CloneConfig struct {
	APIKey string `envconfig:"CLONE_API_KEY"`
}

// IngestConfig holds configuration of the origin directory crawler
type IngestConfig struct {
	Enabled         bool          `envconfig:"INGEST_ENABLED" default:"false"`
	RootURL         string        `envconfig:"INGEST_ROOT_URL"`
	Interval        time.Duration `envconfig:"INGEST_INTERVAL" default:"6h"`
	RateLimit       float64       `envconfig:"INGEST_RATE_LIMIT" default:"2"`
	Timeout         time.Duration `envconfig:"INGEST_TIMEOUT" default:"30s"`
	MaxRetries      int           `envconfig:"INGEST_MAX_RETRIES" default:"3"`
	MaxDepth        int           `envconfig:"INGEST_MAX_DEPTH" default:"3"`
	DefaultCategory string        `envconfig:"INGEST_DEFAULT_CATEGORY" default:"sermons"`
	DefaultLanguage string        `envconfig:"INGEST_DEFAULT_LANGUAGE"`
}

// DSN returns the MySQL data source name
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Media); err != nil {
		return nil, fmt.Errorf("failed to load media config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Search); err != nil {
		return nil, fmt.Errorf("failed to load search config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Cache); err != nil {
		return nil, fmt.Errorf("failed to load cache config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Clone); err != nil {
		return nil, fmt.Errorf("failed to load clone config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Ingest); err != nil {
		return nil, fmt.Errorf("failed to load ingest config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
// Optional collaborators (search service, clone key) are not checked here;
// their absence is reported per request.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql":
		if c.DB.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case "memory":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or memory")
	}
	if c.DB.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.DB.QueryTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT must be positive")
	}
	switch c.Media.Backend {
	case "static", "s3":
	default:
		return fmt.Errorf("MEDIA_BACKEND must be static or s3")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory, redis or none")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Server.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Server.APIPrefix != "" && !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("API_PREFIX must start with /")
	}
	if c.Ingest.Enabled {
		if c.Ingest.RootURL == "" {
			return fmt.Errorf("INGEST_ROOT_URL is required when ingest is enabled")
		}
		if c.Ingest.RateLimit <= 0 {
			return fmt.Errorf("INGEST_RATE_LIMIT must be positive")
		}
	}
	return nil
}
