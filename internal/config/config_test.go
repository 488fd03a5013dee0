package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_WithRequiredEnvVars(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test-password")
	os.Setenv("MEDIA_BASE_URL", "https://media.example.org/files")
	defer func() {
		os.Unsetenv("DB_PASSWORD")
		os.Unsetenv("MEDIA_BASE_URL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DB.Password != "test-password" {
		t.Errorf("DB.Password = %v, want %v", cfg.DB.Password, "test-password")
	}
	if cfg.Media.BaseURL != "https://media.example.org/files" {
		t.Errorf("Media.BaseURL = %v, want %v", cfg.Media.BaseURL, "https://media.example.org/files")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test-pass")
	defer os.Unsetenv("DB_PASSWORD")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Server defaults
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, 8080)
	}
	if cfg.Server.APIPrefix != "/api" {
		t.Errorf("Server.APIPrefix = %v, want %v", cfg.Server.APIPrefix, "/api")
	}
	if cfg.Server.RateLimitWindow != time.Minute {
		t.Errorf("Server.RateLimitWindow = %v, want %v", cfg.Server.RateLimitWindow, time.Minute)
	}
	if cfg.Server.IsDevelopment() {
		t.Error("Server.IsDevelopment() = true, want false by default")
	}

	// DB defaults
	if cfg.DB.Driver != "mysql" {
		t.Errorf("DB.Driver = %v, want %v", cfg.DB.Driver, "mysql")
	}
	if cfg.DB.Port != 3306 {
		t.Errorf("DB.Port = %v, want %v", cfg.DB.Port, 3306)
	}
	if cfg.DB.MaxConns != 10 {
		t.Errorf("DB.MaxConns = %v, want %v", cfg.DB.MaxConns, 10)
	}
	if cfg.DB.QueryTimeout != 5*time.Second {
		t.Errorf("DB.QueryTimeout = %v, want %v", cfg.DB.QueryTimeout, 5*time.Second)
	}

	// Media defaults
	if cfg.Media.Backend != "static" {
		t.Errorf("Media.Backend = %v, want %v", cfg.Media.Backend, "static")
	}
	if cfg.Media.HeaderTimeout != 15*time.Second {
		t.Errorf("Media.HeaderTimeout = %v, want %v", cfg.Media.HeaderTimeout, 15*time.Second)
	}

	// Optional collaborators stay unset
	if cfg.Search.ServiceURL != "" {
		t.Errorf("Search.ServiceURL = %v, want empty", cfg.Search.ServiceURL)
	}
	if cfg.Clone.APIKey != "" {
		t.Errorf("Clone.APIKey = %v, want empty", cfg.Clone.APIKey)
	}

	// Cache and ingest defaults
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %v, want %v", cfg.Cache.Backend, "memory")
	}
	if cfg.Ingest.Enabled {
		t.Error("Ingest.Enabled = true, want false")
	}
	if cfg.Ingest.Interval != 6*time.Hour {
		t.Errorf("Ingest.Interval = %v, want %v", cfg.Ingest.Interval, 6*time.Hour)
	}
}

func TestLoad_AllowedOriginsList(t *testing.T) {
	os.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	defer os.Unsetenv("CORS_ALLOWED_ORIGINS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
}

func validConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080, APIPrefix: "/api", RateLimitMax: 100, RateLimitWindow: time.Minute},
		DB:     DBConfig{Driver: "mysql", Password: "pass", MaxConns: 10, QueryTimeout: time.Second},
		Media:  MediaConfig{Backend: "static"},
		Cache:  CacheConfig{Backend: "memory"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing db password", mutate: func(c *Config) { c.DB.Password = "" }, wantErr: true},
		{name: "memory driver needs no password", mutate: func(c *Config) { c.DB.Driver = "memory"; c.DB.Password = "" }, wantErr: false},
		{name: "unknown driver", mutate: func(c *Config) { c.DB.Driver = "oracle" }, wantErr: true},
		{name: "invalid pool size", mutate: func(c *Config) { c.DB.MaxConns = 0 }, wantErr: true},
		{name: "invalid query timeout", mutate: func(c *Config) { c.DB.QueryTimeout = 0 }, wantErr: true},
		{name: "unknown media backend", mutate: func(c *Config) { c.Media.Backend = "ftp" }, wantErr: true},
		{name: "unknown cache backend", mutate: func(c *Config) { c.Cache.Backend = "memcached" }, wantErr: true},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "invalid rate limit", mutate: func(c *Config) { c.Server.RateLimitMax = 0 }, wantErr: true},
		{name: "prefix without slash", mutate: func(c *Config) { c.Server.APIPrefix = "api" }, wantErr: true},
		{name: "ingest without root", mutate: func(c *Config) { c.Ingest.Enabled = true; c.Ingest.RateLimit = 1 }, wantErr: true},
		{name: "ingest enabled", mutate: func(c *Config) {
			c.Ingest = IngestConfig{Enabled: true, RootURL: "https://media.example.org/", RateLimit: 1}
		}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDBConfig_DSN(t *testing.T) {
	cfg := DBConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "root",
		Password: "secret",
		Database: "testdb",
	}

	expected := "root:secret@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local"
	if got := cfg.DSN(); got != expected {
		t.Errorf("DSN() = %v, want %v", got, expected)
	}
}
