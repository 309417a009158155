// Package config loads application configuration from command-line flags,
// environment variables and a .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/consistency"
	"github.com/listenupapp/catalog-server/internal/logger"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Auth    AuthConfig
	Catalog CatalogConfig
	Search  SearchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string // badger or sqlite
	Path    string // data directory
}

// BadgerDir is the badger database directory.
func (s StorageConfig) BadgerDir() string { return filepath.Join(s.Path, "badger") }

// SQLiteFile is the sqlite database file.
func (s StorageConfig) SQLiteFile() string { return filepath.Join(s.Path, "catalog.db") }

// SearchDir is the bleve index directory.
func (s StorageConfig) SearchDir() string { return filepath.Join(s.Path, "search.bleve") }

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// AuthConfig holds token configuration.
type AuthConfig struct {
	// AccessTokenKey is the 32-byte PASETO key. When AUTH_TOKEN_KEY is unset it
	// stays nil and the key file in the data directory is used instead.
	AccessTokenKey       []byte
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// CatalogConfig tunes the consistency of derived data.
type CatalogConfig struct {
	RatingPolicy       consistency.RatingPolicy
	RecentReviewsCap   int
	PersistRepairs     bool
	PropagationTimeout time.Duration
}

// SearchConfig controls the full-text book index.
type SearchConfig struct {
	Enabled bool
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load resolves every setting with precedence:
//  1. Command-line flags
//  2. Environment variables
//  3. .env file
//  4. Defaults
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("catalog-server", flag.ContinueOnError)
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	backend := fs.String("storage-backend", "", "Storage backend (badger, sqlite)")
	dataPath := fs.String("data-path", "", "Directory for databases and keys")
	port := fs.String("port", "", "Server port (default: 8080)")
	ratingPolicy := fs.String("rating-policy", "", "Average rating maintenance (full, incremental)")
	envFile := fs.String("env-file", ".env", "Path to .env file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// godotenv never overrides variables already set, which gives env > .env.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := &Config{
		App:    AppConfig{Environment: getConfigValue(*env, "ENV", "development")},
		Logger: LoggerConfig{Level: getConfigValue(*logLevel, "LOG_LEVEL", "info")},
		Storage: StorageConfig{
			Backend: strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendBadger)),
			Path:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "*")),
		},
		Catalog: CatalogConfig{
			RatingPolicy:   consistency.RatingPolicy(strings.ToLower(getConfigValue(*ratingPolicy, "CATALOG_RATING_POLICY", string(consistency.RatingFull)))),
			PersistRepairs: getBoolConfigValue("CATALOG_PERSIST_REPAIRS", false),
		},
		Search: SearchConfig{Enabled: getBoolConfigValue("SEARCH_ENABLED", true)},
	}

	var err error
	if cfg.Catalog.RecentReviewsCap, err = getIntConfigValue("CATALOG_RECENT_REVIEWS_CAP", consistency.DefaultRecentReviewsCap); err != nil {
		return nil, err
	}

	durations := []struct {
		dst *time.Duration
		env string
		def string
	}{
		{&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Auth.AccessTokenDuration, "ACCESS_TOKEN_DURATION", "24h"},
		{&cfg.Auth.RefreshTokenDuration, "REFRESH_TOKEN_DURATION", "168h"},
		{&cfg.Catalog.PropagationTimeout, "CATALOG_PROPAGATION_TIMEOUT", consistency.DefaultPropagationTimeout.String()},
	}
	for _, d := range durations {
		if *d.dst, err = getDurationConfigValue(d.env, d.def); err != nil {
			return nil, err
		}
	}

	if keyHex := os.Getenv("AUTH_TOKEN_KEY"); keyHex != "" {
		if cfg.Auth.AccessTokenKey, err = auth.ParseKey(keyHex); err != nil {
			return nil, fmt.Errorf("invalid AUTH_TOKEN_KEY: %w", err)
		}
	}

	if cfg.Storage.Path, err = expandDataPath(cfg.Storage.Path); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	if !logger.ValidLevel(c.Logger.Level) {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Backend {
	case BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("invalid storage backend: %q (must be badger or sqlite)", c.Storage.Backend)
	}
	if c.Storage.Path == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if !c.Catalog.RatingPolicy.Valid() {
		return fmt.Errorf("invalid rating policy: %q (must be full or incremental)", c.Catalog.RatingPolicy)
	}
	if c.Catalog.RecentReviewsCap <= 0 {
		return fmt.Errorf("recent reviews cap must be positive, got %d", c.Catalog.RecentReviewsCap)
	}
	if c.Catalog.PropagationTimeout <= 0 {
		return errors.New("propagation timeout must be positive")
	}

	if c.Auth.AccessTokenDuration <= 0 || c.Auth.RefreshTokenDuration <= 0 {
		return errors.New("token durations must be positive")
	}
	return nil
}

// expandDataPath expands ~ and makes the path absolute.
// An empty path defaults to ~/.catalog-server.
func expandDataPath(path string) (string, error) {
	if path == "" || path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		switch {
		case path == "":
			path = filepath.Join(home, ".catalog-server")
		case path == "~":
			path = home
		default:
			path = filepath.Join(home, path[2:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (any case) as true.
func getBoolConfigValue(envKey string, defaultValue bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(envKey)))
	if v == "" {
		return defaultValue
	}
	return v == "true" || v == "1" || v == "yes"
}

func getIntConfigValue(envKey string, defaultValue int) (int, error) {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	return n, nil
}

func getDurationConfigValue(envKey, defaultValue string) (time.Duration, error) {
	v := getConfigValue("", envKey, defaultValue)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
