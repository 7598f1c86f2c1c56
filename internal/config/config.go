// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backend names accepted by STORAGE_BACKEND.
const (
	BackendS3    = "s3"
	BackendAzure = "azure"
	BackendGCS   = "gcs"
)

// Archive-key strategies accepted by ARCHIVE_STRATEGY.
const (
	ArchiveByTable       = "table"
	ArchiveByPrefixToken = "prefix-token"
)

// IdentityConfig holds the identity-service exchange parameters used to
// obtain time-boxed storage credentials.
type IdentityConfig struct {
	Endpoint   string        `yaml:"endpoint"`    // identity-service URL
	Username   string        `yaml:"username"`    // fixed identity
	Password   string        `yaml:"password"`    // secret reference, resolved by the environment
	Account    string        `yaml:"account"`     // account identifier
	Role       string        `yaml:"role"`        // role name assumed for storage access
	CABundle   string        `yaml:"ca_bundle"`   // trust-anchor bundle path (optional)
	ExpirySkew time.Duration `yaml:"expiry_skew"` // refresh buffer before expiry (default 5m)
}

// Validate checks that the identity configuration is usable.
func (i *IdentityConfig) Validate() error {
	if i.Endpoint == "" {
		return fmt.Errorf("IDENTITY_ENDPOINT must be set")
	}
	if i.Username == "" || i.Password == "" {
		return fmt.Errorf("IDENTITY_USERNAME and IDENTITY_PASSWORD must both be set")
	}
	return nil
}

// Config holds the configuration for the ingestion loader.
type Config struct {
	// Catalog
	CatalogName   string `yaml:"catalog"`        // attached catalog name
	SchemaName    string `yaml:"schema"`         // target schema (default "bronze")
	MetastorePath string `yaml:"metastore_path"` // SQLite DuckLake metastore path

	// Landing / archive areas
	LandingPrefix string `yaml:"landing_prefix"` // where unprocessed files arrive
	ArchivePrefix string `yaml:"archive_prefix"` // where processed files are relocated

	// Storage backend: "s3" (default), "azure", or "gcs".
	StorageBackend string `yaml:"storage_backend"`
	S3Endpoint     string `yaml:"s3_endpoint"` // S3-compatible endpoint host
	S3Region       string `yaml:"s3_region"`
	AzureAccount   string `yaml:"azure_account"`
	GCSKeyFilePath string `yaml:"gcs_key_file"`

	// Archive key derivation: "table" (default) or "prefix-token".
	ArchiveStrategy string `yaml:"archive_strategy"`

	// Run history store
	RunDBPath string `yaml:"run_db_path"` // SQLite run-history file

	// Serve mode
	ListenAddr string `yaml:"listen_addr"` // status API listen address (default ":8080")
	Schedule   string `yaml:"schedule"`    // cron spec for repeated runs (empty = one run per start)

	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default "info")
	Env      string `yaml:"env"`       // "development" (default) or "production"

	Identity IdentityConfig `yaml:"identity"`

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `yaml:"-"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the loader is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load builds the configuration from an optional YAML file overlaid with
// environment variables. Environment values take precedence over the file.
func Load(yamlPath string) (*Config, error) {
	cfg := &Config{}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath) //nolint:gosec // path is caller-controlled
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", yamlPath, err)
		}
	}

	applyEnv(cfg)
	return finalize(cfg)
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	applyEnv(cfg)
	return finalize(cfg)
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&cfg.CatalogName, "CATALOG_NAME")
	setString(&cfg.SchemaName, "SCHEMA_NAME")
	setString(&cfg.MetastorePath, "METASTORE_PATH")
	setString(&cfg.LandingPrefix, "LANDING_PREFIX")
	setString(&cfg.ArchivePrefix, "ARCHIVE_PREFIX")
	setString(&cfg.StorageBackend, "STORAGE_BACKEND")
	setString(&cfg.S3Endpoint, "S3_ENDPOINT")
	setString(&cfg.S3Region, "S3_REGION")
	setString(&cfg.AzureAccount, "AZURE_ACCOUNT")
	setString(&cfg.GCSKeyFilePath, "GCS_KEY_FILE")
	setString(&cfg.ArchiveStrategy, "ARCHIVE_STRATEGY")
	setString(&cfg.RunDBPath, "RUN_DB_PATH")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.Schedule, "RUN_SCHEDULE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Env, "ENV")

	setString(&cfg.Identity.Endpoint, "IDENTITY_ENDPOINT")
	setString(&cfg.Identity.Username, "IDENTITY_USERNAME")
	setString(&cfg.Identity.Password, "IDENTITY_PASSWORD")
	setString(&cfg.Identity.Account, "IDENTITY_ACCOUNT")
	setString(&cfg.Identity.Role, "IDENTITY_ROLE")
	setString(&cfg.Identity.CABundle, "IDENTITY_CA_BUNDLE")
	if v := os.Getenv("CREDENTIAL_EXPIRY_SKEW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Identity.ExpirySkew = d
		}
	}
}

func finalize(cfg *Config) (*Config, error) {
	// Defaults
	if cfg.SchemaName == "" {
		cfg.SchemaName = "bronze"
	}
	if cfg.CatalogName == "" {
		cfg.CatalogName = "lake"
	}
	if cfg.MetastorePath == "" {
		cfg.MetastorePath = "ducklake_meta.sqlite"
	}
	if cfg.RunDBPath == "" {
		cfg.RunDBPath = "loader_runs.sqlite"
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendS3
	}
	if cfg.ArchiveStrategy == "" {
		cfg.ArchiveStrategy = ArchiveByTable
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Identity.ExpirySkew == 0 {
		cfg.Identity.ExpirySkew = 5 * time.Minute
	}

	// Required fields
	if cfg.LandingPrefix == "" {
		return nil, fmt.Errorf("LANDING_PREFIX must be set")
	}
	if cfg.ArchivePrefix == "" {
		return nil, fmt.Errorf("ARCHIVE_PREFIX must be set")
	}
	if err := cfg.Identity.Validate(); err != nil {
		return nil, err
	}

	switch cfg.StorageBackend {
	case BackendS3, BackendAzure, BackendGCS:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: must be s3, azure, or gcs", cfg.StorageBackend)
	}
	switch cfg.ArchiveStrategy {
	case ArchiveByTable, ArchiveByPrefixToken:
	default:
		return nil, fmt.Errorf("invalid ARCHIVE_STRATEGY %q: must be table or prefix-token", cfg.ArchiveStrategy)
	}

	if cfg.StorageBackend == BackendS3 && cfg.S3Region == "" {
		cfg.Warnings = append(cfg.Warnings, "S3_REGION not set, using us-east-1")
		cfg.S3Region = "us-east-1"
	}
	if cfg.Identity.CABundle == "" {
		cfg.Warnings = append(cfg.Warnings, "IDENTITY_CA_BUNDLE not set, using system trust anchors")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.Identity.CABundle == "" {
			return nil, fmt.Errorf("IDENTITY_CA_BUNDLE must be set in production (ENV=production)")
		}
		if !strings.HasPrefix(cfg.Identity.Endpoint, "https://") {
			return nil, fmt.Errorf("IDENTITY_ENDPOINT must use https in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
