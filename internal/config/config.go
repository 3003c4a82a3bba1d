// Package config loads service configuration.
//
// Sources, lowest precedence first: the built-in defaults, an optional
// YAML file (--config or SFS_CONFIG), a .env file, and the process
// environment (SFS_*). Command-line flags are applied by the caller on
// top of the loaded value. Validate reports every problem at once.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MemoryDatabaseURL selects the in-process store instead of PostgreSQL.
const MemoryDatabaseURL = "memory://"

const (
	StorageLocal = "local"
	StorageMinIO = "minio"
)

// Config is the complete service configuration.
type Config struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`

	// JWTSecret signs bearer credentials. At least 32 characters.
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	StorageDriver string `yaml:"storage_driver"`
	StorageDir    string `yaml:"storage_dir"`
	S3Endpoint    string `yaml:"s3_endpoint"`
	S3AccessKey   string `yaml:"s3_access_key"`
	S3SecretKey   string `yaml:"s3_secret_key"`
	S3Bucket      string `yaml:"s3_bucket"`

	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`
	Env       string `yaml:"env"`
}

func Default() *Config {
	return &Config{
		Addr:           ":8080",
		SessionTTL:     7 * 24 * time.Hour,
		StorageDriver:  StorageLocal,
		StorageDir:     "./data",
		MaxUploadBytes: 50 << 20,
		LogFormat:      "text",
		LogLevel:       "info",
		Env:            "development",
	}
}

// UsesMemoryStore reports whether the in-process store is selected.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == MemoryDatabaseURL
}

// Load builds a Config from the YAML file at path (if non-empty, else
// SFS_CONFIG), the .env file (missing is fine) and the environment.
// It does not validate.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("SFS_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("SFS_ADDR", &c.Addr)
	str("SFS_DATABASE_URL", &c.DatabaseURL)
	str("SFS_JWT_SECRET", &c.JWTSecret)
	str("SFS_STORAGE_DRIVER", &c.StorageDriver)
	str("SFS_STORAGE_DIR", &c.StorageDir)
	str("SFS_S3_ENDPOINT", &c.S3Endpoint)
	str("SFS_S3_ACCESS_KEY", &c.S3AccessKey)
	str("SFS_S3_SECRET_KEY", &c.S3SecretKey)
	str("SFS_S3_BUCKET", &c.S3Bucket)
	str("SFS_LOG_FORMAT", &c.LogFormat)
	str("SFS_LOG_LEVEL", &c.LogLevel)
	str("SFS_ENV", &c.Env)

	var result *multierror.Error
	if v, ok := lookup("SFS_SESSION_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("SFS_SESSION_TTL: %w", err))
		} else {
			c.SessionTTL = d
		}
	}
	if v, ok := lookup("SFS_MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("SFS_MAX_UPLOAD_BYTES: %w", err))
		} else {
			c.MaxUploadBytes = n
		}
	}
	return result.ErrorOrNil()
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate checks every field and returns all problems together.
func (c *Config) Validate() error {
	var result *multierror.Error
	fail := func(field, format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%s: %s", field, fmt.Sprintf(format, args...)))
	}

	if c.Addr == "" {
		fail("addr", "required")
	} else if i := strings.LastIndex(c.Addr, ":"); i < 0 {
		fail("addr", "must be host:port or :port")
	} else if port, err := strconv.Atoi(c.Addr[i+1:]); err != nil || port < 1 || port > 65535 {
		fail("addr", "port must be between 1 and 65535")
	}

	switch {
	case c.DatabaseURL == "":
		fail("database_url", "required")
	case c.UsesMemoryStore():
	case !strings.HasPrefix(c.DatabaseURL, "postgres://") && !strings.HasPrefix(c.DatabaseURL, "postgresql://"):
		fail("database_url", "must be a PostgreSQL URL or %s", MemoryDatabaseURL)
	}

	if len(c.JWTSecret) < 32 {
		fail("jwt_secret", "must be at least 32 characters long (got %d)", len(c.JWTSecret))
	}
	if c.SessionTTL <= 0 {
		fail("session_ttl", "must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		fail("max_upload_bytes", "must be positive")
	}

	switch c.StorageDriver {
	case StorageLocal:
		if c.StorageDir == "" {
			fail("storage_dir", "required for the local driver")
		}
	case StorageMinIO:
		for _, f := range []struct{ name, value string }{
			{"s3_endpoint", c.S3Endpoint},
			{"s3_access_key", c.S3AccessKey},
			{"s3_secret_key", c.S3SecretKey},
			{"s3_bucket", c.S3Bucket},
		} {
			if f.value == "" {
				fail(f.name, "required for the minio driver")
			}
		}
		if strings.Contains(c.S3Endpoint, "://") {
			if u, err := url.Parse(c.S3Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				fail("s3_endpoint", "URL must use http or https scheme")
			}
		}
	default:
		fail("storage_driver", "must be one of: %s, %s (got: %s)", StorageLocal, StorageMinIO, c.StorageDriver)
	}

	if !oneOf(c.LogFormat, "text", "json") {
		fail("log_format", "must be one of: text, json (got: %s)", c.LogFormat)
	}
	if !oneOf(c.LogLevel, "debug", "info", "warn", "error") {
		fail("log_level", "must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	if !oneOf(c.Env, "development", "staging", "production") {
		fail("env", "must be one of: development, staging, production (got: %s)", c.Env)
	}
	if c.Env == "production" && c.UsesMemoryStore() {
		fail("database_url", "%s is not allowed in production", MemoryDatabaseURL)
	}

	return result.ErrorOrNil()
}
