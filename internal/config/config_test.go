package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	c := Default()
	c.DatabaseURL = "postgres://u:p@localhost:5432/sfs?sslmode=disable"
	c.JWTSecret = testSecret
	return c
}

func TestValidate_Defaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	c := Default()
	c.JWTSecret = "short"
	c.LogLevel = "verbose"
	c.StorageDriver = "ftp"

	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, field := range []string{"database_url", "jwt_secret", "log_level", "storage_driver"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error does not mention %s: %v", field, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"memory store", func(c *Config) { c.DatabaseURL = MemoryDatabaseURL }, ""},
		{"mysql url", func(c *Config) { c.DatabaseURL = "mysql://x" }, "database_url"},
		{"bad port", func(c *Config) { c.Addr = ":99999" }, "addr"},
		{"no port", func(c *Config) { c.Addr = "localhost" }, "addr"},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }, "session_ttl"},
		{"zero upload limit", func(c *Config) { c.MaxUploadBytes = 0 }, "max_upload_bytes"},
		{"minio incomplete", func(c *Config) { c.StorageDriver = StorageMinIO; c.S3Endpoint = "minio:9000" }, "s3_bucket"},
		{"minio bad scheme", func(c *Config) {
			c.StorageDriver = StorageMinIO
			c.S3Endpoint = "ftp://minio:9000"
			c.S3AccessKey, c.S3SecretKey, c.S3Bucket = "a", "b", "c"
		}, "s3_endpoint"},
		{"minio complete", func(c *Config) {
			c.StorageDriver = StorageMinIO
			c.S3Endpoint = "http://minio:9000"
			c.S3AccessKey, c.S3SecretKey, c.S3Bucket = "a", "b", "c"
		}, ""},
		{"bad env", func(c *Config) { c.Env = "qa" }, "env"},
		{"memory in production", func(c *Config) { c.Env = "production"; c.DatabaseURL = MemoryDatabaseURL }, "not allowed in production"},
		{"json logs", func(c *Config) { c.LogFormat = "json" }, ""},
		{"xml logs", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
addr: ":9000"
database_url: "postgres://file@localhost/sfs"
session_ttl: 1h
log_level: debug
`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SFS_LOG_LEVEL=warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SFS_ADDR", ":7000")
	t.Setenv("SFS_LOG_LEVEL", "error")

	cfg, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("Addr = %q, want env value", cfg.Addr)
	}
	if cfg.DatabaseURL != "postgres://file@localhost/sfs" {
		t.Errorf("DatabaseURL = %q, want file value", cfg.DatabaseURL)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v, want 1h", cfg.SessionTTL)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want env over .env", cfg.LogLevel)
	}
	if cfg.StorageDriver != StorageLocal {
		t.Errorf("StorageDriver = %q, want default", cfg.StorageDriver)
	}
}

func TestLoad_DotEnvFillsUnsetVariables(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SFS_S3_BUCKET=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Register for cleanup, then unset so godotenv may fill it.
	t.Setenv("SFS_S3_BUCKET", "")
	os.Unsetenv("SFS_S3_BUCKET")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.S3Bucket != "from-dotenv" {
		t.Errorf("S3Bucket = %q, want .env value", cfg.S3Bucket)
	}
}

func TestLoad_MissingFilesTolerated(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SFS_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.MaxUploadBytes != 50<<20 || cfg.SessionTTL != 168*time.Hour {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_UnknownYAMLField(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	p := filepath.Join(dir, "c.yaml")
	if err := os.WriteFile(p, []byte("adr: \":1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestApplyEnv_ParseErrors(t *testing.T) {
	env := map[string]string{
		"SFS_SESSION_TTL":      "a week",
		"SFS_MAX_UPLOAD_BYTES": "lots",
	}
	c := Default()
	err := c.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if err == nil {
		t.Fatal("expected parse errors")
	}
	for _, key := range []string{"SFS_SESSION_TTL", "SFS_MAX_UPLOAD_BYTES"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}
