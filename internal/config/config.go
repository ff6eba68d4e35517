package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Attribution AttributionConfig `yaml:"attribution"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Storage     StorageConfig     `yaml:"storage"`
	Digest      DigestConfig      `yaml:"digest"`
	Worker      WorkerConfig      `yaml:"worker"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the optional Redis used for distributed locks.
// An empty URL falls back to Postgres advisory locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AttributionConfig holds engine defaults
type AttributionConfig struct {
	BaselineLookbackDays int `yaml:"baseline_lookback_days"`
	FanWindowHours       int `yaml:"fan_window_hours"`
	PerformanceDays      int `yaml:"performance_days"`
}

// IngestConfig holds CSV import settings
type IngestConfig struct {
	FanIDSalt      string `yaml:"fan_id_salt"`
	ArchiveEnabled bool   `yaml:"archive_enabled"`
}

// StorageConfig selects where raw imports are archived
type StorageConfig struct {
	Type       string `yaml:"type"` // "local" or "s3"
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // empty uses the default credential chain
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda use the task role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// DigestConfig holds the weekly recommendation e-mail settings
type DigestConfig struct {
	Enabled       bool   `yaml:"enabled"`
	FromEmail     string `yaml:"from_email"`
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	ReportDays    int    `yaml:"report_days"`
	IntervalHours int    `yaml:"interval_hours"`
}

// Interval returns the digest interval as a duration
func (c DigestConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	IntervalMinutes   int `yaml:"interval_minutes"`
	LockTTLSeconds    int `yaml:"lock_ttl_seconds"`
	MetricsListenPort int `yaml:"metrics_port"`
}

// Interval returns the fan attribution interval as a duration
func (c WorkerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// LockTTL returns the per-creator lock TTL as a duration
func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. It defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5
	}
	if cfg.Attribution.BaselineLookbackDays == 0 {
		cfg.Attribution.BaselineLookbackDays = 14
	}
	if cfg.Attribution.FanWindowHours == 0 {
		cfg.Attribution.FanWindowHours = 48
	}
	if cfg.Attribution.PerformanceDays == 0 {
		cfg.Attribution.PerformanceDays = 30
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data/imports"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Digest.Region == "" {
		cfg.Digest.Region = cfg.Storage.AWSRegion
	}
	if cfg.Digest.ReportDays == 0 {
		cfg.Digest.ReportDays = 30
	}
	if cfg.Digest.IntervalHours == 0 {
		cfg.Digest.IntervalHours = 24 * 7
	}
	if cfg.Worker.IntervalMinutes == 0 {
		cfg.Worker.IntervalMinutes = 60
	}
	if cfg.Worker.LockTTLSeconds == 0 {
		cfg.Worker.LockTTLSeconds = 300
	}
	if cfg.Worker.MetricsListenPort == 0 {
		cfg.Worker.MetricsListenPort = 9091
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars when deployed.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("FAN_ID_SALT"); v != "" {
		cfg.Ingest.FanIDSalt = v
	}
	if v := os.Getenv("STORAGE_S3_BUCKET"); v != "" {
		cfg.Storage.Type = "s3"
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
		cfg.Digest.Region = v
	}
	if v := os.Getenv("DIGEST_FROM_EMAIL"); v != "" {
		cfg.Digest.FromEmail = v
		cfg.Digest.Enabled = true
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Digest.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Digest.SecretKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

// Validate checks the settings every process needs.
func (cfg *Config) Validate() error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database url is required (set DATABASE_URL)")
	}
	if cfg.Ingest.FanIDSalt == "" {
		return fmt.Errorf("fan id salt is required (set FAN_ID_SALT)")
	}
	if cfg.Storage.Type != "local" && cfg.Storage.Type != "s3" {
		return fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "s3" && cfg.Storage.S3Bucket == "" {
		return fmt.Errorf("storage.s3_bucket is required for s3 storage")
	}
	if cfg.Digest.Enabled && cfg.Digest.FromEmail == "" {
		return fmt.Errorf("digest.from_email is required when digests are enabled")
	}
	return nil
}
