package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the mail engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Log         LogConfig         `yaml:"log"`
	Mail        MailConfig        `yaml:"mail"`
	Resend      ResendConfig      `yaml:"resend"`
	SES         SESConfig         `yaml:"ses"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Security    SecurityConfig    `yaml:"security"`
	Unsubscribe UnsubscribeConfig `yaml:"unsubscribe"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Worker      WorkerConfig      `yaml:"worker"`
	ContactSync ContactSyncConfig `yaml:"contact_sync"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                   int      `yaml:"port"`
	Host                   string   `yaml:"host"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	CORSOrigins            []string `yaml:"cors_origins"`
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

// ShutdownTimeout bounds graceful shutdown.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection used for the worker lock. Empty
// URL falls back to a Postgres advisory lock.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level            string `yaml:"level"`
	DisableRedaction bool   `yaml:"disable_redaction"`
}

// MailConfig holds provider selection and delivery pacing.
type MailConfig struct {
	// Provider is "resend", "ses" or empty to pick resend when a key is set.
	Provider string `yaml:"provider"`
	From     string `yaml:"from"`
	ReplyTo  string `yaml:"reply_to"`
	// BaseURL is the public site root used in unsubscribe and logo links.
	BaseURL     string `yaml:"base_url"`
	Timezone    string `yaml:"timezone"`
	BatchSize   int    `yaml:"batch_size"`
	SendDelayMS int    `yaml:"send_delay_ms"`
}

// SendDelay is the pause between provider calls.
func (c MailConfig) SendDelay() time.Duration {
	return time.Duration(c.SendDelayMS) * time.Millisecond
}

// Location loads the configured timezone.
func (c MailConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ResendConfig holds Resend API configuration
type ResendConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	AudienceID     string `yaml:"audience_id"`
	WebhookSecret  string `yaml:"webhook_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the configured timeout as a duration
func (c ResendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES configuration
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// WebhookConfig bounds inbound provider webhooks.
type WebhookConfig struct {
	ToleranceSeconds int `yaml:"tolerance_seconds"`
	MaxBodyBytes     int `yaml:"max_body_bytes"`
}

// Tolerance is the accepted clock skew of a signed webhook.
func (c WebhookConfig) Tolerance() time.Duration {
	return time.Duration(c.ToleranceSeconds) * time.Second
}

// SecurityConfig holds the shared secrets of the HTTP API.
type SecurityConfig struct {
	CronSecret string `yaml:"cron_secret"`
	AdminToken string `yaml:"admin_token"`
}

// UnsubscribeConfig bounds the public unsubscribe endpoint.
type UnsubscribeConfig struct {
	RatePerMinute int `yaml:"rate_per_minute"`
	MaxBodyBytes  int `yaml:"max_body_bytes"`
}

// ArchiveConfig selects where rendered broadcasts are archived.
type ArchiveConfig struct {
	Type      string `yaml:"type"` // "s3", "local" or empty
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	LocalPath string `yaml:"local_path"`
}

// WorkerConfig holds the background scheduler settings.
type WorkerConfig struct {
	Schedule       string `yaml:"schedule"`
	LockKey        string `yaml:"lock_key"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL is the distributed lock lease.
func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ContactSyncConfig tunes the contact mirror queue.
type ContactSyncConfig struct {
	Enabled   bool `yaml:"enabled"`
	QueueSize int  `yaml:"queue_size"`
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
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 30
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Mail.Timezone == "" {
		cfg.Mail.Timezone = "Europe/Amsterdam"
	}
	if cfg.Mail.BaseURL == "" {
		cfg.Mail.BaseURL = "https://rijksuitgaven.nl"
	}
	cfg.Mail.BaseURL = strings.TrimRight(cfg.Mail.BaseURL, "/")
	if cfg.Mail.BatchSize == 0 {
		cfg.Mail.BatchSize = 100
	}
	if cfg.Mail.SendDelayMS == 0 {
		cfg.Mail.SendDelayMS = 600
	}
	if cfg.Resend.BaseURL == "" {
		cfg.Resend.BaseURL = "https://api.resend.com"
	}
	if cfg.Resend.TimeoutSeconds == 0 {
		cfg.Resend.TimeoutSeconds = 30
	}
	if cfg.Resend.MaxRetries == 0 {
		cfg.Resend.MaxRetries = 3
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "eu-west-1"
	}
	if cfg.Webhook.ToleranceSeconds == 0 {
		cfg.Webhook.ToleranceSeconds = 300
	}
	if cfg.Webhook.MaxBodyBytes == 0 {
		cfg.Webhook.MaxBodyBytes = 50_000
	}
	if cfg.Unsubscribe.RatePerMinute == 0 {
		cfg.Unsubscribe.RatePerMinute = 10
	}
	if cfg.Unsubscribe.MaxBodyBytes == 0 {
		cfg.Unsubscribe.MaxBodyBytes = 1000
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = cfg.SES.Region
	}
	if cfg.Archive.Type == "local" && cfg.Archive.LocalPath == "" {
		cfg.Archive.LocalPath = "./data/archive"
	}
	if cfg.Worker.Schedule == "" {
		cfg.Worker.Schedule = "0 * * * *"
	}
	if cfg.Worker.LockKey == "" {
		cfg.Worker.LockKey = "mailengine:sequence-tick"
	}
	if cfg.Worker.LockTTLSeconds == 0 {
		cfg.Worker.LockTTLSeconds = 30 * 60
	}
	if cfg.ContactSync.QueueSize == 0 {
		cfg.ContactSync.QueueSize = 256
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	setString(&cfg.Mail.Provider, "MAIL_PROVIDER")
	setString(&cfg.Mail.From, "MAIL_FROM")
	setString(&cfg.Mail.Timezone, "MAIL_TIMEZONE")
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Mail.BaseURL = strings.TrimRight(v, "/")
	}

	setString(&cfg.Resend.APIKey, "RESEND_API_KEY")
	setString(&cfg.Resend.BaseURL, "RESEND_BASE_URL")
	setString(&cfg.Resend.AudienceID, "RESEND_AUDIENCE_ID")
	setString(&cfg.Resend.WebhookSecret, "RESEND_WEBHOOK_SECRET")

	setString(&cfg.SES.AccessKey, "AWS_SES_ACCESS_KEY")
	setString(&cfg.SES.SecretKey, "AWS_SES_SECRET_KEY")
	setString(&cfg.SES.Region, "AWS_SES_REGION")
	setString(&cfg.SES.ConfigurationSet, "AWS_SES_CONFIGURATION_SET")

	setString(&cfg.Security.CronSecret, "CRON_SECRET")
	setString(&cfg.Security.AdminToken, "ADMIN_API_TOKEN")

	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.Type = "s3"
		cfg.Archive.Bucket = v
	}
	setString(&cfg.Archive.Endpoint, "ARCHIVE_S3_ENDPOINT")

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if cfg.Resend.APIKey != "" && cfg.Resend.AudienceID != "" {
		cfg.ContactSync.Enabled = true
	}

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// ProviderName resolves which mail provider to use: the explicit choice,
// else resend when a key is set, else ses when keys are set, else none.
func (c *Config) ProviderName() string {
	switch strings.ToLower(c.Mail.Provider) {
	case "resend":
		return "resend"
	case "ses":
		return "ses"
	}
	if c.Resend.APIKey != "" {
		return "resend"
	}
	if c.SES.AccessKey != "" && c.SES.SecretKey != "" {
		return "ses"
	}
	return ""
}
