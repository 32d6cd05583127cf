// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR"`
	DBURL           string        `mapstructure:"DB_URL"`
	MigrationsPath  string        `mapstructure:"MIGRATIONS_PATH"`
	EncryptionKey   string        `mapstructure:"ENCRYPTION_KEY"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	AdminAPIToken   string        `mapstructure:"ADMIN_API_TOKEN"`

	Webhook  WebhookConfig  `mapstructure:",squash"`
	Github   GithubConfig   `mapstructure:",squash"`
	Analysis AnalysisConfig `mapstructure:",squash"`
	SMTP     SMTPConfig     `mapstructure:",squash"`
}

// WebhookConfig controls inbound signature checks and hook registration.
type WebhookConfig struct {
	Secret            string        `mapstructure:"WEBHOOK_SECRET"`
	RequireSignature  bool          `mapstructure:"WEBHOOK_REQUIRE_SIGNATURE"`
	CallbackURL       string        `mapstructure:"WEBHOOK_CALLBACK_URL"`
	// ReconcileInterval of zero disables periodic registration retries.
	ReconcileInterval time.Duration `mapstructure:"WEBHOOK_RECONCILE_INTERVAL"`
}

// GithubConfig configures outbound provider calls.
type GithubConfig struct {
	APIURL     string        `mapstructure:"GITHUB_API_URL"`
	Timeout    time.Duration `mapstructure:"GITHUB_TIMEOUT"`
	MaxRetries int           `mapstructure:"GITHUB_MAX_RETRIES"`
}

// AnalysisConfig configures the per-run analysis pipeline.
type AnalysisConfig struct {
	ServiceURL       string        `mapstructure:"ANALYSIS_SERVICE_URL"`
	Language         string        `mapstructure:"ANALYSIS_LANGUAGE"`
	FileExtensions   []string      `mapstructure:"FILE_EXTENSIONS"`
	SkipPatterns     []string      `mapstructure:"FILE_SKIP_PATTERNS"`
	FileTimeout      time.Duration `mapstructure:"FILE_ANALYSIS_TIMEOUT"`
	RetryCount       int           `mapstructure:"FILE_RETRY_COUNT"`
	RetryDelay       time.Duration `mapstructure:"FILE_RETRY_DELAY"`
	InterFileDelay   time.Duration `mapstructure:"INTER_FILE_DELAY"`
	LargePRThreshold int           `mapstructure:"LARGE_PR_THRESHOLD"`
}

// SMTPConfig configures outbound email. Notifications are disabled unless
// both Username and Password are set.
type SMTPConfig struct {
	Host                 string        `mapstructure:"SMTP_HOST"`
	Port                 int           `mapstructure:"SMTP_PORT"`
	Username             string        `mapstructure:"SMTP_USERNAME"`
	Password             string        `mapstructure:"SMTP_PASSWORD"`
	From                 string        `mapstructure:"SMTP_FROM"`
	FromName             string        `mapstructure:"SMTP_FROM_NAME"`
	UseTLS               bool          `mapstructure:"SMTP_USE_TLS"`
	Timeout              time.Duration `mapstructure:"SMTP_TIMEOUT"`
	DefaultReviewerEmail string        `mapstructure:"DEFAULT_REVIEWER_EMAIL"`
}

// Enabled reports whether mail credentials are configured.
func (c SMTPConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

var defaults = map[string]any{
	"LOG_LEVEL":                  "info",
	"HTTP_ADDR":                  ":8080",
	"DB_URL":                     "",
	"MIGRATIONS_PATH":            "file://migrations",
	"ENCRYPTION_KEY":             "",
	"SHUTDOWN_TIMEOUT":           "30s",
	"ADMIN_API_TOKEN":            "",
	"WEBHOOK_SECRET":             "",
	"WEBHOOK_REQUIRE_SIGNATURE":  false,
	"WEBHOOK_CALLBACK_URL":       "",
	"WEBHOOK_RECONCILE_INTERVAL": "1h",
	"GITHUB_API_URL":             "",
	"GITHUB_TIMEOUT":             "30s",
	"GITHUB_MAX_RETRIES":         3,
	"ANALYSIS_SERVICE_URL":       "http://analysis-service:8001",
	"ANALYSIS_LANGUAGE":          "python",
	"FILE_EXTENSIONS":            ".py,.pyw,.pyx,.pyi,.ipynb",
	"FILE_SKIP_PATTERNS":         "/migrations/,/alembic/versions/,__init__.py,/tests/,/test_,_test.py",
	"FILE_ANALYSIS_TIMEOUT":      "120s",
	"FILE_RETRY_COUNT":           2,
	"FILE_RETRY_DELAY":           "5s",
	"INTER_FILE_DELAY":           "2s",
	"LARGE_PR_THRESHOLD":         3,
	"SMTP_HOST":                  "smtp.gmail.com",
	"SMTP_PORT":                  587,
	"SMTP_USERNAME":              "",
	"SMTP_PASSWORD":              "",
	"SMTP_FROM":                  "",
	"SMTP_FROM_NAME":             "AI Code Review Assistant",
	"SMTP_USE_TLS":               false,
	"SMTP_TIMEOUT":               "15s",
	"DEFAULT_REVIEWER_EMAIL":     "",
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Every key needs a default so AutomaticEnv picks it up during Unmarshal.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Analysis.FileExtensions = splitList(cfg.Analysis.FileExtensions)
	cfg.Analysis.SkipPatterns = splitList(cfg.Analysis.SkipPatterns)
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	if c.EncryptionKey == "" {
		return errors.New("ENCRYPTION_KEY is a required configuration field")
	}
	if c.Webhook.CallbackURL == "" {
		return errors.New("WEBHOOK_CALLBACK_URL is a required configuration field")
	}
	if _, err := url.ParseRequestURI(c.Webhook.CallbackURL); err != nil {
		return fmt.Errorf("WEBHOOK_CALLBACK_URL is not a valid URL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.Analysis.ServiceURL); err != nil {
		return fmt.Errorf("ANALYSIS_SERVICE_URL is not a valid URL: %w", err)
	}
	if len(c.Analysis.FileExtensions) == 0 {
		return errors.New("FILE_EXTENSIONS must contain at least one extension")
	}
	if c.Analysis.RetryCount < 0 {
		return errors.New("FILE_RETRY_COUNT must not be negative")
	}
	if c.Analysis.FileTimeout <= 0 {
		return errors.New("FILE_ANALYSIS_TIMEOUT must be positive")
	}
	if c.Webhook.ReconcileInterval < 0 {
		return errors.New("WEBHOOK_RECONCILE_INTERVAL must not be negative")
	}
	if c.Analysis.LargePRThreshold < 0 {
		return errors.New("LARGE_PR_THRESHOLD must not be negative")
	}
	return nil
}

// splitList normalizes list values that arrive as a single comma separated string.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
