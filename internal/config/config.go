package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Secret is a string that never renders its value in logs or JSON.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON redacts the secret.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	BaseURL        string `mapstructure:"valr_base_url"`
	APIKey         string `mapstructure:"valr_api_key" json:"-"`
	APISecret      Secret `mapstructure:"valr_api_secret"`
	SignSubaccount bool   `mapstructure:"valr_sign_subaccount"`
	UserAgent      string `mapstructure:"valr_user_agent"`

	RequestTimeoutMs int64   `mapstructure:"request_timeout_ms"`
	MaxAttempts      int     `mapstructure:"max_attempts"`
	BackoffBaseMs    int64   `mapstructure:"backoff_base_ms"`
	BackoffMaxMs     int64   `mapstructure:"backoff_max_ms"`
	RateLimitRPS     float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int     `mapstructure:"rate_limit_burst"`
	ResponseCacheMs  int64   `mapstructure:"response_cache_ttl_ms"`

	RequestTimeout   time.Duration `mapstructure:"-"`
	BackoffBase      time.Duration `mapstructure:"-"`
	BackoffMax       time.Duration `mapstructure:"-"`
	ResponseCacheTTL time.Duration `mapstructure:"-"`

	JobsFile            string        `mapstructure:"jobs_file"`
	PublishersFile      string        `mapstructure:"publishers_file"`
	PollIntervalSeconds int64         `mapstructure:"poll_interval"`
	PollInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "valr-poller")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("valr_base_url", "https://api.valr.com")
	v.SetDefault("valr_api_key", "")
	v.SetDefault("valr_api_secret", "")
	v.SetDefault("valr_sign_subaccount", true)
	v.SetDefault("valr_user_agent", "valr-go")

	v.SetDefault("request_timeout_ms", 10000)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("backoff_base_ms", 250)
	v.SetDefault("backoff_max_ms", 5000)
	v.SetDefault("rate_limit_rps", 0)
	v.SetDefault("rate_limit_burst", 1)
	v.SetDefault("response_cache_ttl_ms", 0)

	v.SetDefault("jobs_file", "./configs/jobs.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("poll_interval", 60) // seconds

	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/valr.db")
	v.SetDefault("storage_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((time.Hour)/time.Second))
}

// finalize validates raw values and derives the duration fields.
func (cfg *Config) finalize() error {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APISecret = Secret(strings.TrimSpace(string(cfg.APISecret)))

	if cfg.BaseURL == "" {
		return fmt.Errorf("valr_base_url is required")
	}
	if (cfg.APIKey == "") != (cfg.APISecret == "") {
		return fmt.Errorf("valr_api_key and valr_api_secret must be set together")
	}
	if cfg.RequestTimeoutMs <= 0 {
		return fmt.Errorf("invalid request_timeout_ms (must be positive milliseconds)")
	}
	if cfg.MaxAttempts <= 0 {
		return fmt.Errorf("invalid max_attempts (must be positive)")
	}
	if cfg.BackoffBaseMs <= 0 || cfg.BackoffMaxMs < cfg.BackoffBaseMs {
		return fmt.Errorf("invalid backoff_base_ms/backoff_max_ms (need 0 < base <= max)")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("invalid rate_limit_rps (must not be negative)")
	}
	if cfg.ResponseCacheMs < 0 {
		return fmt.Errorf("invalid response_cache_ttl_ms (must not be negative)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	cfg.BackoffBase = time.Duration(cfg.BackoffBaseMs) * time.Millisecond
	cfg.BackoffMax = time.Duration(cfg.BackoffMaxMs) * time.Millisecond
	cfg.ResponseCacheTTL = time.Duration(cfg.ResponseCacheMs) * time.Millisecond

	if cfg.PollIntervalSeconds <= 0 {
		return fmt.Errorf("invalid poll_interval (must be positive seconds)")
	}
	cfg.PollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return nil
}
