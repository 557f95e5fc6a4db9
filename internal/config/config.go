// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Ebay          EbayConfig          `yaml:"ebay"`
	Accounts      AccountsConfig      `yaml:"accounts"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// EbayConfig defines eBay API settings shared by both environments.
type EbayConfig struct {
	// Environment is used for new connections and legacy files that do not
	// name one.
	Environment        string          `yaml:"environment"`
	Marketplace        string          `yaml:"marketplace"`
	SiteID             string          `yaml:"site_id"`
	CompatibilityLevel string          `yaml:"compatibility_level"`
	Currency           string          `yaml:"currency"`
	ListingDuration    string          `yaml:"listing_duration"`
	Scopes             []string        `yaml:"scopes"`
	RequestTimeout     time.Duration   `yaml:"request_timeout"`
	UseMediaAPI        *bool           `yaml:"use_media_api"`
	RateLimit          RateLimitConfig `yaml:"rate_limit"`
	Sandbox            EnvConfig       `yaml:"sandbox"`
	Production         EnvConfig       `yaml:"production"`
}

// EnvConfig holds the application keys of one environment and optional
// base URL overrides, mostly useful against the mock server.
type EnvConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RuName       string `yaml:"ru_name"`
	APIURL       string `yaml:"api_url"`
	AuthURL      string `yaml:"auth_url"`
	IdentityURL  string `yaml:"identity_url"`
	MediaURL     string `yaml:"media_url"`
}

// Configured reports whether the application keys are present.
func (e *EnvConfig) Configured() bool {
	return e.ClientID != "" && e.ClientSecret != ""
}

// RateLimitConfig defines eBay API rate limiting settings.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// AccountsConfig defines where seller accounts are stored and how they are
// kept alive.
type AccountsConfig struct {
	RegistryPath string `yaml:"registry_path"`
	// DatabaseURL, when set, keeps the registry in PostgreSQL instead of
	// RegistryPath.
	DatabaseURL     string        `yaml:"database_url"`
	LegacyPaths     []string      `yaml:"legacy_paths"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	PolicyCacheTTL  time.Duration `yaml:"policy_cache_ttl"`
}

// NotificationsConfig defines where keep-alive failures are reported.
type NotificationsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Env returns the settings for env.
func (e *EbayConfig) Env(env domain.Environment) EnvConfig {
	if env == domain.EnvProduction {
		return e.Production
	}
	return e.Sandbox
}

// DefaultEnvironment returns the configured environment.
func (e *EbayConfig) DefaultEnvironment() domain.Environment {
	return domain.Environment(e.Environment)
}

// MediaAPIEnabled reports whether images go through the Media API rather
// than the Trading API.
func (e *EbayConfig) MediaAPIEnabled() bool {
	return e.UseMediaAPI == nil || *e.UseMediaAPI
}

// Environments returns every environment with application keys.
func (e *EbayConfig) Environments() []domain.Environment {
	var out []domain.Environment
	for _, env := range []domain.Environment{domain.EnvSandbox, domain.EnvProduction} {
		c := e.Env(env)
		if c.Configured() {
			out = append(out, env)
		}
	}
	return out
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation. A .env file next to the config is loaded
// first; variables already set in the environment win.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyEbayDefaults(&cfg.Ebay)
	applyAccountsDefaults(&cfg.Accounts)
	applyLoggingDefaults(&cfg.Logging)
}

func applyEbayDefaults(e *EbayConfig) {
	if e.Environment == "" {
		e.Environment = string(domain.EnvSandbox)
	}
	e.Environment = strings.ToLower(e.Environment)
	if e.Marketplace == "" {
		e.Marketplace = "EBAY_US"
	}
	if e.SiteID == "" {
		e.SiteID = "0"
	}
	if e.CompatibilityLevel == "" {
		e.CompatibilityLevel = "1349"
	}
	if e.Currency == "" {
		e.Currency = "USD"
	}
	if e.ListingDuration == "" {
		e.ListingDuration = "GTC"
	}
	if len(e.Scopes) == 0 {
		e.Scopes = []string{
			"https://api.ebay.com/oauth/api_scope",
			"https://api.ebay.com/oauth/api_scope/sell.inventory",
			"https://api.ebay.com/oauth/api_scope/sell.account",
			"https://api.ebay.com/oauth/api_scope/commerce.identity.readonly",
		}
	}
	if e.RequestTimeout == 0 {
		e.RequestTimeout = 60 * time.Second
	}
	applyRateLimitDefaults(&e.RateLimit)
}

func applyRateLimitDefaults(r *RateLimitConfig) {
	if r.PerSecond == 0 {
		r.PerSecond = 5.0
	}
	if r.Burst == 0 {
		r.Burst = 10
	}
	if r.DailyLimit == 0 {
		r.DailyLimit = 5000
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 90 * time.Second
	}
}

func applyAccountsDefaults(a *AccountsConfig) {
	if a.RegistryPath == "" {
		a.RegistryPath = filepath.Join("data", "ebay_accounts.json")
	}
	if len(a.LegacyPaths) == 0 {
		a.LegacyPaths = []string{
			filepath.Join("data", "ebay_tokens.json"),
			"ebay_tokens.json",
		}
	}
	if a.RefreshInterval == 0 {
		a.RefreshInterval = 30 * time.Minute
	}
	if a.PolicyCacheTTL == 0 {
		a.PolicyCacheTTL = time.Hour
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	env, err := domain.ParseEnvironment(cfg.Ebay.Environment)
	if err != nil {
		errs = append(errs, fmt.Errorf("ebay.environment: %w", err))
	}

	if len(cfg.Ebay.Environments()) == 0 {
		errs = append(errs, fmt.Errorf(
			"ebay.sandbox or ebay.production needs client_id and client_secret",
		))
	} else if env.Valid() {
		ec := cfg.Ebay.Env(env)
		if !ec.Configured() {
			errs = append(errs, fmt.Errorf(
				"ebay.%s.client_id and client_secret are required for the default environment", env,
			))
		}
	}

	for _, env := range cfg.Ebay.Environments() {
		ec := cfg.Ebay.Env(env)
		if ec.RuName == "" {
			errs = append(errs, fmt.Errorf("ebay.%s.ru_name is required", env))
		}
	}

	if cfg.Ebay.RateLimit.PerSecond < 0 {
		errs = append(errs, fmt.Errorf("ebay.rate_limit.per_second must not be negative"))
	}
	if cfg.Ebay.RateLimit.DailyLimit < 0 {
		errs = append(errs, fmt.Errorf("ebay.rate_limit.daily_limit must not be negative"))
	}

	if cfg.Accounts.RefreshInterval < time.Minute {
		errs = append(errs, fmt.Errorf(
			"accounts.refresh_interval must be at least 1m (got %s)", cfg.Accounts.RefreshInterval,
		))
	}

	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.WebhookURL == "" {
		errs = append(errs, fmt.Errorf("notifications.discord.webhook_url is required when discord is enabled"))
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf(
			"logging.format must be one of: text, json (got %q)", cfg.Logging.Format,
		))
	}

	return errors.Join(errs...)
}
