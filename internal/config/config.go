// Package config provides Viper-based hierarchical configuration management.
// Precedence: defaults < config file < environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Database struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"database"`

	Extraction struct {
		PdftotextPath string `mapstructure:"pdftotext_path"`
	} `mapstructure:"extraction"`

	Reconciliation struct {
		// Strategy selects the matching engine: "hierarchical" or "fuzzy".
		Strategy       string  `mapstructure:"strategy"`
		WindowDays     int     `mapstructure:"window_days"`
		InvoiceWindow  int     `mapstructure:"invoice_window_days"`
		InstantWindow  int     `mapstructure:"instant_window_days"`
		FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	} `mapstructure:"reconciliation"`

	AI struct {
		Enabled        bool   `mapstructure:"enabled"`
		Model          string `mapstructure:"model"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
		APIKey         string `mapstructure:"api_key"`
	} `mapstructure:"ai"`

	Tax struct {
		ThrottleSeconds int `mapstructure:"throttle_seconds"`
	} `mapstructure:"tax"`
}

// Load initializes configuration from defaults, an optional config.yaml and
// DOCLEDGER_-prefixed environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.docledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOCLEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	// Secrets come from conventional unprefixed variables.
	if err := v.BindEnv("ai.api_key", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind GEMINI_API_KEY: %w", err)
	}
	if err := v.BindEnv("database.url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("extraction.pdftotext_path", "pdftotext")

	v.SetDefault("reconciliation.strategy", "hierarchical")
	v.SetDefault("reconciliation.window_days", 45)
	v.SetDefault("reconciliation.invoice_window_days", 45)
	v.SetDefault("reconciliation.instant_window_days", 5)
	v.SetDefault("reconciliation.fuzzy_threshold", 0.6)

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.timeout_seconds", 60)

	v.SetDefault("tax.throttle_seconds", 13)
}

func validate(cfg *Config) error {
	switch cfg.Reconciliation.Strategy {
	case "hierarchical", "fuzzy":
	default:
		return fmt.Errorf("unknown reconciliation strategy %q", cfg.Reconciliation.Strategy)
	}
	if cfg.Reconciliation.WindowDays <= 0 {
		return fmt.Errorf("reconciliation.window_days must be positive")
	}
	if cfg.Reconciliation.FuzzyThreshold <= 0 || cfg.Reconciliation.FuzzyThreshold >= 1 {
		return fmt.Errorf("reconciliation.fuzzy_threshold must be in (0, 1)")
	}
	if cfg.AI.Enabled && cfg.AI.APIKey == "" {
		return fmt.Errorf("ai.enabled is set but no API key is configured")
	}
	return nil
}
