// Package config loads and validates service configuration via Viper, with
// struct tags checked by go-playground/validator.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// StoreConfig holds Purchase/Report Store connection parameters.
type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory sqlite postgres"`
	DSN    string `mapstructure:"dsn"`
}

// SearchConfig configures the web-search capability.
type SearchConfig struct {
	Model           string `mapstructure:"model" validate:"required"`
	MaxFindings     int    `mapstructure:"max_findings" validate:"gte=1,lte=100"`
	UserHourlyQuota int    `mapstructure:"user_hourly_quota" validate:"gte=0"`
}

// DealsConfig configures the deal-suggestion surface.
type DealsConfig struct {
	AllowedCategories []string `mapstructure:"allowed_categories"`
}

// WeeklyConfig configures the weekly alternative-suggestions pipeline.
type WeeklyConfig struct {
	TopN          int     `mapstructure:"top_n" validate:"gte=1,lte=50"`
	MinSavingsUSD float64 `mapstructure:"min_savings_usd" validate:"gte=0"`
}

// ConcurrencyConfig bounds parallel work.
type ConcurrencyConfig struct {
	Users int `mapstructure:"users" validate:"gte=1,lte=256"`
}

// CORSConfig configures the HTTP facade's origin allow-list.
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// HTTPConfig configures the facade's own listen address and timeouts.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Config is the fully-resolved, validated service configuration.
type Config struct {
	Dev         bool              `mapstructure:"dev"`
	LogLevel    string            `mapstructure:"log_level"`
	Store       StoreConfig       `mapstructure:"store"`
	Search      SearchConfig      `mapstructure:"search"`
	Deals       DealsConfig       `mapstructure:"deals"`
	Weekly      WeeklyConfig      `mapstructure:"weekly"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	CORS        CORSConfig        `mapstructure:"cors"`
	HTTP        HTTPConfig        `mapstructure:"http"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("dev", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("search.model", "claude-sonnet-4-20250514")
	v.SetDefault("search.max_findings", 20)
	v.SetDefault("search.user_hourly_quota", 60)
	v.SetDefault("deals.allowed_categories", []string{"Groceries"})
	v.SetDefault("weekly.top_n", 5)
	v.SetDefault("weekly.min_savings_usd", 10.00)
	v.SetDefault("concurrency.users", 10)
	v.SetDefault("cors.allow_origins", []string{})
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 65*time.Second)
}

// Load reads configuration from configPath (if non-empty) and the
// ANALYTICS_-prefixed environment, applies defaults, and validates the
// result. A validation failure is the CLI's "configuration error" (exit 2).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("ANALYTICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
