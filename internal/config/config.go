// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig            `mapstructure:"server"`
	Crawler CrawlerConfig           `mapstructure:"crawler"`
	HTTP    HTTPConfig              `mapstructure:"http"`
	DB      DBConfig                `mapstructure:"db"`
	Paths   PathsConfig             `mapstructure:"paths"`
	Logging LoggingConfig           `mapstructure:"logging"`
	Sources map[string]SourceConfig `mapstructure:"sources"`
}

// ServerConfig controls the read-only API server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs worker pools and politeness delays.
type CrawlerConfig struct {
	Concurrency        int    `mapstructure:"concurrency"`
	PageDelayMinMs     int    `mapstructure:"page_delay_min_ms"`
	PageDelayMaxMs     int    `mapstructure:"page_delay_max_ms"`
	CategoryDelayMinMs int    `mapstructure:"category_delay_min_ms"`
	CategoryDelayMaxMs int    `mapstructure:"category_delay_max_ms"`
	RequestDelayMinMs  int    `mapstructure:"request_delay_min_ms"`
	RequestDelayMaxMs  int    `mapstructure:"request_delay_max_ms"`
	UserAgent          string `mapstructure:"user_agent"`
}

// HTTPConfig configures the fetch client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the Postgres catalog.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PathsConfig sets the per-run artifact directories.
type PathsConfig struct {
	ManifestDir string `mapstructure:"manifest_dir"`
	ErrorLogDir string `mapstructure:"error_log_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceConfig describes one pharmacy site. The parser name selects the
// SiteParser implementation; no site logic lives outside internal/sources.
type SourceConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	Parser  string `mapstructure:"parser"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PHARMACRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.page_delay_min_ms", 1000)
	v.SetDefault("crawler.page_delay_max_ms", 2500)
	v.SetDefault("crawler.category_delay_min_ms", 2000)
	v.SetDefault("crawler.category_delay_max_ms", 4000)
	v.SetDefault("crawler.request_delay_min_ms", 500)
	v.SetDefault("crawler.request_delay_max_ms", 1500)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("paths.manifest_dir", "data/parsed_urls")
	v.SetDefault("paths.error_log_dir", "data/errors")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Crawler.PageDelayMaxMs < c.Crawler.PageDelayMinMs {
		return fmt.Errorf("crawler.page_delay_max_ms must be >= crawler.page_delay_min_ms")
	}
	if c.Crawler.CategoryDelayMaxMs < c.Crawler.CategoryDelayMinMs {
		return fmt.Errorf("crawler.category_delay_max_ms must be >= crawler.category_delay_min_ms")
	}
	for key, src := range c.Sources {
		if src.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url is required", key)
		}
		if src.Parser == "" {
			return fmt.Errorf("sources.%s.parser is required", key)
		}
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PageDelay returns the inter-page jitter range.
func (c CrawlerConfig) PageDelay() (time.Duration, time.Duration) {
	return time.Duration(c.PageDelayMinMs) * time.Millisecond,
		time.Duration(c.PageDelayMaxMs) * time.Millisecond
}

// CategoryDelay returns the inter-category jitter range.
func (c CrawlerConfig) CategoryDelay() (time.Duration, time.Duration) {
	return time.Duration(c.CategoryDelayMinMs) * time.Millisecond,
		time.Duration(c.CategoryDelayMaxMs) * time.Millisecond
}

// RequestDelay returns the pre-request jitter range.
func (c CrawlerConfig) RequestDelay() (time.Duration, time.Duration) {
	return time.Duration(c.RequestDelayMinMs) * time.Millisecond,
		time.Duration(c.RequestDelayMaxMs) * time.Millisecond
}
