// Package config loads city-events settings from defaults, an optional YAML
// file, a .env file and CITY_EVENTS_* environment variables, in increasing
// order of precedence. Command-line flags bound by the cli package win over all.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pfrederiksen/city-events/internal/scraper"
)

const envPrefix = "CITY_EVENTS"

// Renderer names
const (
	RendererBrowser = "browser"
	RendererHTTP    = "http"
)

// Config is the full application configuration
type Config struct {
	DataDir  string        `mapstructure:"data_dir"`
	Renderer string        `mapstructure:"renderer"`
	Browser  BrowserConfig `mapstructure:"browser"`
	Fetch    FetchConfig   `mapstructure:"fetch"`
	Server   ServerConfig  `mapstructure:"server"`
	Log      LogConfig     `mapstructure:"log"`
	Site     SiteConfig    `mapstructure:"site"`
}

// BrowserConfig configures the headless browser renderer
type BrowserConfig struct {
	RemoteURL string `mapstructure:"remote_url"`
	Headless  bool   `mapstructure:"headless"`
}

// FetchConfig bounds page rendering
type FetchConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	SelectorTimeout time.Duration `mapstructure:"selector_timeout"`
}

// ServerConfig configures the HTTP trigger
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SiteConfig describes the listing site
type SiteConfig struct {
	Origin string `mapstructure:"origin"`
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "~/.local/share/city-events")
	v.SetDefault("renderer", RendererBrowser)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("fetch.timeout", scraper.Timeout)
	v.SetDefault("fetch.selector_timeout", scraper.SelectorTimeout)
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("log.level", "info")
	v.SetDefault("site.origin", scraper.DefaultOrigin)
}

// Load reads configuration into v and decodes it. cfgFile may be empty.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// A missing .env is normal
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	var errs []error
	switch c.Renderer {
	case RendererBrowser, RendererHTTP:
	default:
		errs = append(errs, fmt.Errorf("invalid renderer: %s (must be '%s' or '%s')", c.Renderer, RendererBrowser, RendererHTTP))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if c.Fetch.SelectorTimeout <= 0 {
		errs = append(errs, errors.New("fetch.selector_timeout must be positive"))
	}
	if !strings.HasPrefix(c.Site.Origin, "http://") && !strings.HasPrefix(c.Site.Origin, "https://") {
		errs = append(errs, fmt.Errorf("site.origin must start with http:// or https://: %q", c.Site.Origin))
	}
	return errors.Join(errs...)
}
