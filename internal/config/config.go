package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	imagepkg "github.com/dealerqrcode/dealerqr/internal/image"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Label    LabelConfig
	Capture  CaptureConfig
	Scrape   ScrapeConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	// PublicBaseURL prefixes /dynamic/<code> in printed QR codes
	PublicBaseURL string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver       string // sqlite, postgres
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis connection settings for the redirect cache
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LabelConfig holds print geometry in inches
type LabelConfig struct {
	DPI               float64
	PageWidthIn       float64
	PageHeightIn      float64
	LargeMarginIn     float64
	SmallPageMarginIn float64
	QuadrantWidthIn   float64
	QuadrantHeightIn  float64
	ColumnNudgeIn     float64
	JPEGQuality       int
}

// Layout converts the config into a compositor layout
func (l LabelConfig) Layout() imagepkg.Layout {
	return imagepkg.Layout{
		DPI:               l.DPI,
		PageWidthIn:       l.PageWidthIn,
		PageHeightIn:      l.PageHeightIn,
		LargeMarginIn:     l.LargeMarginIn,
		SmallPageMarginIn: l.SmallPageMarginIn,
		QuadrantWidthIn:   l.QuadrantWidthIn,
		QuadrantHeightIn:  l.QuadrantHeightIn,
		ColumnNudgeIn:     l.ColumnNudgeIn,
	}
}

// CaptureConfig selects how label cards are rasterized
type CaptureConfig struct {
	Renderer  string // native, chrome
	RemoteURL string
	Timeout   time.Duration
	Scale     float64
	NoSandbox bool
}

// ScrapeConfig holds vehicle page scraping settings
type ScrapeConfig struct {
	Timeout time.Duration
	// AllowPrivateNetworks lets outbound fetches reach loopback and
	// private addresses. Off in any deployment reachable by untrusted callers.
	AllowPrivateNetworks bool
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	RendererNative = "native"
	RendererChrome = "chrome"
)

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DQR_ prefix (e.g., DQR_DATABASE_DSN)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dealerqr")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("DQR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:          v.GetString("app.name"),
			Env:           v.GetString("app.env"),
			Port:          v.GetString("app.port"),
			PublicBaseURL: v.GetString("app.public_base_url"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Driver:       v.GetString("database.driver"),
			DSN:          v.GetString("database.dsn"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
			MaxIdleConns: v.GetInt("database.max_idle_conns"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		Label: LabelConfig{
			DPI:               v.GetFloat64("label.dpi"),
			PageWidthIn:       v.GetFloat64("label.page_width_in"),
			PageHeightIn:      v.GetFloat64("label.page_height_in"),
			LargeMarginIn:     v.GetFloat64("label.large_margin_in"),
			SmallPageMarginIn: v.GetFloat64("label.small_page_margin_in"),
			QuadrantWidthIn:   v.GetFloat64("label.quadrant_width_in"),
			QuadrantHeightIn:  v.GetFloat64("label.quadrant_height_in"),
			ColumnNudgeIn:     v.GetFloat64("label.column_nudge_in"),
			JPEGQuality:       v.GetInt("label.jpeg_quality"),
		},
		Capture: CaptureConfig{
			Renderer:  v.GetString("capture.renderer"),
			RemoteURL: v.GetString("capture.remote_url"),
			Timeout:   v.GetDuration("capture.timeout"),
			Scale:     v.GetFloat64("capture.scale"),
			NoSandbox: v.GetBool("capture.no_sandbox"),
		},
		Scrape: ScrapeConfig{
			Timeout:              v.GetDuration("scrape.timeout"),
			AllowPrivateNetworks: v.GetBool("scrape.allow_private_networks"),
		},
	}

	applyDefaults(cfg, v)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields.
// Label geometry uses v.IsSet so an explicit zero (e.g. no nudge) survives.
func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dealerqr"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.PublicBaseURL == "" {
		cfg.App.PublicBaseURL = "https://dealerqrcode.com"
	}
	cfg.App.PublicBaseURL = strings.TrimRight(cfg.App.PublicBaseURL, "/")

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == DriverSQLite {
		cfg.Database.DSN = "dealerqr.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 5 * time.Minute
	}

	def := imagepkg.DefaultLayout()
	setFloat := func(dst *float64, key string, val float64) {
		if !v.IsSet(key) {
			*dst = val
		}
	}
	setFloat(&cfg.Label.DPI, "label.dpi", def.DPI)
	setFloat(&cfg.Label.PageWidthIn, "label.page_width_in", def.PageWidthIn)
	setFloat(&cfg.Label.PageHeightIn, "label.page_height_in", def.PageHeightIn)
	setFloat(&cfg.Label.LargeMarginIn, "label.large_margin_in", def.LargeMarginIn)
	setFloat(&cfg.Label.SmallPageMarginIn, "label.small_page_margin_in", def.SmallPageMarginIn)
	setFloat(&cfg.Label.QuadrantWidthIn, "label.quadrant_width_in", def.QuadrantWidthIn)
	setFloat(&cfg.Label.QuadrantHeightIn, "label.quadrant_height_in", def.QuadrantHeightIn)
	setFloat(&cfg.Label.ColumnNudgeIn, "label.column_nudge_in", def.ColumnNudgeIn)
	if cfg.Label.JPEGQuality == 0 {
		cfg.Label.JPEGQuality = imagepkg.MaxJPEGQuality
	}

	if cfg.Capture.Renderer == "" {
		cfg.Capture.Renderer = RendererNative
	}
	if cfg.Capture.Timeout == 0 {
		cfg.Capture.Timeout = 30 * time.Second
	}
	if cfg.Capture.Scale == 0 {
		cfg.Capture.Scale = imagepkg.DefaultScale
	}

	if cfg.Scrape.Timeout == 0 {
		cfg.Scrape.Timeout = 12 * time.Second
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	switch c.Capture.Renderer {
	case RendererNative, RendererChrome:
	default:
		return fmt.Errorf("unsupported capture renderer %q", c.Capture.Renderer)
	}
	if c.Label.JPEGQuality < 1 || c.Label.JPEGQuality > imagepkg.MaxJPEGQuality {
		return fmt.Errorf("label jpeg quality must be 1..100, got %d", c.Label.JPEGQuality)
	}
	if err := c.Label.Layout().Validate(); err != nil {
		return fmt.Errorf("invalid label layout: %w", err)
	}
	return nil
}
