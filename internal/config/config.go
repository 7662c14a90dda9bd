package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/statementd/statementd/internal/model"
)

// FileName is the default config file name.
const FileName = "statementd.yaml"

// Store backends.
const (
	StoreCSV    = "csv"
	StoreSQLite = "sqlite"
)

// Environment overrides.
const (
	EnvAPIKey   = "STATEMENTD_API_KEY"
	EnvDataDir  = "STATEMENTD_DATA_DIR"
	EnvStore    = "STATEMENTD_STORE"
	EnvTimezone = "STATEMENTD_TIMEZONE"
	EnvAddr     = "STATEMENTD_ADDR"
)

// Config represents the top-level statementd.yaml configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Store    string         `yaml:"store"`
	Timezone string         `yaml:"timezone"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Server   ServerConfig   `yaml:"server"`
	Render   RenderConfig   `yaml:"render"`
	Log      LogConfig      `yaml:"log"`
}

// UpstreamConfig points at the accounting API.
type UpstreamConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key,omitempty"`
	FromDate string        `yaml:"from_date"` // "YYYY-MM-DD"
	Timeout  time.Duration `yaml:"timeout"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// Statement output formats written by the CLI.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

// RenderConfig controls statement output.
type RenderConfig struct {
	Format  string `yaml:"format"`             // html or pdf
	PDFFont string `yaml:"pdf_font,omitempty"` // TrueType font for non-Latin text
}

// LogConfig controls logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads a statementd.yaml file from disk. Missing keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new deployment.
func Default() *Config {
	return &Config{
		DataDir:  "data",
		Store:    StoreCSV,
		Timezone: "Asia/Riyadh",
		Upstream: UpstreamConfig{
			BaseURL:  "https://www.qoyod.com/api/2.0",
			FromDate: "2023-01-01",
			Timeout:  30 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Render: RenderConfig{
			Format: FormatHTML,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Resolve builds the effective configuration: the file at path (defaults if
// it does not exist), then a .env file beside it, then STATEMENTD_*
// environment variables. A relative data_dir is taken relative to the config
// file's directory.
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = Default()
	case err != nil:
		return nil, err
	}

	dir := filepath.Dir(path)
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	ApplyEnv(cfg)

	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(dir, cfg.DataDir)
	}
	if cfg.Render.PDFFont != "" && !filepath.IsAbs(cfg.Render.PDFFont) {
		cfg.Render.PDFFont = filepath.Join(dir, cfg.Render.PDFFont)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from STATEMENTD_* variables that are set.
func ApplyEnv(cfg *Config) {
	set := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvAPIKey, &cfg.Upstream.APIKey)
	set(EnvDataDir, &cfg.DataDir)
	set(EnvStore, &cfg.Store)
	set(EnvTimezone, &cfg.Timezone)
	set(EnvAddr, &cfg.Server.Addr)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.Store != StoreCSV && c.Store != StoreSQLite {
		return fmt.Errorf("config: store must be %q or %q, got %q", StoreCSV, StoreSQLite, c.Store)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	if _, err := time.Parse(model.DateLayout, c.Upstream.FromDate); err != nil {
		return fmt.Errorf("config: upstream.from_date: %w", err)
	}
	if c.Upstream.BaseURL == "" {
		return errors.New("config: upstream.base_url is required")
	}
	if c.Upstream.Timeout <= 0 {
		return errors.New("config: upstream.timeout must be positive")
	}
	if c.Render.Format != FormatHTML && c.Render.Format != FormatPDF {
		return fmt.Errorf("config: render.format must be %q or %q, got %q", FormatHTML, FormatPDF, c.Render.Format)
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// FromDate returns the start of the invoice window and of default statement
// periods.
func (c *Config) FromDate() model.Date {
	return model.ParseDate(c.Upstream.FromDate)
}
