// Package config loads zinespread settings from an optional YAML file with
// ZINE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yuanying/zinespread/internal/flip"
	"github.com/yuanying/zinespread/internal/imposition"
	"github.com/yuanying/zinespread/internal/layout"
)

const currentVersion = 1

type PreviewConfig struct {
	Addr        string        `yaml:"addr"`
	Mode        layout.Mode   `yaml:"mode"`
	Margin      float64       `yaml:"margin"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	RateLimit   int           `yaml:"rate_limit"`
}

type AnimationConfig struct {
	Duration time.Duration `yaml:"duration"`
}

type ViewerConfig struct {
	NavHeight     int  `yaml:"nav_height"`
	CurveSamples  int  `yaml:"curve_samples"`
	InlineImages  bool `yaml:"inline_images"`
	MaxImageWidth int  `yaml:"max_image_width"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Config is the full set of user settings.
type Config struct {
	ConfigVersion int                 `yaml:"config_version"`
	Geometry      imposition.Geometry `yaml:"geometry"`
	Preview       PreviewConfig       `yaml:"preview"`
	Animation     AnimationConfig     `yaml:"animation"`
	Viewer        ViewerConfig        `yaml:"viewer"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// Defaults returns the reference settings.
func Defaults() Config {
	return Config{
		ConfigVersion: currentVersion,
		Geometry:      imposition.ReferenceGeometry(),
		Preview: PreviewConfig{
			Addr:        "127.0.0.1:8642",
			Mode:        layout.Book,
			Margin:      16,
			SettleDelay: 100 * time.Millisecond,
			SessionTTL:  2 * time.Hour,
			RateLimit:   60,
		},
		Animation: AnimationConfig{Duration: flip.DefaultDuration},
		Viewer: ViewerConfig{
			NavHeight:     48,
			CurveSamples:  60,
			MaxImageWidth: 1200,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Environment overrides.
const (
	EnvAddr      = "ZINE_ADDR"
	EnvMode      = "ZINE_MODE"
	EnvMargin    = "ZINE_MARGIN"
	EnvDuration  = "ZINE_DURATION"
	EnvLogLevel  = "ZINE_LOG_LEVEL"
	EnvLogFormat = "ZINE_LOG_FORMAT"
	EnvLogFile   = "ZINE_LOG_FILE"
)

// DefaultPath is the file Load reads when no path is given and it exists.
const DefaultPath = "zinespread.yaml"

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path reads DefaultPath if present.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		cfg.Preview.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMode)); v != "" {
		m, err := layout.ParseMode(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMode, err)
		}
		cfg.Preview.Mode = m
	}
	if v := strings.TrimSpace(os.Getenv(EnvMargin)); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", EnvMargin, v)
		}
		cfg.Preview.Margin = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvDuration)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", EnvDuration, v)
		}
		cfg.Animation.Duration = d
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
	return nil
}

// Validate reports the first invalid setting by its YAML key.
func (c Config) Validate() error {
	if c.ConfigVersion > currentVersion {
		return fmt.Errorf("config_version %d is newer than supported version %d", c.ConfigVersion, currentVersion)
	}
	if err := c.Geometry.Validate(); err != nil {
		return fmt.Errorf("geometry: %w", err)
	}
	switch {
	case c.Preview.Addr == "":
		return errors.New("preview.addr is required")
	case c.Preview.Margin < 0:
		return fmt.Errorf("preview.margin must be >= 0, got %v", c.Preview.Margin)
	case c.Preview.SettleDelay < 0:
		return fmt.Errorf("preview.settle_delay must be >= 0, got %v", c.Preview.SettleDelay)
	case c.Preview.SessionTTL <= 0:
		return fmt.Errorf("preview.session_ttl must be positive, got %v", c.Preview.SessionTTL)
	case c.Preview.RateLimit <= 0:
		return fmt.Errorf("preview.rate_limit must be positive, got %d", c.Preview.RateLimit)
	case c.Animation.Duration <= 0:
		return fmt.Errorf("animation.duration must be positive, got %v", c.Animation.Duration)
	case c.Viewer.NavHeight < 0:
		return fmt.Errorf("viewer.nav_height must be >= 0, got %d", c.Viewer.NavHeight)
	case c.Viewer.CurveSamples < 2:
		return fmt.Errorf("viewer.curve_samples must be >= 2, got %d", c.Viewer.CurveSamples)
	case c.Viewer.MaxImageWidth <= 0:
		return fmt.Errorf("viewer.max_image_width must be positive, got %d", c.Viewer.MaxImageWidth)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug|info|warn|error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Sheet returns the print sheet for the configured page geometry.
func (c Config) Sheet() imposition.Sheet {
	return imposition.Reference(c.Geometry)
}
