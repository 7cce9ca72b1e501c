// Package config loads shopmap configuration from config.yaml, a .env file
// and SHOPMAP_* environment variables.
package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SHOPMAP"

// Config holds the full application configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates the pipeline's files. Relative paths are resolved
// against Root.
type PathsConfig struct {
	Root    string `yaml:"root" mapstructure:"root"`
	Input   string `yaml:"input" mapstructure:"input"`
	Output  string `yaml:"output" mapstructure:"output"`
	Cache   string `yaml:"cache" mapstructure:"cache"`
	GeoJSON string `yaml:"geojson" mapstructure:"geojson"` // empty disables the export
}

// GeocodeConfig configures the geocoding client and resolver.
type GeocodeConfig struct {
	Providers     []string      `yaml:"providers" mapstructure:"providers"`
	RatePerSecond float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	TimeoutSecs   int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	GoogleKey     string        `yaml:"google_key" mapstructure:"google_key"`
	NominatimURL  string        `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	Circuit       CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// CircuitConfig configures the geocoder circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Port      int    `yaml:"port" mapstructure:"port"`
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. A .env file in the
// working directory is applied to the environment first; variables already
// set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one so env overrides reach Unmarshal.
	v.SetDefault("paths.root", ".")
	v.SetDefault("paths.input", filepath.Join("data", "raw", "aea_members.csv"))
	v.SetDefault("paths.output", filepath.Join("data", "shops.json"))
	v.SetDefault("paths.cache", filepath.Join("data", "geocode_cache.json"))
	v.SetDefault("paths.geojson", "")
	v.SetDefault("geocode.providers", []string{"nominatim"})
	v.SetDefault("geocode.rate_per_second", 1/1.1)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.user_agent", "shopmap/1.0 (+https://aea.net)")
	v.SetDefault("geocode.google_key", "")
	v.SetDefault("geocode.nominatim_url", "")
	v.SetDefault("geocode.circuit.failure_threshold", 5)
	v.SetDefault("geocode.circuit.reset_timeout_secs", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Resolve returns p joined to the root unless p is empty or absolute.
func (p PathsConfig) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}

// Timeout returns the per-request provider timeout.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// ResetTimeout returns how long the breaker stays open.
func (c CircuitConfig) ResetTimeout() time.Duration {
	return time.Duration(c.ResetTimeoutSecs) * time.Second
}

// Validate checks the settings a command needs. mode is "run" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run":
		if c.Paths.Input == "" {
			problems = append(problems, "paths.input is required")
		}
		if c.Paths.Output == "" {
			problems = append(problems, "paths.output is required")
		}
		if c.Paths.Cache == "" {
			problems = append(problems, "paths.cache is required")
		}
		if c.Geocode.TimeoutSecs < 0 {
			problems = append(problems, "geocode.timeout_secs must not be negative")
		}
		if c.Geocode.RatePerSecond < 0 {
			problems = append(problems, "geocode.rate_per_second must not be negative")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.Paths.Output == "" {
			problems = append(problems, "paths.output is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
