// Package config loads application configuration from file and
// environment and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/propfolio/catalog-cli/internal/dedupe"
	"github.com/propfolio/catalog-cli/internal/quality"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Sync    SyncConfig    `yaml:"sync" mapstructure:"sync"`
	Quality QualityConfig `yaml:"quality" mapstructure:"quality"`
	Dedupe  dedupe.Config `yaml:"dedupe" mapstructure:"dedupe"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SyncConfig configures sync runs and the watch loop.
type SyncConfig struct {
	SourcesFile  string  `yaml:"sources_file" mapstructure:"sources_file"`
	RadiusKM     float64 `yaml:"radius_km" mapstructure:"radius_km"`
	MaxResults   int     `yaml:"max_results" mapstructure:"max_results"`
	IntervalMins int     `yaml:"interval_mins" mapstructure:"interval_mins"`
}

// QualityConfig configures validation and conflict resolution.
type QualityConfig struct {
	Bounds            quality.Bounds     `yaml:"bounds" mapstructure:"bounds"`
	SourcePreferences map[string]float64 `yaml:"source_preferences" mapstructure:"source_preferences"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// ExportConfig configures spreadsheet export.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "catalog.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("sync.sources_file", "sources.yaml")
	v.SetDefault("sync.radius_km", 5.0)
	v.SetDefault("sync.max_results", 100)
	v.SetDefault("sync.interval_mins", 60)
	v.SetDefault("quality.bounds.min_price", 10_000)
	v.SetDefault("quality.bounds.max_price", 50_000_000)
	v.SetDefault("quality.bounds.region.lat_min", 49.0)
	v.SetDefault("quality.bounds.region.lat_max", 61.0)
	v.SetDefault("quality.bounds.region.lon_min", -8.0)
	v.SetDefault("quality.bounds.region.lon_max", 2.0)
	v.SetDefault("quality.bounds.max_bedrooms", 20)
	v.SetDefault("quality.bounds.max_bathrooms", 10)
	v.SetDefault("quality.bounds.fresh_days", 7)
	v.SetDefault("quality.bounds.stale_days", 30)
	v.SetDefault("quality.source_preferences", map[string]float64{
		"rightmove": 0.6,
		"zoopla":    0.5,
		"bulkfeed":  0.4,
	})
	v.SetDefault("dedupe.address_threshold", 0.85)
	v.SetDefault("dedupe.exact_distance_km", 0.05)
	v.SetDefault("dedupe.price_band", 0.10)
	v.SetDefault("dedupe.match_threshold", 0.7)
	v.SetDefault("dedupe.high_confidence", 0.9)
	v.SetDefault("server.port", 8080)
	v.SetDefault("export.output_dir", ".")
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

// Validate checks the configuration required by a command mode. Modes:
// "sync" and "watch" need a reachable store and a sources file, "serve"
// additionally needs a listen port, "export" and "validate" need only
// the store.
func (c *Config) Validate(mode string) error {
	var problems []string

	needsStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				problems = append(problems, "store.sqlite_path is required for the sqlite driver")
			}
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "sync", "watch":
		needsStore()
		if c.Sync.SourcesFile == "" {
			problems = append(problems, "sync.sources_file is required")
		}
		if mode == "watch" && c.Sync.IntervalMins <= 0 {
			problems = append(problems, "sync.interval_mins must be > 0")
		}
	case "serve":
		needsStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "export", "validate", "migrate":
		needsStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Sync.RadiusKM < 0 {
		problems = append(problems, "sync.radius_km must be >= 0")
	}
	if c.Dedupe.MatchThreshold < 0 || c.Dedupe.MatchThreshold > 1 {
		problems = append(problems, "dedupe.match_threshold must be between 0 and 1")
	}
	if c.Dedupe.HighConfidence < c.Dedupe.MatchThreshold {
		problems = append(problems, "dedupe.high_confidence must be >= dedupe.match_threshold")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
