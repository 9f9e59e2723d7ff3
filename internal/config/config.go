// Package config loads portal configuration from file and environment and
// initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Backend   BackendConfig   `yaml:"backend" mapstructure:"backend"`
	NEPAssist ServiceConfig   `yaml:"nepassist" mapstructure:"nepassist"`
	IPaC      ServiceConfig   `yaml:"ipac" mapstructure:"ipac"`
	Screening ScreeningConfig `yaml:"screening" mapstructure:"screening"`
	Drafts    DraftsConfig    `yaml:"drafts" mapstructure:"drafts"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// BackendConfig holds the PostgREST backend settings.
type BackendConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	AnonKey string `yaml:"anon_key" mapstructure:"anon_key"`
}

// ServiceConfig holds settings for one geospatial screening service.
type ServiceConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScreeningConfig tunes screening runs.
type ScreeningConfig struct {
	BufferMiles float64 `yaml:"buffer_miles" mapstructure:"buffer_miles"`
}

// DraftsConfig configures the local draft store.
type DraftsConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	Path        string     `yaml:"path" mapstructure:"path"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the local portal server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// AllowedOrigins lists origins permitted to call the JSON API.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("PERMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("nepassist.base_url", "https://nepassisttool.epa.gov/nepassist")
	v.SetDefault("ipac.base_url", "https://ipac.ecosphere.fws.gov/location/api")
	v.SetDefault("screening.buffer_miles", 1.0)
	v.SetDefault("drafts.driver", "sqlite")
	v.SetDefault("drafts.path", "permit-drafts.db")

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

// Validate checks the settings a command mode depends on. "remote" covers
// commands that talk to the PostgREST backend; "serve" additionally needs a
// listen port; "draft" covers local-only draft commands.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireBackend := func() {
		if c.Backend.URL == "" {
			problems = append(problems, "backend.url is required")
		}
		if c.Backend.AnonKey == "" {
			problems = append(problems, "backend.anon_key is required")
		}
	}

	switch mode {
	case "remote":
		requireBackend()
	case "serve":
		requireBackend()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "draft":
		switch c.Drafts.Driver {
		case "sqlite":
			if c.Drafts.Path == "" {
				problems = append(problems, "drafts.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Drafts.DatabaseURL == "" {
				problems = append(problems, "drafts.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, "drafts.driver must be sqlite or postgres")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Screening.BufferMiles < 0 {
		problems = append(problems, "screening.buffer_miles must be >= 0")
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
