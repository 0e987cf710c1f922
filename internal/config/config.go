// Package config loads EcoCharge settings from defaults, an optional YAML file,
// a .env file and ECOCHARGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "ECOCHARGE"

// Config holds all application configuration.
type Config struct {
	DBPath   string         `mapstructure:"db_path"`
	Debug    bool           `mapstructure:"debug"`
	Server   ServerConfig   `mapstructure:"server"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// ForecastConfig holds upstream weather API settings.
type ForecastConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Days           int           `mapstructure:"days"`
	HorizonHours   int           `mapstructure:"horizon_hours"`
	SolarFields    []string      `mapstructure:"solar_fields"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// JobsConfig holds background job schedules.
type JobsConfig struct {
	CachePruneSchedule string `mapstructure:"cache_prune_schedule"`
}

// DefaultsConfig holds the coordinates used when no profile supplies them.
type DefaultsConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// Dir returns the per-user configuration directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ecocharge"
	}
	return filepath.Join(home, ".ecocharge")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", filepath.Join(Dir(), "ecocharge.db"))
	v.SetDefault("debug", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("forecast.base_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("forecast.timeout", 15*time.Second)
	v.SetDefault("forecast.days", 3)
	v.SetDefault("forecast.horizon_hours", 72)
	v.SetDefault("forecast.solar_fields", []string{"shortwave_radiation", "solar_radiation"})
	v.SetDefault("forecast.cache_ttl", 15*time.Minute)
	v.SetDefault("forecast.rate_limit_rps", 1.0)
	v.SetDefault("forecast.rate_limit_burst", 5)

	v.SetDefault("jobs.cache_prune_schedule", "@every 5m")

	v.SetDefault("defaults.latitude", 19.07)
	v.SetDefault("defaults.longitude", 72.87)
}

// Load reads configuration. cfgFile may be empty, in which case
// $HOME/.ecocharge/config.yaml is used if it exists.
func Load(cfgFile string) (*Config, error) {
	// A missing .env is normal
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
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

// Validate checks values that would make the service unusable
func (c *Config) Validate() error {
	if len(c.Forecast.SolarFields) == 0 {
		return errors.New("forecast.solar_fields must name at least one field")
	}
	if c.Forecast.Days <= 0 {
		return errors.New("forecast.days must be positive")
	}
	if c.Forecast.Timeout <= 0 {
		return errors.New("forecast.timeout must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
