// Package config loads server configuration from environment variables and an
// optional .env file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Department served by the triage scheduler.
	DefaultDepartment string `mapstructure:"DEFAULT_DEPARTMENT"`

	// Wait-time estimation inputs.
	AvgServiceMinutes int `mapstructure:"AVG_SERVICE_MINUTES"`
	RoomsAvailable    int `mapstructure:"ROOMS_AVAILABLE"`
}

// Load reads configuration from the environment and an optional .env file.
// DATABASE_URL is optional: when empty the server runs on in-memory stores,
// which is intended for demos and local development.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DEFAULT_DEPARTMENT", "emergency")
	v.SetDefault("AVG_SERVICE_MINUTES", 30)
	v.SetDefault("ROOMS_AVAILABLE", 1)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("DEFAULT_DEPARTMENT")
	v.BindEnv("AVG_SERVICE_MINUTES")
	v.BindEnv("ROOMS_AVAILABLE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UseMemoryStores reports whether the server should run on in-memory
// repositories instead of PostgreSQL.
func (c *Config) UseMemoryStores() bool {
	return c.DatabaseURL == ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.IsProduction() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if c.DefaultDepartment == "" {
		return fmt.Errorf("DEFAULT_DEPARTMENT must not be empty")
	}
	if c.AvgServiceMinutes < 1 {
		return fmt.Errorf("AVG_SERVICE_MINUTES must be at least 1, got %d", c.AvgServiceMinutes)
	}
	if c.RoomsAvailable < 1 {
		return fmt.Errorf("ROOMS_AVAILABLE must be at least 1, got %d", c.RoomsAvailable)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
