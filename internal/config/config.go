package config

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/medforum/medforum/internal/platform/db"
)

type Config struct {
	Env              string        `mapstructure:"ENV"`
	DatabaseDriver   string        `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int           `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int           `mapstructure:"DB_MIN_CONNS"`
	DBIsolation      string        `mapstructure:"DB_ISOLATION"`
	DBForeignKeys    bool          `mapstructure:"DB_FOREIGN_KEYS"`
	DBOpTimeout      time.Duration `mapstructure:"DB_OP_TIMEOUT"`
	DBBusyTimeout    time.Duration `mapstructure:"DB_BUSY_TIMEOUT"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogFile          string        `mapstructure:"LOG_FILE"`
	PHIEncryptionKey string        `mapstructure:"PHI_ENCRYPTION_KEY"`
}

var keys = []string{
	"ENV",
	"DATABASE_DRIVER",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"DB_ISOLATION",
	"DB_FOREIGN_KEYS",
	"DB_OP_TIMEOUT",
	"DB_BUSY_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FILE",
	"PHI_ENCRYPTION_KEY",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE_DRIVER", string(db.DriverSQLite))
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_ISOLATION", "default")
	v.SetDefault("DB_FOREIGN_KEYS", true)
	v.SetDefault("DB_OP_TIMEOUT", "5s")
	v.SetDefault("DB_BUSY_TIMEOUT", "5s")
	v.SetDefault("LOG_LEVEL", "info")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when running with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Driver returns the parsed DATABASE_DRIVER.
func (c *Config) Driver() (db.Driver, error) {
	return db.ParseDriver(c.DatabaseDriver)
}

// Isolation returns the parsed DB_ISOLATION.
func (c *Config) Isolation() (sql.IsolationLevel, error) {
	return db.ParseIsolation(c.DBIsolation)
}

// Validate checks that the configuration is safe to run. In production,
// PHI_ENCRYPTION_KEY is required and must be a valid 64-character hex
// string (32 bytes when decoded).
func (c *Config) Validate() error {
	if _, err := c.Driver(); err != nil {
		return fmt.Errorf("DATABASE_DRIVER: %w", err)
	}
	if _, err := c.Isolation(); err != nil {
		return fmt.Errorf("DB_ISOLATION: %w", err)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DBMaxConns)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DBOpTimeout < 0 {
		return fmt.Errorf("DB_OP_TIMEOUT must not be negative, got %s", c.DBOpTimeout)
	}
	if c.DBBusyTimeout < 0 {
		return fmt.Errorf("DB_BUSY_TIMEOUT must not be negative, got %s", c.DBBusyTimeout)
	}

	if c.IsProduction() && c.PHIEncryptionKey == "" {
		return fmt.Errorf("PHI_ENCRYPTION_KEY is required in production")
	}
	if c.PHIEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.PHIEncryptionKey)
		if err != nil {
			return fmt.Errorf("PHI_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("PHI_ENCRYPTION_KEY must be 64 hex characters (32 bytes), got %d bytes", len(keyBytes))
		}
	}
	return nil
}
