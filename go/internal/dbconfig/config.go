package dbconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Driver selects the local storage backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

// Config holds storage connection settings.
type Config struct {
	Driver Driver

	// SQLite
	Path string

	// Postgres
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewConfigFromEnv reads ASTRAEA_DB_* and DB_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	return Config{
		Driver:   Driver(getEnv("ASTRAEA_DB_DRIVER", string(DriverSQLite))),
		Path:     getEnv("ASTRAEA_DB_PATH", defaultPath()),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "astraea"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Validate checks that the selected driver has what it needs.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite driver needs a path")
		}
	case DriverPostgres:
		if c.Host == "" || c.Database == "" {
			return fmt.Errorf("postgres driver needs host and database")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}
	return nil
}

func defaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "astraea.db"
	}
	return filepath.Join(dir, "astraea", "astraea.db")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
