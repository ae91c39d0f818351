package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/astraea/go/internal/dbconfig"
)

// Config is the agent configuration loaded from config.yaml.
type Config struct {
	API struct {
		URL      string `yaml:"url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"api"`

	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`

	Sync struct {
		Interval      time.Duration `yaml:"interval"`
		SubmitTimeout time.Duration `yaml:"submit_timeout"`
	} `yaml:"sync"`

	Refresh struct {
		Dashboard string        `yaml:"dashboard"`
		EventKey  string        `yaml:"event_key"`
		Interval  time.Duration `yaml:"interval"`
	} `yaml:"refresh"`

	Connectivity struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"connectivity"`

	Gateway struct {
		Enabled        bool     `yaml:"enabled"`
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"gateway"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		Station       string `yaml:"station"`
	} `yaml:"nats"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

const (
	defaultRefreshInterval      = 10 * time.Second
	defaultConnectivityInterval = 10 * time.Second
	defaultSubmitTimeout        = 15 * time.Second
)

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.API.URL = "http://localhost:5000"
	cfg.Storage.Driver = string(dbconfig.DriverSQLite)
	cfg.Sync.SubmitTimeout = defaultSubmitTimeout
	cfg.Refresh.Dashboard = "admin"
	cfg.Refresh.Interval = defaultRefreshInterval
	cfg.Connectivity.Interval = defaultConnectivityInterval
	cfg.Gateway.Enabled = true
	cfg.Gateway.Port = "8081"
	cfg.Gateway.AllowedOrigins = []string{"*"}
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.SubjectPrefix = "astraea.events"
	cfg.Log.Level = "info"
	return cfg
}

// loadConfig reads path over the defaults and applies environment
// overrides. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.applyEnv()
	config.normalize()
	return config, nil
}

// normalize replaces unusable durations with defaults. A zero sync
// interval is kept; it disables periodic drains.
func (c *Config) normalize() {
	if c.Refresh.Interval <= 0 {
		log.Warn().Dur("interval", c.Refresh.Interval).Msg("refresh interval must be positive, using default")
		c.Refresh.Interval = defaultRefreshInterval
	}
	if c.Connectivity.Interval <= 0 {
		c.Connectivity.Interval = defaultConnectivityInterval
	}
	if c.Sync.SubmitTimeout <= 0 {
		c.Sync.SubmitTimeout = defaultSubmitTimeout
	}
	if c.Sync.Interval < 0 {
		c.Sync.Interval = 0
	}
}

func (c *Config) applyEnv() {
	c.API.URL = getEnv("ASTRAEA_API_URL", c.API.URL)
	c.API.Username = getEnv("ASTRAEA_USERNAME", c.API.Username)
	c.API.Password = getEnv("ASTRAEA_PASSWORD", c.API.Password)
	c.Storage.Driver = getEnv("ASTRAEA_DB_DRIVER", c.Storage.Driver)
	c.Storage.Path = getEnv("ASTRAEA_DB_PATH", c.Storage.Path)
	c.Sync.Interval = getEnvAsDuration("ASTRAEA_SYNC_INTERVAL", c.Sync.Interval)
	c.Refresh.EventKey = getEnv("ASTRAEA_EVENT", c.Refresh.EventKey)
	c.Refresh.Interval = getEnvAsDuration("ASTRAEA_REFRESH_INTERVAL", c.Refresh.Interval)
	c.Gateway.Port = getEnv("GATEWAY_PORT", c.Gateway.Port)
	if url := os.Getenv("NATS_URL"); url != "" {
		c.NATS.URL = url
		c.NATS.Enabled = true
	}
	c.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Log.Level))
}

// storageConfig merges the storage section with the DB_* environment.
func (c *Config) storageConfig() dbconfig.Config {
	cfg := dbconfig.NewConfigFromEnv()
	if c.Storage.Driver != "" {
		cfg.Driver = dbconfig.Driver(c.Storage.Driver)
	}
	if c.Storage.Path != "" {
		cfg.Path = c.Storage.Path
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if seconds := getEnvAsInt(key, -1); seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
