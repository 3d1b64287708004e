package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreBolt   = "bolt"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type AppConfig struct {
	// API
	APIURL      string
	HTTPTimeout time.Duration

	// Session persistence
	StoreDriver string
	StorePath   string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	RedisPrefix string

	// Session lifecycle
	RefreshInterval   time.Duration
	InactivityCheck   time.Duration
	InactivityTimeout time.Duration
	Revalidate        bool

	// Logging
	LogLevel  string
	LogFormat string
}

// fileConfig is the YAML overlay. Durations are Go duration strings.
type fileConfig struct {
	API struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Store struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       *int   `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Session struct {
		RefreshInterval   string `yaml:"refresh_interval"`
		InactivityCheck   string `yaml:"inactivity_check"`
		InactivityTimeout string `yaml:"inactivity_timeout"`
		Revalidate        *bool  `yaml:"revalidate"`
	} `yaml:"session"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() AppConfig {
	return AppConfig{
		APIURL:            "http://localhost:8000/api/v1",
		HTTPTimeout:       10 * time.Second,
		StoreDriver:       StoreBolt,
		StorePath:         defaultStorePath(),
		RedisAddr:         "localhost:6379",
		RedisPrefix:       "portfolio:session:",
		RefreshInterval:   25 * time.Minute,
		InactivityCheck:   60 * time.Second,
		InactivityTimeout: 30 * time.Minute,
		LogLevel:          "warn",
		LogFormat:         "console",
	}
}

// Load builds the config from defaults, then the YAML file at path (or
// $PORTFOLIO_CONFIG), then environment variables. Callers apply their own
// overrides and then call Validate.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("PORTFOLIO_CONFIG")
	}
	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return AppConfig{}, err
		}
	}

	if err := cfg.overlayEnv(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.APIURL, fc.API.URL)
	setString(&c.StoreDriver, fc.Store.Driver)
	setString(&c.StorePath, fc.Store.Path)
	setString(&c.RedisAddr, fc.Redis.Addr)
	setString(&c.RedisPass, fc.Redis.Password)
	setString(&c.RedisPrefix, fc.Redis.Prefix)
	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.LogFormat, fc.Log.Format)
	if fc.Redis.DB != nil {
		c.RedisDB = *fc.Redis.DB
	}
	if fc.Session.Revalidate != nil {
		c.Revalidate = *fc.Session.Revalidate
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"api.timeout", fc.API.Timeout, &c.HTTPTimeout},
		{"session.refresh_interval", fc.Session.RefreshInterval, &c.RefreshInterval},
		{"session.inactivity_check", fc.Session.InactivityCheck, &c.InactivityCheck},
		{"session.inactivity_timeout", fc.Session.InactivityTimeout, &c.InactivityTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.field, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *AppConfig) overlayEnv() error {
	c.APIURL = getEnv("API_URL", c.APIURL)
	c.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", c.StoreDriver))
	c.StorePath = getEnv("STORE_PATH", c.StorePath)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPass = getEnv("REDIS_PASS", c.RedisPass)
	c.RedisPrefix = getEnv("REDIS_PREFIX", c.RedisPrefix)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	var err error
	if c.RedisDB, err = getEnvInt("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	if c.Revalidate, err = getEnvBool("SESSION_REVALIDATE", c.Revalidate); err != nil {
		return err
	}
	if c.HTTPTimeout, err = getEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout); err != nil {
		return err
	}
	if c.RefreshInterval, err = getEnvDuration("SESSION_REFRESH_INTERVAL", c.RefreshInterval); err != nil {
		return err
	}
	if c.InactivityCheck, err = getEnvDuration("SESSION_INACTIVITY_CHECK", c.InactivityCheck); err != nil {
		return err
	}
	if c.InactivityTimeout, err = getEnvDuration("SESSION_INACTIVITY_TIMEOUT", c.InactivityTimeout); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the console cannot run with.
func (c AppConfig) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api url must be set")
	}
	switch c.StoreDriver {
	case StoreBolt:
		if c.StorePath == "" {
			return fmt.Errorf("store path must be set for the bolt driver")
		}
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unknown store driver %q (want bolt, redis or memory)", c.StoreDriver)
	}
	for name, d := range map[string]time.Duration{
		"http timeout":       c.HTTPTimeout,
		"refresh interval":   c.RefreshInterval,
		"inactivity check":   c.InactivityCheck,
		"inactivity timeout": c.InactivityTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "portfolio-console", "session.db")
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
