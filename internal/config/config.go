// Package config loads service settings from defaults, a YAML file, a .env
// file and ZALOGA_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/zaloga/internal/alert"
	"github.com/erazemk/zaloga/internal/model"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ZALOGA_"

// Config is the full service configuration.
type Config struct {
	DB     string       `yaml:"db"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Auth   AuthConfig   `yaml:"auth"`
	Alerts AlertConfig  `yaml:"alerts"`
	CORS   CORSConfig   `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AuthConfig holds account and token settings.
type AuthConfig struct {
	AdminUsername string        `yaml:"admin_username"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// AlertConfig holds notification engine settings.
type AlertConfig struct {
	DefaultThreshold     int           `yaml:"default_threshold"`
	ExpirationWindowDays int           `yaml:"expiration_window_days"`
	DueWindowDays        int           `yaml:"due_window_days"`
	Cooldown             time.Duration `yaml:"cooldown"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	SweepTimeout         time.Duration `yaml:"sweep_timeout"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DB: "zaloga.sqlite3",
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Auth: AuthConfig{
			AdminUsername: "Admin",
			TokenTTL:      7 * 24 * time.Hour,
		},
		Alerts: AlertConfig{
			DefaultThreshold:     model.DefaultThreshold,
			ExpirationWindowDays: 30,
			DueWindowDays:        7,
			SweepInterval:        5 * time.Minute,
			SweepTimeout:         30 * time.Second,
		},
	}
}

// Load builds the configuration. A missing config or env file is not an
// error; their defaults apply.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading env file: %w", err)
		}
		if m != nil {
			dotenv = m
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("DB", &c.DB)
	str("ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)
	str("ADMIN_USER", &c.Auth.AdminUsername)
	dur("TOKEN_TTL", &c.Auth.TokenTTL)
	num("DEFAULT_THRESHOLD", &c.Alerts.DefaultThreshold)
	num("EXPIRATION_WINDOW_DAYS", &c.Alerts.ExpirationWindowDays)
	num("DUE_WINDOW_DAYS", &c.Alerts.DueWindowDays)
	dur("COOLDOWN", &c.Alerts.Cooldown)
	dur("SWEEP_INTERVAL", &c.Alerts.SweepInterval)
	dur("SWEEP_TIMEOUT", &c.Alerts.SweepTimeout)

	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok {
		c.CORS.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORS.AllowedOrigins = append(c.CORS.AllowedOrigins, o)
			}
		}
	}
	return errors.Join(errs...)
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server addr is required"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Alerts.DefaultThreshold < 0 {
		errs = append(errs, errors.New("alerts.default_threshold must not be negative"))
	}
	if c.Alerts.ExpirationWindowDays < 0 || c.Alerts.DueWindowDays < 0 {
		errs = append(errs, errors.New("alert windows must not be negative"))
	}
	if c.Alerts.Cooldown < 0 || c.Alerts.SweepInterval < 0 || c.Alerts.SweepTimeout < 0 {
		errs = append(errs, errors.New("alert durations must not be negative"))
	}
	return errors.Join(errs...)
}

// Engine returns the alert engine settings.
func (a AlertConfig) Engine() alert.Config {
	return alert.Config{
		DefaultThreshold: a.DefaultThreshold,
		ExpirationWindow: time.Duration(a.ExpirationWindowDays) * 24 * time.Hour,
		DueWindow:        time.Duration(a.DueWindowDays) * 24 * time.Hour,
		Cooldown:         a.Cooldown,
	}
}
