/*
Package config loads server configuration.

SOURCES (later wins):
  1. Defaults below
  2. contracts.yaml in the working directory or /etc/contract-engine
  3. .env file (loaded into the process environment)
  4. Environment variables with prefix CONTRACTS_ (server.port => CONTRACTS_SERVER_PORT)
  5. Command-line flags bound by cmd/server

KEYS:
  server.port             HTTP port (default 8080)
  database.path           SQLite path, ":memory:" allowed (default ./data/contracts.db)
  log.level               debug | info | warn | error (default info)
  scheduler.enabled       Background renewal reminders (default true)
  scheduler.interval      Check interval, Go duration (default 1h)
  billing.currency        Currency for records without one (default BRL)
  billing.day_count       Proration convention: commercial_30 | actual
  cors.allowed_origins    Allowed CORS origins
*/
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "CONTRACTS"

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Billing   BillingConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Path string
}

type LogConfig struct {
	Level string
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

type BillingConfig struct {
	Currency string
	DayCount string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "./data/contracts.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("billing.currency", "BRL")
	v.SetDefault("billing.day_count", "commercial_30")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
}

// NewViper returns a viper instance wired to defaults, config file and
// environment. Flags are bound by the caller.
func NewViper() *viper.Viper {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.SetConfigName("contracts")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/contract-engine")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes every key.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}
	return FromViper(v)
}

// FromViper decodes an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server:    ServerConfig{Port: v.GetInt("server.port")},
		Database:  DatabaseConfig{Path: v.GetString("database.path")},
		Log:       LogConfig{Level: strings.ToLower(v.GetString("log.level"))},
		Scheduler: SchedulerConfig{Enabled: v.GetBool("scheduler.enabled"), Interval: v.GetDuration("scheduler.interval")},
		Billing:   BillingConfig{Currency: strings.ToUpper(v.GetString("billing.currency")), DayCount: v.GetString("billing.day_count")},
		CORS:      CORSConfig{AllowedOrigins: v.GetStringSlice("cors.allowed_origins")},
	}
	return cfg, cfg.Validate()
}

// Default returns the configuration with every default applied, ignoring
// the environment. The error reports defaults that fail validation.
func Default() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	return FromViper(v)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return errors.Newf("scheduler.interval must be positive, got %s", c.Scheduler.Interval)
	}
	switch c.Billing.DayCount {
	case "commercial_30", "actual":
	default:
		return errors.Newf("billing.day_count %q must be commercial_30 or actual", c.Billing.DayCount)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf("log.level %q is not supported", c.Log.Level)
	}
	return nil
}
