package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "DAYBOOK"
	databaseURLEnv           = "DATABASE_URL"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabaseDriver    = "postgres"
	defaultMaxOpenConns      = 10
	defaultMaxIdleConns      = 5
	defaultConnMaxLifetime   = time.Hour
	defaultLogLevel          = "info"
	defaultServiceName       = "daybook-api"
	defaultShutdownTimeout   = 10 * time.Second
	supportedDatabaseDrivers = "postgres, sqlite"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabaseDriver  string
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
	StaticDir       string
	LogLevel        string
	ServiceName     string
	ShutdownTimeout time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()
	// The bare DATABASE_URL wins over the prefixed variant when both are set.
	_ = configViper.BindEnv("database.url", databaseURLEnv, envPrefix+"_DATABASE_URL")

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.shutdown_timeout", defaultShutdownTimeout)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	configViper.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	configViper.SetDefault("database.conn_max_lifetime", defaultConnMaxLifetime)
	configViper.SetDefault("database.auto_migrate", true)
	configViper.SetDefault("static.dir", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("service.name", defaultServiceName)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabaseDriver:  strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseURL:     configViper.GetString("database.url"),
		MaxOpenConns:    configViper.GetInt("database.max_open_conns"),
		MaxIdleConns:    configViper.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: configViper.GetDuration("database.conn_max_lifetime"),
		AutoMigrate:     configViper.GetBool("database.auto_migrate"),
		StaticDir:       configViper.GetString("static.dir"),
		LogLevel:        configViper.GetString("log.level"),
		ServiceName:     configViper.GetString("service.name"),
		ShutdownTimeout: configViper.GetDuration("http.shutdown_timeout"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("database.url is required (set %s)", databaseURLEnv)
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver %q is not one of %s", c.DatabaseDriver, supportedDatabaseDrivers)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("database connection limits must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("http.shutdown_timeout must be positive")
	}
	return nil
}
