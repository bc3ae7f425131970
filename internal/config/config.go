package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "POLLPILOT"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "pollpilot.db"
	defaultLogLevel          = "info"
	defaultTokenTTLMinutes   = 60
	defaultCreatePollPerHour = 10
	defaultLoginPerMinute    = 5
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	SigningSecret     string
	TokenTTL          time.Duration
	LogLevel          string
	CreatePollPerHour int
	LoginPerMinute    int
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

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("ratelimit.create_per_hour", defaultCreatePollPerHour)
	configViper.SetDefault("ratelimit.login_per_minute", defaultLoginPerMinute)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenTTL:          time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		LogLevel:          configViper.GetString("log.level"),
		CreatePollPerHour: configViper.GetInt("ratelimit.create_per_hour"),
		LoginPerMinute:    configViper.GetInt("ratelimit.login_per_minute"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if c.CreatePollPerHour <= 0 {
		return fmt.Errorf("ratelimit.create_per_hour must be positive")
	}
	if c.LoginPerMinute <= 0 {
		return fmt.Errorf("ratelimit.login_per_minute must be positive")
	}
	return nil
}
