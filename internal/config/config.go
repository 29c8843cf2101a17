package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerAddr     string `mapstructure:"SERVER_ADDR"`
	GinMode        string `mapstructure:"GIN_MODE"`
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	ChatWriteTimeout      time.Duration `mapstructure:"CHAT_WRITE_TIMEOUT"`
	ChatMaxMessageBytes   int64         `mapstructure:"CHAT_MAX_MESSAGE_BYTES"`
	ChatFanoutConcurrency int           `mapstructure:"CHAT_FANOUT_CONCURRENCY"`
	ChatCloseSuperseded   bool          `mapstructure:"CHAT_CLOSE_SUPERSEDED"`
}

var AppConfig *Config

var defaults = map[string]any{
	"SERVER_ADDR":             ":8080",
	"GIN_MODE":                "debug",
	"DATABASE_DRIVER":         "postgres",
	"DATABASE_URL":            "",
	"JWT_SECRET":              "",
	"LOG_LEVEL":               "info",
	"LOG_PRETTY":              false,
	"CHAT_WRITE_TIMEOUT":      "10s",
	"CHAT_MAX_MESSAGE_BYTES":  65536,
	"CHAT_FANOUT_CONCURRENCY": 16,
	"CHAT_CLOSE_SUPERSEDED":   false,
}

// LoadConfig loads the configuration from a .env file in dir and environment
// variables. Environment variables win over the file.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = &cfg
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.GinMode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("GIN_MODE must be debug, release or test, got %q", c.GinMode)
	}
	if c.ChatFanoutConcurrency < 1 {
		return fmt.Errorf("CHAT_FANOUT_CONCURRENCY must be positive, got %d", c.ChatFanoutConcurrency)
	}
	return nil
}
