// Package config loads settings for the server and the client commands.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mytodos/internal/credentials"
)

// Config holds every setting. Values come from defaults, then an optional
// YAML file, then environment variables.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Port   string `yaml:"port"`
	DBPath string `yaml:"db_path"`
}

type ClientConfig struct {
	BaseURL         string        `yaml:"base_url"`
	CredentialsPath string        `yaml:"credentials_path"`
	Timeout         time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:   "8080",
			DBPath: "./mytodos.db",
		},
		Client: ClientConfig{
			BaseURL:         "http://localhost:8080",
			CredentialsPath: credentials.DefaultPath(),
			Timeout:         10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. An empty path skips the file; a path that
// does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.DBPath = getEnv("DB_PATH", cfg.Server.DBPath)
	cfg.Client.BaseURL = getEnv("MYTODOS_URL", cfg.Client.BaseURL)
	cfg.Client.CredentialsPath = getEnv("MYTODOS_CREDENTIALS", cfg.Client.CredentialsPath)
	cfg.Log.Level = getEnv("MYTODOS_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("MYTODOS_LOG_FORMAT", cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server port is required")
	}
	if strings.TrimSpace(c.Server.DBPath) == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.Client.BaseURL) == "" {
		return errors.New("server URL is required")
	}
	if c.Client.Timeout <= 0 {
		return errors.New("client timeout must be positive")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
