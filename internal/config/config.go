// Package config loads settings from defaults, an optional YAML file named
// by CONFIG_FILE, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort        int           `yaml:"http_port"`
	DBPath          string        `yaml:"db_path"`
	AuthSecret      string        `yaml:"auth_secret"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	DefaultProvider string        `yaml:"default_provider"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	LogLevel        string        `yaml:"log_level"`

	OneSecMail OneSecMailConfig `yaml:"onesecmail"`
	MailTm     MailTmConfig     `yaml:"mailtm"`
	TUI        TUIConfig        `yaml:"tui"`
}

type OneSecMailConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

type MailTmConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type TUIConfig struct {
	LogFile     string        `yaml:"log_file"`
	AutoRefresh time.Duration `yaml:"auto_refresh"`
}

// Load returns the effective configuration. A CONFIG_FILE that cannot be
// read or parsed is an error; bad environment values are ignored.
func Load() (Config, error) {
	cfg := defaults()

	if path := getEnvString("CONFIG_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() Config {
	return Config{
		HTTPPort:        3025,
		SessionTTL:      24 * time.Hour,
		DefaultProvider: "mailtm",
		PollInterval:    2 * time.Second,
		LogLevel:        "info",
		OneSecMail: OneSecMailConfig{
			BaseURL: "https://www.1secmail.com/api/v1/",
			Timeout: 10 * time.Second,
			Retries: 1,
		},
		MailTm: MailTmConfig{
			BaseURL: "https://api.mail.tm",
			Timeout: 15 * time.Second,
		},
		TUI: TUIConfig{
			LogFile:     "tempinbox.log",
			AutoRefresh: 8 * time.Second,
		},
	}
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.DBPath = getEnvString("DB_PATH", c.DBPath)
	c.AuthSecret = getEnvString("AUTH_SECRET", c.AuthSecret)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.DefaultProvider = strings.ToLower(getEnvString("DEFAULT_PROVIDER", c.DefaultProvider))
	c.PollInterval = getEnvDuration("POLL_INTERVAL", c.PollInterval)
	c.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", c.LogLevel))

	c.OneSecMail.BaseURL = getEnvString("ONESECMAIL_BASE_URL", c.OneSecMail.BaseURL)
	c.OneSecMail.Timeout = getEnvDuration("ONESECMAIL_TIMEOUT", c.OneSecMail.Timeout)
	c.OneSecMail.Retries = getEnvInt("ONESECMAIL_RETRIES", c.OneSecMail.Retries)
	c.MailTm.BaseURL = getEnvString("MAILTM_BASE_URL", c.MailTm.BaseURL)
	c.MailTm.Timeout = getEnvDuration("MAILTM_TIMEOUT", c.MailTm.Timeout)

	c.TUI.LogFile = getEnvString("TUI_LOG_FILE", c.TUI.LogFile)
	c.TUI.AutoRefresh = getEnvDuration("TUI_AUTO_REFRESH", c.TUI.AutoRefresh)
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("1500ms") or bare seconds ("2").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if parsed, err := time.ParseDuration(trimmed); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(trimmed); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
