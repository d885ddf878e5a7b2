package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/routineflow/routineflow/internal/consts"
)

type (
	Config struct {
		Server  ServerConfig  `yaml:"server"`
		Logging LoggingConfig `yaml:"logging"`
		Store   StoreConfig   `yaml:"store"`
		Notify  NotifyConfig  `yaml:"notify"`
		Suggest SuggestConfig `yaml:"suggest"`
		Digest  DigestConfig  `yaml:"digest"`
	}

	ServerConfig struct {
		Bind           string `yaml:"bind"`
		RequestTimeout int    `yaml:"request_timeout"` // seconds
		MetricsBind    string `yaml:"metrics_bind"`
	}

	LoggingConfig struct {
		Level      string `yaml:"level"`  // debug, info, warn, error
		Format     string `yaml:"format"` // json, text
		Output     string `yaml:"output"` // stdout, file, both
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"` // MB
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"` // days
	}

	StoreConfig struct {
		// Path of the routine collection blob. Defaults to
		// ~/.routineflow/routines.json.
		Path string `yaml:"path"`
	}

	NotifyConfig struct {
		// Sink selects the delivery backends, comma separated: "telegram",
		// "log", or both ("telegram,log"). Empty means notifications are
		// unsupported and every permission check reports denied.
		Sink string `yaml:"sink"`

		// AppURL is where the notification's default (body click / Open)
		// action points.
		AppURL string `yaml:"app_url"`

		Icon string `yaml:"icon"`

		Telegram TelegramSinkConfig `yaml:"telegram"`
	}

	TelegramSinkConfig struct {
		Token  string `yaml:"token"`
		ChatID string `yaml:"chat_id"`
	}

	SuggestConfig struct {
		Enabled    bool   `yaml:"enabled"`
		BaseURL    string `yaml:"base_url"`
		Model      string `yaml:"model"`
		TimeoutSec int    `yaml:"timeout_sec"`
	}

	DigestConfig struct {
		Enabled bool `yaml:"enabled"`
		// Schedule is a standard 5-field cron expression, e.g. "0 8 * * *".
		Schedule string `yaml:"schedule"`
	}
)

// Sinks returns the cleaned list of configured sink names, empty when
// notifications are unsupported.
func (c NotifyConfig) Sinks() []string {
	var out []string
	for _, name := range strings.Split(c.Sink, ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Load reads and validates the config file at path. An empty path falls back
// to the default location; a missing file yields defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = consts.DefaultConfigPath()
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setInstance(cfg)
	return cfg, nil
}

// Validate fills defaults and rejects inconsistent sections.
func (c *Config) Validate() error {
	if c.Server.Bind == "" {
		c.Server.Bind = "0.0.0.0:8080"
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 30
	}
	if c.Server.MetricsBind == "" {
		c.Server.MetricsBind = "0.0.0.0:9100"
	}

	if c.Store.Path == "" {
		c.Store.Path = consts.DefaultRoutinesPath()
	}

	for _, name := range c.Notify.Sinks() {
		switch name {
		case "log":
		case "telegram":
			if c.Notify.Telegram.Token == "" {
				return fmt.Errorf("notify: telegram sink requires a token")
			}
			if c.Notify.Telegram.ChatID == "" {
				return fmt.Errorf("notify: telegram sink requires a chat_id")
			}
		default:
			return fmt.Errorf("notify: unknown sink %q", name)
		}
	}

	if c.Suggest.Enabled {
		if c.Suggest.BaseURL == "" {
			c.Suggest.BaseURL = "http://localhost:11434"
		}
		if c.Suggest.Model == "" {
			return fmt.Errorf("suggest: model is required when enabled")
		}
		if c.Suggest.TimeoutSec <= 0 {
			c.Suggest.TimeoutSec = 60
		}
	}

	if c.Digest.Enabled && strings.TrimSpace(c.Digest.Schedule) == "" {
		return fmt.Errorf("digest: schedule is required when enabled")
	}

	return nil
}
