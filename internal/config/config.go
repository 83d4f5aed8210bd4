// Package config loads bot settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModel        = "gpt-4o-mini"
	DefaultHistoryLimit = 10
	DefaultLogLevel     = "info"
	DefaultMetricsAddr  = ":2112"
)

type Config struct {
	OpenAI struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Telegram struct {
		Token string `yaml:"token"`
	} `yaml:"telegram"`

	Search struct {
		GoogleAPIKey    string `yaml:"google_api_key"`
		GoogleCX        string `yaml:"google_cx"`
		FirecrawlAPIKey string `yaml:"firecrawl_api_key"`
	} `yaml:"search"`

	NATSURL         string `yaml:"nats_url"`
	RedisAddr       string `yaml:"redis_addr"`
	TemporalAddress string `yaml:"temporal_address"`
	MetricsAddr     string `yaml:"metrics_addr"`
	LogLevel        string `yaml:"log_level"`
	HistoryLimit    int    `yaml:"history_limit"`
}

// Load reads path when it exists, then applies the environment. An empty
// path skips the file.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.defaults()
	return cfg, nil
}

// FromEnv loads the configuration file named by ROOST_CONFIG, if any, and the
// environment.
func FromEnv() (Config, error) {
	return Load(os.Getenv("ROOST_CONFIG"))
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_MODEL", &c.OpenAI.Model)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	str("GOOGLE_SEARCH_API_KEY", &c.Search.GoogleAPIKey)
	str("GOOGLE_SEARCH_CX", &c.Search.GoogleCX)
	str("FIRECRAWL_API_KEY", &c.Search.FirecrawlAPIKey)
	str("NATS_URL", &c.NATSURL)
	str("REDIS_ADDR", &c.RedisAddr)
	str("TEMPORAL_ADDRESS", &c.TemporalAddress)
	str("LOG_LEVEL", &c.LogLevel)
	str("METRICS_ADDR", &c.MetricsAddr)

	if v, ok := lookup("HISTORY_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HISTORY_LIMIT: %w", err)
		}
		c.HistoryLimit = n
	}
	return nil
}

func (c *Config) defaults() {
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = DefaultModel
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// RequireTelegram checks the settings every telegram bot needs.
func (c Config) RequireTelegram() error {
	var err error
	if c.Telegram.Token == "" {
		err = errors.Join(err, errors.New("TELEGRAM_BOT_TOKEN is not set"))
	}
	if c.OpenAI.APIKey == "" {
		err = errors.Join(err, errors.New("OPENAI_API_KEY is not set"))
	}
	return err
}
