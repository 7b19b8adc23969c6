// Package config loads the shell configuration from unichat.yaml plus
// UNICHAT_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"unichat/internal/domain"
)

type Config struct {
	API    APIConfig    `mapstructure:"api"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	User   UserConfig   `mapstructure:"user"`
	UI     UIConfig     `mapstructure:"ui"`
	Log    LogConfig    `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type UserConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type UIConfig struct {
	DefaultTab     string        `mapstructure:"default_tab"`
	StartLink      string        `mapstructure:"start_link"`
	ThreadPoll     time.Duration `mapstructure:"thread_poll"`
	HandoffPoll    time.Duration `mapstructure:"handoff_poll"`
	SearchDebounce time.Duration `mapstructure:"search_debounce"`
	PageSize       int           `mapstructure:"page_size"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultTabOrEcho returns the configured default tab, falling back to
// echo when the value is not a known tab.
func (c UIConfig) DefaultTabOrEcho() domain.Tab {
	value := strings.ToLower(strings.TrimSpace(c.DefaultTab))
	if !domain.ValidTab(value) {
		return domain.TabEcho
	}
	return domain.Tab(value)
}

// Load reads the config file (optional; defaults apply when absent) and
// environment overrides, then clamps values into working ranges.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Every key gets a default so AutomaticEnv can resolve it during
	// Unmarshal.
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.token", "")
	v.SetDefault("api.request_timeout", 15*time.Second)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("user.id", "")
	v.SetDefault("user.name", "me")
	v.SetDefault("ui.start_link", "")
	v.SetDefault("ui.default_tab", string(domain.TabEcho))
	v.SetDefault("ui.thread_poll", 30*time.Second)
	v.SetDefault("ui.handoff_poll", 60*time.Second)
	v.SetDefault("ui.search_debounce", 300*time.Millisecond)
	v.SetDefault("ui.page_size", 50)
	v.SetDefault("log.file", "unichat.log")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("UNICHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, missing := err.(viper.ConfigFileNotFoundError); !missing && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = key
	}

	clamp(&cfg)
	return &cfg, nil
}

func clamp(cfg *Config) {
	cfg.API.RequestTimeout = clampDuration(cfg.API.RequestTimeout, time.Second, 2*time.Minute)
	cfg.UI.ThreadPoll = clampDuration(cfg.UI.ThreadPoll, 5*time.Second, 10*time.Minute)
	cfg.UI.HandoffPoll = clampDuration(cfg.UI.HandoffPoll, 10*time.Second, 10*time.Minute)
	cfg.UI.SearchDebounce = clampDuration(cfg.UI.SearchDebounce, 100*time.Millisecond, 2*time.Second)
	if cfg.UI.PageSize < 10 {
		cfg.UI.PageSize = 10
	}
	if cfg.UI.PageSize > 200 {
		cfg.UI.PageSize = 200
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "unichat.log"
	}
}

func clampDuration(value, low, high time.Duration) time.Duration {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
