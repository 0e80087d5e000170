// Package config loads wabot configuration from a JSON file with
// environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Bot       BotConfig       `json:"bot"`
	Transport TransportConfig `json:"transport"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Logging   LoggingConfig   `json:"logging"`
}

type BotConfig struct {
	// Chat is the name of the chat the bot attaches to on startup.
	Chat          string `json:"chat" env:"WABOT_CHAT"`
	CommandPrefix string `json:"command_prefix" env:"WABOT_COMMAND_PREFIX"`

	// Exactly one error mode is active; precedence when several flags
	// are set: disable_error_handling, debug_exception, debug_traceback.
	DebugException       bool `json:"debug_exception" env:"WABOT_DEBUG_EXCEPTION"`
	DebugTraceback       bool `json:"debug_traceback" env:"WABOT_DEBUG_TRACEBACK"`
	DisableErrorHandling bool `json:"disable_error_handling" env:"WABOT_DISABLE_ERROR_HANDLING"`

	PollIntervalMS int `json:"poll_interval_ms" env:"WABOT_POLL_INTERVAL_MS"`
	InputBackoffMS int `json:"input_backoff_ms" env:"WABOT_INPUT_BACKOFF_MS"`
}

type TransportConfig struct {
	// Driver selects the transport: "webdriver" (WhatsApp Web through a
	// headless browser) or "wameow" (native multidevice protocol).
	Driver    string          `json:"driver" env:"WABOT_TRANSPORT_DRIVER"`
	Webdriver WebdriverConfig `json:"webdriver"`
	Wameow    WameowConfig    `json:"wameow"`
}

type WebdriverConfig struct {
	Headless bool `json:"headless" env:"WABOT_WEBDRIVER_HEADLESS"`

	// UserDataDir persists the browser profile so the WhatsApp Web
	// session survives restarts without rescanning the QR code.
	UserDataDir string `json:"user_data_dir" env:"WABOT_WEBDRIVER_USER_DATA_DIR"`
	URL         string `json:"url" env:"WABOT_WEBDRIVER_URL"`
}

type WameowConfig struct {
	DBPath string `json:"db_path" env:"WABOT_WAMEOW_DB_PATH"`
}

type RateLimitConfig struct {
	// MessagesPerMinute of 0 disables throttling.
	MessagesPerMinute int `json:"messages_per_minute" env:"WABOT_RATE_MESSAGES_PER_MINUTE"`
	Burst             int `json:"burst" env:"WABOT_RATE_BURST"`
}

type LoggingConfig struct {
	Level     string `json:"level" env:"WABOT_LOG_LEVEL"`
	File      string `json:"file" env:"WABOT_LOG_FILE"`
	Redaction bool   `json:"redaction" env:"WABOT_LOG_REDACTION"`
}

func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			CommandPrefix:  "!",
			PollIntervalMS: 500,
			InputBackoffMS: 5000,
		},
		Transport: TransportConfig{
			Driver: "webdriver",
			Webdriver: WebdriverConfig{
				Headless:    true,
				UserDataDir: "~/.wabot/browser",
				URL:         "https://web.whatsapp.com/",
			},
			Wameow: WameowConfig{
				DBPath: "~/.wabot/wameow.db",
			},
		},
		RateLimit: RateLimitConfig{
			MessagesPerMinute: 0,
			Burst:             5,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// LoadConfig reads path (missing file is fine, defaults apply) and then
// applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if utf8.RuneCountInString(c.Bot.CommandPrefix) != 1 {
		return fmt.Errorf("command_prefix must be a single character, got %q", c.Bot.CommandPrefix)
	}
	switch c.Transport.Driver {
	case "webdriver", "wameow":
	default:
		return fmt.Errorf("unknown transport driver %q", c.Transport.Driver)
	}
	return nil
}
