package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.Bot.CommandPrefix)
	assert.Equal(t, 500, cfg.Bot.PollIntervalMS)
	assert.Equal(t, "webdriver", cfg.Transport.Driver)
	assert.True(t, cfg.Transport.Webdriver.Headless)
	assert.Equal(t, "https://web.whatsapp.com/", cfg.Transport.Webdriver.URL)
	assert.Equal(t, 0, cfg.RateLimit.MessagesPerMinute)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"bot": {"chat": "Friends", "command_prefix": "/", "debug_exception": true},
		"transport": {"driver": "wameow", "wameow": {"db_path": "/tmp/wabot.db"}},
		"rate_limit": {"messages_per_minute": 20, "burst": 3}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Friends", cfg.Bot.Chat)
	assert.Equal(t, "/", cfg.Bot.CommandPrefix)
	assert.True(t, cfg.Bot.DebugException)
	assert.Equal(t, "wameow", cfg.Transport.Driver)
	assert.Equal(t, "/tmp/wabot.db", cfg.Transport.Wameow.DBPath)
	assert.Equal(t, 20, cfg.RateLimit.MessagesPerMinute)
	// Untouched keys keep their defaults.
	assert.Equal(t, 500, cfg.Bot.PollIntervalMS)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bot": {"chat": "FromFile"}}`), 0o644))

	t.Setenv("WABOT_CHAT", "FromEnv")
	t.Setenv("WABOT_COMMAND_PREFIX", "#")
	t.Setenv("WABOT_TRANSPORT_DRIVER", "wameow")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "FromEnv", cfg.Bot.Chat)
	assert.Equal(t, "#", cfg.Bot.CommandPrefix)
	assert.Equal(t, "wameow", cfg.Transport.Driver)
}

func TestLoadConfig_RejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "multi-rune prefix", mutate: func(c *Config) { c.Bot.CommandPrefix = "!!" }, wantErr: true},
		{name: "empty prefix", mutate: func(c *Config) { c.Bot.CommandPrefix = "" }, wantErr: true},
		{name: "non-ascii prefix ok", mutate: func(c *Config) { c.Bot.CommandPrefix = "€" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Transport.Driver = "telnet" }, wantErr: true},
		{name: "wameow driver ok", mutate: func(c *Config) { c.Transport.Driver = "wameow" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".wabot"), ExpandHome("~/.wabot"))
	assert.Equal(t, "/etc/wabot", ExpandHome("/etc/wabot"))
	assert.Equal(t, "relative/path", ExpandHome("relative/path"))
}
