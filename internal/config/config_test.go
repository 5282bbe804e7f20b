package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9999
provider: gemini
providers:
  gemini:
    api_key: test-key
    model_name: gemini-2.0-flash
    max_tokens: 2048
decision:
  cooldown: 5s
memory:
  notepad_path: /tmp/notepad.md
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, 5*time.Second, cfg.Decision.Cooldown)
	assert.Equal(t, "/tmp/notepad.md", cfg.Memory.NotepadPath)

	settings := cfg.ProviderSettings()
	assert.Equal(t, "test-key", settings.APIKey)
	assert.Equal(t, "gemini-2.0-flash", settings.Model)
	assert.Equal(t, 2048, settings.MaxTokens)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider: anthropic
providers:
  anthropic:
    api_key: key
    model_name: claude-3-7-sonnet-20250219
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Decision.Cooldown)
	assert.Equal(t, 10000, cfg.Memory.MaxNotepadChars)
	assert.Equal(t, 50, cfg.Chat.Capacity)
	assert.False(t, cfg.Chat.Enabled)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("POKEAGENT_SERVER_PORT", "7001")

	path := writeConfig(t, `
provider: anthropic
providers:
  anthropic:
    api_key: key
    model_name: m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Server.Port)
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8888},
			Provider: "anthropic",
			Providers: map[string]ProviderConfig{
				"anthropic": {APIKey: "key", Model: "m"},
			},
			Memory: MemoryConfig{NotepadPath: "notepad.md", MaxNotepadChars: 10000},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"no provider", func(c *Config) { c.Provider = "" }},
		{"unknown provider", func(c *Config) { c.Provider = "missing" }},
		{"negative cooldown", func(c *Config) { c.Decision.Cooldown = -time.Second }},
		{"no notepad path", func(c *Config) { c.Memory.NotepadPath = "" }},
		{"zero notepad budget", func(c *Config) { c.Memory.MaxNotepadChars = 0 }},
		{"chat enabled without server", func(c *Config) { c.Chat = ChatConfig{Enabled: true, Channel: "ch", Nickname: "n"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
