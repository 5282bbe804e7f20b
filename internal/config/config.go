package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server" yaml:"server"`
	Provider  string                    `mapstructure:"provider" yaml:"provider"`
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Decision  DecisionConfig            `mapstructure:"decision" yaml:"decision"`
	Memory    MemoryConfig              `mapstructure:"memory" yaml:"memory"`
	Chat      ChatConfig                `mapstructure:"chat" yaml:"chat"`
	Logger    LoggerConfig              `mapstructure:"logger" yaml:"logger"`
}

// ServerConfig controls the emulator-facing TCP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ProviderConfig holds the connection details for one LLM backend.
type ProviderConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Model     string `mapstructure:"model_name" yaml:"model_name"`
	Host      string `mapstructure:"host" yaml:"host"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// DecisionConfig controls the decision cycle.
type DecisionConfig struct {
	Cooldown       time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	ScreenshotPath string        `mapstructure:"screenshot_path" yaml:"screenshot_path"`
}

// MemoryConfig controls the notepad and short-term memory files.
type MemoryConfig struct {
	NotepadPath     string `mapstructure:"notepad_path" yaml:"notepad_path"`
	ThinkingPath    string `mapstructure:"thinking_path" yaml:"thinking_path"`
	MaxNotepadChars int    `mapstructure:"max_notepad_chars" yaml:"max_notepad_chars"`
}

// ChatConfig controls the optional IRC chat listener.
type ChatConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Server   string `mapstructure:"server" yaml:"server"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Nickname string `mapstructure:"nickname" yaml:"nickname"`
	Token    string `mapstructure:"token" yaml:"token"`
	Channel  string `mapstructure:"channel" yaml:"channel"`
	Capacity int    `mapstructure:"capacity" yaml:"capacity"`
}

// LoggerConfig controls the zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8888)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("provider", "anthropic")
	v.SetDefault("decision.cooldown", 3*time.Second)
	v.SetDefault("decision.screenshot_path", "data/screenshots/screenshot.png")

	v.SetDefault("memory.notepad_path", "data/notepad.md")
	v.SetDefault("memory.thinking_path", "data/thinking.md")
	v.SetDefault("memory.max_notepad_chars", 10000)

	v.SetDefault("chat.enabled", false)
	v.SetDefault("chat.port", 6667)
	v.SetDefault("chat.capacity", 50)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "pokeagent")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
}

// Load reads the configuration file (if present), applies POKEAGENT_* env
// overrides, and unmarshals into a Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("POKEAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for fatal mistakes before serving.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Provider == "" {
		return fmt.Errorf("no provider configured")
	}
	if _, ok := c.Providers[c.Provider]; !ok {
		return fmt.Errorf("provider %q has no entry under providers", c.Provider)
	}
	if c.Decision.Cooldown < 0 {
		return fmt.Errorf("decision cooldown must not be negative")
	}
	if c.Memory.NotepadPath == "" {
		return fmt.Errorf("memory notepad_path must be set")
	}
	if c.Memory.MaxNotepadChars <= 0 {
		return fmt.Errorf("memory max_notepad_chars must be positive")
	}
	if c.Chat.Enabled {
		if c.Chat.Server == "" || c.Chat.Channel == "" || c.Chat.Nickname == "" {
			return fmt.Errorf("chat requires server, channel, and nickname when enabled")
		}
	}
	return nil
}

// ProviderSettings returns the configuration block for the active provider.
func (c *Config) ProviderSettings() ProviderConfig {
	return c.Providers[c.Provider]
}
