package config

import (
	"errors"
	"os"

	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned when no LLM credential is configured. The
// server still starts; only LLM-backed endpoints are blocked.
var ErrMissingAPIKey = errors.New("llm api key is not configured")

// Config holds the application configuration
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	History HistoryConfig `mapstructure:"history"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

// LLMConfig holds the chat-completion client configuration. Model and
// temperature are deployment constants, not request parameters.
type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Temperature    float32 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	SystemPrompt   string  `mapstructure:"system_prompt"`
	// ReplayHistory selects the context-replay policy: when true the full
	// exchange history is resent on every request, when false only the new
	// question is sent after the system messages.
	ReplayHistory bool `mapstructure:"replay_history"`
}

// HistoryConfig bounds per-session history and optionally mirrors it to disk.
type HistoryConfig struct {
	MaxExchanges int    `mapstructure:"max_exchanges"`
	DBPath       string `mapstructure:"db_path"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are an expert data analyst. " +
	"Analyze the uploaded CSV data and accurately answer questions about it. " +
	"Be concise, and only use data provided."

// Load reads config.yaml (path overridable via CONFIG_PATH), applies
// environment overrides, and fills defaults. A missing config file is not an
// error; everything has a default except the API key, which is validated
// separately via Validate.
func Load() (*Config, error) {
	v := viper.New()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)
	v.SetDefault("llm.replay_history", true)
	v.SetDefault("history.max_exchanges", 50)
	v.SetDefault("history.db_path", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("CSVCHAT")
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "CSVCHAT_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate reports configuration problems that block LLM invocation.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
