package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Location LocationConfig `mapstructure:"location"`
	Weather  WeatherConfig  `mapstructure:"weather"`
	Maps     MapsConfig     `mapstructure:"maps"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	// UserRate limits chat completions per user, in requests per second.
	// Zero disables the limiter.
	UserRate  float64 `mapstructure:"user_rate"`
	UserBurst int     `mapstructure:"user_burst"`
}

type CalendarConfig struct {
	CalendarID      string `mapstructure:"calendar_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
}

type LocationConfig struct {
	// Static is a "City, Region, Country" fallback for when no geolocation
	// provider is reachable.
	Static          string `mapstructure:"static"`
	DefaultTimezone string `mapstructure:"default_timezone"`
}

type WeatherConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type MapsConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type MemoryConfig struct {
	Limit int `mapstructure:"limit"`
}

type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("llm.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("llm.model", "mistral-large-latest")
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.user_rate", 0)
	v.SetDefault("llm.user_burst", 3)
	v.SetDefault("calendar.calendar_id", "primary")
	v.SetDefault("calendar.credentials_file", "credentials.json")
	v.SetDefault("calendar.token_file", "token.json")
	v.SetDefault("location.default_timezone", "America/Los_Angeles")
	v.SetDefault("memory.limit", 10)
	v.SetDefault("metrics.addr", "")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file when present; a purely env-driven deployment
	// is fine without one.
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Get environment variable overrides
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("MISTRAL_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if apiKey := v.GetString("LLM_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}

	if apiKey := v.GetString("WEATHER_API_KEY"); apiKey != "" {
		config.Weather.APIKey = apiKey
	}

	if apiKey := v.GetString("GOOGLE_MAPS_API_KEY"); apiKey != "" {
		config.Maps.APIKey = apiKey
	}

	if location := v.GetString("USER_LOCATION"); location != "" {
		config.Location.Static = location
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is required (telegram.token or TELEGRAM_TOKEN)")
	}
	if c.LLM.APIKey == "" {
		return errors.New("llm api key is required (llm.api_key, MISTRAL_API_KEY or LLM_API_KEY)")
	}
	return nil
}
