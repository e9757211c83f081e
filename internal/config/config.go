package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort              int    `mapstructure:"APP_PORT"`
	DatabasePath         string `mapstructure:"DATABASE_PATH"`
	LlamaBaseURL         string `mapstructure:"LLAMA_BASE_URL"`
	SystemPrompt         string `mapstructure:"SYSTEM_PROMPT"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	TokenExpiryHours     int    `mapstructure:"TOKEN_EXPIRY_HOURS"`
	GoogleClientID       string `mapstructure:"GOOGLE_CLIENT_ID"`
	RateLimitWindowSecs  int    `mapstructure:"RATE_LIMIT_WINDOW_SECONDS"`
	RateLimitMaxAttempts int    `mapstructure:"RATE_LIMIT_MAX_ATTEMPTS"`
	LogLevel             string `mapstructure:"LOG_LEVEL"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("DATABASE_PATH", "./data/database.db")
	viper.SetDefault("LLAMA_BASE_URL", "http://127.0.0.1:8081")
	viper.SetDefault("SYSTEM_PROMPT", "You are a helpful AI assistant.")
	viper.SetDefault("JWT_SECRET", "super-secret-key-change-in-production")
	viper.SetDefault("TOKEN_EXPIRY_HOURS", 168)
	viper.SetDefault("GOOGLE_CLIENT_ID", "")
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("RATE_LIMIT_MAX_ATTEMPTS", 5)
	viper.SetDefault("LOG_LEVEL", "INFO")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./backend")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
