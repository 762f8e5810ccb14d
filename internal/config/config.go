/**
 * @description
 * This file handles the configuration management for the cashier service.
 * It uses the 'viper' library to load configuration from environment variables,
 * providing a centralized and consistent way to manage application settings.
 * A .env file is loaded first when present, for local development.
 */
package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dinkbit/conekta-cashier/internal/domain"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	ConektaKey    string `mapstructure:"CONEKTA_KEY"`
	ConektaAPIURL string `mapstructure:"CONEKTA_API_URL"`
	AmqpURL       string `mapstructure:"AMQP_URL"`
	JWKSURL       string `mapstructure:"JWKS_URL"`
}

// LoadConfig reads configuration from environment variables. The Conekta API
// key is the one process-wide credential and must be present before any
// gateway operation; a missing key is fatal, never retried.
func LoadConfig() (config Config, err error) {
	// Best effort; the file only exists in local development.
	_ = godotenv.Load()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CONEKTA_API_URL", "")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("CONEKTA_KEY")
	_ = viper.BindEnv("CONEKTA_API_URL")
	_ = viper.BindEnv("AMQP_URL")
	_ = viper.BindEnv("JWKS_URL")

	if err = viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if config.ConektaKey == "" {
		return config, domain.ErrMissingAPIKey
	}

	return config, nil
}
