package config

import (
	"errors"
	"testing"

	"github.com/spf13/viper"

	"github.com/dinkbit/conekta-cashier/internal/domain"
)

func TestLoadConfig(t *testing.T) {
	viper.Reset()
	t.Setenv("CONEKTA_KEY", "key_test")
	t.Setenv("DATABASE_URL", "postgres://localhost/cashier")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.ConektaKey != "key_test" {
		t.Errorf("ConektaKey = %q, want %q", cfg.ConektaKey, "key_test")
	}
	if cfg.DatabaseURL != "postgres://localhost/cashier" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want the default %q", cfg.ServerPort, "8080")
	}
}

func TestLoadConfigMissingAPIKey(t *testing.T) {
	viper.Reset()
	t.Setenv("CONEKTA_KEY", "")

	_, err := LoadConfig()
	if !errors.Is(err, domain.ErrMissingAPIKey) {
		t.Fatalf("LoadConfig() error = %v, want ErrMissingAPIKey", err)
	}
}
