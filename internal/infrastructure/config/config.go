// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	threshold := cfg.Matching.AutoThreshold
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bankrecon/bankrecon/internal/domain/adjustment"
	"github.com/bankrecon/bankrecon/internal/domain/matcher"
	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Matching      matcher.Config      `yaml:"matching"`
	Adjustments   AdjustmentsConfig   `yaml:"adjustments"`
	BankAccounts  []model.BankAccount `yaml:"bank_accounts"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AdjustmentsConfig holds the detector rules and the ledger accounts they post to.
//
// DefaultAccounts maps rule account keys (bank_charges, interest_income, ...)
// to ledger accounts. Accounts overrides them per bank account ID.
type AdjustmentsConfig struct {
	Rules           []adjustment.Rule            `yaml:"rules"`
	DefaultAccounts map[string]string            `yaml:"default_accounts"`
	Accounts        map[string]map[string]string `yaml:"accounts"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" (Maven-style) or "json"
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${BANKRECON_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("BANKRECON_DB_PATH", "bankrecon.db"),
		},
		Server: ServerConfig{
			Port:           getEnvInt("BANKRECON_PORT", 8080),
			AllowedOrigins: splitList(os.Getenv("BANKRECON_ALLOWED_ORIGINS")),
		},
		Matching: matcher.DefaultConfig(),
		Adjustments: AdjustmentsConfig{
			DefaultAccounts: defaultAccountsFromEnv(),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables
func LoadOrEnv_WithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate checks settings that would otherwise fail later at first use.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	seen := make(map[string]bool, len(c.BankAccounts))
	for _, acc := range c.BankAccounts {
		if acc.ID == "" || acc.LedgerAccount == "" {
			return fmt.Errorf("bank_accounts: id and ledger_account are required")
		}
		if seen[acc.ID] {
			return fmt.Errorf("bank_accounts: duplicate id %q", acc.ID)
		}
		seen[acc.ID] = true
	}
	for _, r := range c.Adjustments.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("adjustments.rules: %w", err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = getEnv("BANKRECON_DB_PATH", "bankrecon.db")
	}
	if c.Server.Port == 0 {
		c.Server.Port = getEnvInt("BANKRECON_PORT", 8080)
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = getEnv("LOG_LEVEL", "info")
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = getEnv("LOG_FORMAT", "text")
	}
	c.Matching = c.Matching.WithDefaults()
}

// defaultAccountsFromEnv reads BANKRECON_ACCOUNT_<KEY> for each known rule account key.
func defaultAccountsFromEnv() map[string]string {
	keys := []string{
		adjustment.AccountBankCharges,
		adjustment.AccountInterestIncome,
		adjustment.AccountDebitNote,
		adjustment.AccountCreditNote,
	}
	accounts := make(map[string]string)
	for _, key := range keys {
		if val := os.Getenv("BANKRECON_ACCOUNT_" + strings.ToUpper(key)); val != "" {
			accounts[key] = val
		}
	}
	return accounts
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
