package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SyncConfig holds settings for the remote sync endpoint.
type SyncConfig struct {
	// BaseURL is the root URL of the sync server.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec is the per-request timeout for sync calls.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// ServerConfig holds settings for running the sync server locally.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr" yaml:"addr"`

	// DBPath is the server-side SQLite database path.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// UserID identifies the local user; every task and tag is owned by it.
	UserID string `mapstructure:"user_id" yaml:"user_id"`

	// DBPath is the client-side SQLite database path.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	Sync   SyncConfig   `mapstructure:"sync" yaml:"sync"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/localtask/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "localtask", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dataDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "localtask")
	}
	return &AppConfig{
		UserID: "local",
		DBPath: filepath.Join(dataDir, "tasks.db"),
		Sync: SyncConfig{
			BaseURL:    "http://localhost:8080",
			TimeoutSec: 30,
		},
		Server: ServerConfig{
			Addr:   ":8080",
			DBPath: filepath.Join(dataDir, "server.db"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()
	v.SetDefault("user_id", defaults.UserID)
	v.SetDefault("db_path", defaults.DBPath)
	v.SetDefault("sync.base_url", defaults.Sync.BaseURL)
	v.SetDefault("sync.timeout_sec", defaults.Sync.TimeoutSec)
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.db_path", defaults.Server.DBPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("user_id", cfg.UserID)
	v.Set("db_path", cfg.DBPath)
	v.Set("sync", cfg.Sync)
	v.Set("server", cfg.Server)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
