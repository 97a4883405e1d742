package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Combine  CombineConfig  `yaml:"combine"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// CombineConfig holds defaults for the combine command.
type CombineConfig struct {
	Output      string `yaml:"output"`
	Recursive   bool   `yaml:"recursive"`
	DeleteEmpty bool   `yaml:"delete_empty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./chatvault.db"},
		Server:   ServerConfig{Port: 8080},
		Combine: CombineConfig{
			Output:    "combined_chats.json",
			Recursive: true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHATVAULT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CHATVAULT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CHATVAULT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
