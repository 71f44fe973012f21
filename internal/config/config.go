// Package config loads learnlog settings from ~/.learnlog/config.yaml and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL = "http://localhost:5000/api"

	EnvAPIURL   = "LEARNLOG_API_URL"
	EnvLogLevel = "LEARNLOG_LOG_LEVEL"
)

// Config holds client and server settings
type Config struct {
	APIURL      string `yaml:"api_url"`
	DBPath      string `yaml:"db_path"`
	SessionPath string `yaml:"session_path"`
	LogLevel    string `yaml:"log_level"`
	ServeAddr   string `yaml:"serve_addr"`
}

// Dir returns the learnlog home directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".learnlog"
	}
	return filepath.Join(home, ".learnlog")
}

// DefaultPath returns the default config file location
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in settings
func Default() *Config {
	dir := Dir()
	return &Config{
		APIURL:      DefaultAPIURL,
		DBPath:      filepath.Join(dir, "learnlog.db"),
		SessionPath: filepath.Join(dir, "session.yaml"),
		LogLevel:    "info",
		ServeAddr:   ":5000",
	}
}

// Load applies the file at path (if present) and then the environment on top of defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return cfg, nil
}

// NewLogger builds a production zap logger at the configured level
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if level == zapcore.DebugLevel {
		zc.Development = true
	}
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
