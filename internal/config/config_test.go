package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":5000", cfg.ServeAddr)
	assert.Equal(t, "learnlog.db", filepath.Base(cfg.DBPath))
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://tracker.example.com/api/
log_level: debug
db_path: /tmp/x.db
`), 0644))

	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://tracker.example.com/api", cfg.APIURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)

	t.Setenv(EnvAPIURL, "http://override:9000/api")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override:9000/api", cfg.APIURL)

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestLoadRejectsBadLevel(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "chatty")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: [oops"), 0644))
	t.Setenv(EnvLogLevel, "")
	_, err := Load(path)
	assert.Error(t, err)
}
