package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	assert.Equal(t, "pocketsync.db", cfg.DatabaseDSN)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 3*time.Second, cfg.PingInterval)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestParseFlags_Overrides(t *testing.T) {
	old := os.Args
	t.Cleanup(func() { os.Args = old })
	os.Args = []string{"agent", "-a", "https://sync.example", "-s", "60"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, "https://sync.example", cfg.ServerURL)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	// untouched flags keep their defaults
	assert.Equal(t, "pocketsync.db", cfg.DatabaseDSN)
}

func TestParseJson_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server_url": "https://sync.example",
		"sync_interval": "2m",
		"request_timeout": "30s"
	}`), 0o600))

	old := os.Args
	t.Cleanup(func() { os.Args = old })
	os.Args = []string{"agent", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "https://sync.example", cfg.ServerURL)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	// fields absent from the file keep their defaults
	assert.Equal(t, 3*time.Second, cfg.PingInterval)
}
