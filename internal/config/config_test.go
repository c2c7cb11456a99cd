package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.API.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.API.Timeout)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.Broker.URL)
	assert.Equal(t, 5*time.Second, cfg.Broker.ReconnectDelay)
	assert.Equal(t, "recipechat.db", cfg.Storage.Path)
	assert.Equal(t, "logs", cfg.Log.Dir)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recipechat.yaml")
	content := `
api:
  base_url: http://api.example.test
broker:
  url: wss://broker.example.test/ws
  reconnect_delay: 2s
log:
  debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("RECIPECHAT_STORAGE_PATH", filepath.Join(dir, "state.db"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://api.example.test", cfg.API.BaseURL)
	assert.Equal(t, "wss://broker.example.test/ws", cfg.Broker.URL)
	assert.Equal(t, 2*time.Second, cfg.Broker.ReconnectDelay)
	assert.True(t, cfg.Log.Debug)
	assert.Equal(t, filepath.Join(dir, "state.db"), cfg.Storage.Path)
}

func TestValidate(t *testing.T) {
	base := Config{
		API:     APIConfig{BaseURL: "http://localhost:8080"},
		Broker:  BrokerConfig{URL: "ws://localhost:8080/ws"},
		Storage: StorageConfig{Path: "x.db"},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "http broker", mutate: func(c *Config) { c.Broker.URL = "http://localhost:8080/ws" }, wantErr: true},
		{name: "bad api url", mutate: func(c *Config) { c.API.BaseURL = "not a url" }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.Broker.ReconnectDelay = -time.Second }, wantErr: true},
		{name: "no storage", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
