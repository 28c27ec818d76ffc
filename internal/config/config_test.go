package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConfigLoader_Load(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9090
library:
  path: "/srv/media"
  document_format: "yaml"
  host_nickname: "Desk"
import:
  move_timeout: 30s
sharing:
  allowed_ips: ["192.168.1.10"]
  rate_limit_max: 50
`)

	loader := NewConfigLoader()
	loader.viper.SetConfigFile(path)

	config, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "127.0.0.1:9090", config.Server.Address())
	assert.Equal(t, "/srv/media", config.Library.Path)
	assert.Equal(t, "yaml", config.Library.DocumentFormat)
	assert.Equal(t, "Desk", config.Library.HostNickname)
	assert.Equal(t, 30*time.Second, config.Import.MoveTimeout)
	assert.Equal(t, []string{"192.168.1.10"}, config.Sharing.AllowedIPs)
	assert.Equal(t, 50, config.Sharing.RateLimitMax)

	// untouched sections keep defaults
	assert.Equal(t, 1000, config.Library.AuditLogMax)
	assert.Equal(t, 15*time.Minute, config.Sharing.RateLimitWindow)
	assert.Equal(t, "stdout", config.Tracing.Exporter)
}

func TestConfigLoader_EnvironmentOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8888
library:
  path: "/from/file"
`)

	t.Setenv("MEDIASHELF_SERVER_PORT", "7777")
	t.Setenv("MEDIASHELF_LIBRARY_PATH", "/from/env")

	loader := NewConfigLoader()
	loader.viper.SetConfigFile(path)

	config, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "/from/env", config.Library.Path)
}

func TestConfigLoader_Defaults(t *testing.T) {
	loader := NewConfigLoader()
	loader.viper.SetConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))

	// an explicit missing file is an error, unlike the search-path case
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *AppConfig {
		return &AppConfig{
			Server:  ServerConfig{Port: 8765},
			Library: LibraryConfig{DocumentFormat: "json", AuditLogMax: 1000},
			Import:  ImportConfig{MoveTimeout: time.Minute},
			Sharing: SharingConfig{RateLimitMax: 10, RateLimitWindow: time.Minute},
			Tracing: TracingConfig{Exporter: "stdout"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(c *AppConfig) {}},
		{name: "bad port", mutate: func(c *AppConfig) { c.Server.Port = 0 }, wantErr: "server port"},
		{name: "bad format", mutate: func(c *AppConfig) { c.Library.DocumentFormat = "xml" }, wantErr: "document format"},
		{name: "bad ip", mutate: func(c *AppConfig) { c.Sharing.AllowedIPs = []string{"nope"} }, wantErr: "allowed ip"},
		{name: "zero window", mutate: func(c *AppConfig) { c.Sharing.RateLimitWindow = 0 }, wantErr: "rate limit window"},
		{name: "bad exporter", mutate: func(c *AppConfig) { c.Tracing.Exporter = "jaeger" }, wantErr: "tracing exporter"},
		{name: "negative retention", mutate: func(c *AppConfig) { c.Jobs.TrashRetention = -time.Hour }, wantErr: "trash retention"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := validateConfig(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
