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
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:7070", cfg.Addr())
	assert.Equal(t, "horusec", cfg.Engine.Binary)
	assert.Equal(t, OutputStdout, cfg.Engine.OutputMode)
	assert.Zero(t, cfg.Engine.Timeout)
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Zero(t, cfg.RateLimit.RPS)
	assert.Empty(t, cfg.Database.Driver)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
engine:
  binary: /opt/horusec/bin/horusec
  outputMode: file
  timeout: 90s
  extraArgs: ["-D"]
database:
  driver: memory
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "/opt/horusec/bin/horusec", cfg.Engine.Binary)
	assert.Equal(t, OutputFile, cfg.Engine.OutputMode)
	assert.Equal(t, 90*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, []string{"-D"}, cfg.Engine.ExtraArgs)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8081\n")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("HORUSEC_BINARY", "/usr/local/bin/horusec")
	t.Setenv("ENGINE_TIMEOUT", "5m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/usr/local/bin/horusec", cfg.Engine.Binary)
	assert.Equal(t, 5*time.Minute, cfg.Engine.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad_port", func(c *Config) { c.Server.Port = 0 }},
		{"bad_mode", func(c *Config) { c.Engine.Mode = "k8s" }},
		{"bad_output", func(c *Config) { c.Engine.OutputMode = "stderr" }},
		{"negative_timeout", func(c *Config) { c.Engine.Timeout = -time.Second }},
		{"write_timeout_without_engine_timeout", func(c *Config) { c.Server.WriteTimeout = 30 * time.Minute }},
		{"write_timeout_below_engine_timeout", func(c *Config) {
			c.Server.WriteTimeout = 10 * time.Minute
			c.Engine.Timeout = 20 * time.Minute
		}},
		{"negative_rps", func(c *Config) { c.RateLimit.RPS = -1 }},
		{"bad_driver", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"openai_without_key", func(c *Config) { c.AI.Provider = "openai" }},
		{"minio_without_bucket", func(c *Config) { c.Minio.Enabled = true; c.Minio.Endpoint = "minio:9000" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteTimeoutAboveEngineTimeout(t *testing.T) {
	cfg := Default()
	cfg.Engine.Timeout = 20 * time.Minute
	cfg.Server.WriteTimeout = 21 * time.Minute
	assert.NoError(t, cfg.Validate())
}

func TestDSNHelpers(t *testing.T) {
	cfg := Default()
	cfg.Database.User = "scan"
	cfg.Database.Password = "secret"
	cfg.Database.Host = "db"
	cfg.Database.Port = 3306
	cfg.Database.Name = "horusec"

	assert.Equal(t, "scan:secret@tcp(db:3306)/horusec?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
	assert.Equal(t, "postgres://scan:secret@db:3306/horusec?sslmode=disable", cfg.PostgresDSN())

	cfg.Database.DSN = "explicit"
	assert.Equal(t, "explicit", cfg.MySQLDSN())
	assert.Equal(t, "explicit", cfg.PostgresDSN())
}
