package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: facegate
  user: facegate
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, 90.0, cfg.Recognizer.DefaultMatchThreshold)
	assert.Equal(t, 4096, cfg.Recognizer.MaxFaces)
	assert.Equal(t, "noop", cfg.Notify.Provider)
	assert.Contains(t, cfg.Notify.MessageTemplate, "{name}")
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  host: db
  name: facegate
  user: facegate
  password: secret
`)

	t.Setenv("FACEGATE_SERVER_PORT", "9100")
	t.Setenv("FACEGATE_DB_HOST", "db.internal")
	t.Setenv("FACEGATE_MATCH_THRESHOLD", "85")
	t.Setenv("FACEGATE_NOTIFY_PROVIDER", "sms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 85.0, cfg.Recognizer.DefaultMatchThreshold)
	assert.Equal(t, "sms", cfg.Notify.Provider)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, Name: "gate", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@db:5433/gate?sslmode=disable", d.DSN())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
