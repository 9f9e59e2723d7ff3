package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "https://nepassisttool.epa.gov/nepassist", cfg.NEPAssist.BaseURL)
	// Must stay in step with the client's own default endpoint.
	assert.Equal(t, "https://ipac.ecosphere.fws.gov/location/api", cfg.IPaC.BaseURL)
	assert.InDelta(t, 1.0, cfg.Screening.BufferMiles, 0.001)
	assert.Equal(t, "sqlite", cfg.Drafts.Driver)
	assert.Equal(t, "permit-drafts.db", cfg.Drafts.Path)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
backend:
  url: https://example.supabase.co
  anon_key: anon-123
log:
  level: debug
  format: console
server:
  port: 9090
drafts:
  driver: postgres
  database_url: postgres://localhost/drafts
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.supabase.co", cfg.Backend.URL)
	assert.Equal(t, "anon-123", cfg.Backend.AnonKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Drafts.Driver)
	// Defaults still apply for unset values
	assert.InDelta(t, 1.0, cfg.Screening.BufferMiles, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
backend:
  url: https://file.supabase.co
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PERMIT_BACKEND_URL", "https://env.supabase.co")
	t.Setenv("PERMIT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "https://env.supabase.co", cfg.Backend.URL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PERMIT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validRemote returns a Config that passes "remote" validation.
func validRemote() *Config {
	cfg := &Config{}
	cfg.Backend.URL = "https://example.supabase.co"
	cfg.Backend.AnonKey = "anon-123"
	cfg.Server.Port = 8080
	cfg.Screening.BufferMiles = 1.0
	cfg.Drafts.Driver = "sqlite"
	cfg.Drafts.Path = "drafts.db"
	return cfg
}

func TestValidateRemote_AllPresent(t *testing.T) {
	assert.NoError(t, validRemote().Validate("remote"))
}

func TestValidateRemote_MissingBackend(t *testing.T) {
	cfg := validRemote()
	cfg.Backend.URL = ""
	cfg.Backend.AnonKey = ""

	err := cfg.Validate("remote")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.url is required")
	assert.Contains(t, err.Error(), "backend.anon_key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validRemote()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateDraft(t *testing.T) {
	cfg := validRemote()
	assert.NoError(t, cfg.Validate("draft"))

	cfg.Drafts.Path = ""
	err := cfg.Validate("draft")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drafts.path")

	cfg.Drafts.Driver = "postgres"
	err = cfg.Validate("draft")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drafts.database_url")

	cfg.Drafts.Driver = "mysql"
	err = cfg.Validate("draft")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drafts.driver must be sqlite or postgres")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validRemote().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateNegativeBuffer(t *testing.T) {
	cfg := validRemote()
	cfg.Screening.BufferMiles = -1

	err := cfg.Validate("remote")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer_miles")
}
