package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intraflow/approval-engine/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9090"
database:
  path: "/var/lib/approval/data.db"
approval:
  organization: "Acme Corp"
  overrides: ["admin-1", "admin-2"]
logging:
  level: debug
  pretty: true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "/var/lib/approval/data.db", cfg.Database.Path)
	assert.Equal(t, "Acme Corp", cfg.Approval.Organization)
	assert.Equal(t, []string{"admin-1", "admin-2"}, cfg.Approval.Overrides)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
}

func TestLoad_NoFileGivesDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "approval.db", cfg.Database.Path)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9090"
`)
	t.Setenv("APPROVAL_LISTEN_ADDR", ":7070")
	t.Setenv("APPROVAL_OVERRIDES", "admin-9, admin-10")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"admin-9", "admin-10"}, cfg.Approval.Overrides)
}

func TestLoad_RejectsBadLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: loud
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}
