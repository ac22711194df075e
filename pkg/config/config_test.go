package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsApplied(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
entity_name: "client.admin"
keyring_path: "/etc/ceph/ceph.client.admin.keyring"
mon_addrs:
  - "127.0.0.1:3300"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	require.Equal(t, "INFO", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	require.Equal(t, 30*time.Second, cfg.CommandTimeout)
	require.Equal(t, 60*time.Second, cfg.OperationTimeout)
	require.Equal(t, 2, cfg.Hunt.Parallel)
	require.Equal(t, []string{"crc", "secure"}, cfg.PreferredModes)
	require.Equal(t, []string{"cephx", "none"}, cfg.SupportedAuthMethods)
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: DEBUG\n"), 0o644))

	_, err := Load(configPath)
	require.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
entity_name: "client.admin"
keyring_path: "/etc/ceph/ceph.client.admin.keyring"
mon_addrs:
  - "127.0.0.1:3300"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	t.Setenv("RADOS_ENTITY_NAME", "client.other")
	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.Equal(t, "client.other", cfg.EntityName)
}

func TestWriteSample_RefusesOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, WriteSample(path, false))
	err := WriteSample(path, false)
	require.Error(t, err)
	require.NoError(t, WriteSample(path, true))
}
