package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 4096, cfg.Storage.PageSize)
	require.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kagedb.yaml")
	doc := `
logger:
  level: debug
storage:
  pool_size: 128
  replacer_k: 3
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logger.Level)
	require.Equal(t, 128, cfg.Storage.PoolSize)
	require.Equal(t, 3, cfg.Storage.ReplacerK)
	// Untouched fields keep their defaults.
	require.Equal(t, 4096, cfg.Storage.PageSize)
	require.Equal(t, "json", cfg.Logger.Format)
}

func TestLoadRejectsBadGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kagedb.yaml")
	doc := `
storage:
  page_size: 64
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
