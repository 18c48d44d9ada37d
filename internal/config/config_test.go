package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "./quill.db", cfg.Database.Path)
	require.Equal(t, 8, cfg.Sync.Concurrency)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/quill/quill.db
sync:
  concurrency: 2
  full_content: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/quill/quill.db", cfg.Database.Path)
	require.Equal(t, 2, cfg.Sync.Concurrency)
	require.True(t, cfg.Sync.FullContent)
	require.Equal(t, 30, cfg.Sync.MaxPastDays, "untouched keys keep their defaults")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
