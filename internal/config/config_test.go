package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
store_path: /tmp/test-store.db
save_interval_seconds: 30
rules:
  - category: work
    class_equals: editor
  - category: browser
    class_contains: firefox
    title_contains: docs
`

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-store.db", cfg.StorePath)
	assert.Equal(t, 30, cfg.SaveIntervalSeconds)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "work", cfg.Rules[0].Category)
	assert.Equal(t, "editor", cfg.Rules[0].ClassEquals)
	assert.Equal(t, "browser", cfg.Rules[1].Category)
	assert.Equal(t, "docs", cfg.Rules[1].TitleContains)
}

func TestSaveIntervalFloor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("save_interval_seconds: 1\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.SaveIntervalSeconds)
}
