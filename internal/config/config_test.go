package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 5, cfg.PollLimit)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
}

func TestLoadFromFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	yml := "api_url: https://api.example.test\npage_size: 20\npoll_interval: 10s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0644))

	t.Setenv("AGRI_PAGE_SIZE", "25")
	t.Setenv("AGRI_LOG_LEVEL", "DEBUG")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test", cfg.APIURL)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoadFromRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("page_size: 0\n"), 0644))

	_, err := LoadFrom(dir)
	assert.ErrorContains(t, err, "page_size")
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	cfg.APIURL = "http://127.0.0.1:9999"
	require.NoError(t, cfg.Save())

	again, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", again.APIURL)
}
