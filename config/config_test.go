// anytrack/config/config_test.go
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"anytrack/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ANYTRACK_API_URL", "ANYTRACK_DOWNLOAD_DIR", "ANYTRACK_MAX_UPLOAD_SIZE",
		"ANYTRACK_MAX_DOWNLOAD_SIZE", "ANYTRACK_MIN_FREE_DISK", "ANYTRACK_REQUEST_TIMEOUT",
		"ANYTRACK_PORT", "ANYTRACK_AUTH_ENABLE", "ANYTRACK_AUTH_KEY", "ANYTRACK_LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		clearEnv(t)

		cfg, err := config.Load("")
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:8080", cfg.APIURL)
		assert.Equal(t, ".", cfg.DownloadDir)
		assert.Equal(t, int64(500*1024*1024), cfg.MaxUploadSize)
		assert.Equal(t, int64(2*1024*1024*1024), cfg.MaxDownloadSize)
		assert.Equal(t, int64(50*1024*1024), cfg.MinFreeDisk)
		assert.Equal(t, time.Duration(0), cfg.RequestTimeout)
		assert.Equal(t, "8090", cfg.Port)
		assert.False(t, cfg.AuthEnable)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ANYTRACK_API_URL", "http://converter.lan:9000")
		t.Setenv("ANYTRACK_MAX_UPLOAD_SIZE", "50MB")
		t.Setenv("ANYTRACK_REQUEST_TIMEOUT", "2m30s")
		t.Setenv("ANYTRACK_AUTH_ENABLE", "true")
		t.Setenv("ANYTRACK_AUTH_KEY", "newsecret")

		cfg, err := config.Load("")
		require.NoError(t, err)

		assert.Equal(t, "http://converter.lan:9000", cfg.APIURL)
		assert.Equal(t, int64(50*1024*1024), cfg.MaxUploadSize)
		assert.Equal(t, 2*time.Minute+30*time.Second, cfg.RequestTimeout)
		assert.True(t, cfg.AuthEnable)
		assert.Equal(t, "newsecret", cfg.AuthKey)
	})

	t.Run("reads an explicit config file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "anytrack.yaml")
		require.NoError(t, os.WriteFile(path, []byte("API_URL: http://file-host:8080\nDOWNLOAD_DIR: /music\nMIN_FREE_DISK: 1GB\n"), 0o644))

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "http://file-host:8080", cfg.APIURL)
		assert.Equal(t, "/music", cfg.DownloadDir)
		assert.Equal(t, int64(1024*1024*1024), cfg.MinFreeDisk)
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		clearEnv(t)
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
