// anytrack/commands_test.go
package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/convert", func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No file uploaded"})
			return
		}
		if c.PostForm("fade_in") != "true" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "fade_in missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "file_id": "id1." + c.PostForm("format"), "original_name": fh.Filename})
	})
	r.POST("/api/youtube", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "video unavailable"})
	})
	r.GET("/api/download/:id", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/octet-stream", []byte("converted"))
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "test"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, apiURL, downloadDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anytrack_config.yaml")
	body := "API_URL: " + apiURL + "\nDOWNLOAD_DIR: " + downloadDir + "\nMIN_FREE_DISK: 1KB\nLOG_LEVEL: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	srv := fakeService(t)
	dir := t.TempDir()
	cfg := writeConfig(t, srv.URL, dir)

	src := filepath.Join(t.TempDir(), "Late Night Take.wav")
	require.NoError(t, os.WriteFile(src, []byte("pcm"), 0o644))

	out, err := execute(t, "--config", cfg, "convert", src, "--format", "ogg", "--fade-in")
	require.NoError(t, err)
	assert.Contains(t, out, "Conversion successful!")

	data, err := os.ReadFile(filepath.Join(dir, "late-night-take_anytrack.ogg"))
	require.NoError(t, err)
	assert.Equal(t, "converted", string(data))
}

func TestConvertCommandNoDownload(t *testing.T) {
	srv := fakeService(t)
	dir := t.TempDir()
	cfg := writeConfig(t, srv.URL, dir)

	src := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(src, []byte("pcm"), 0o644))

	out, err := execute(t, "--config", cfg, "convert", src, "--fade-in", "--no-download")
	require.NoError(t, err)
	assert.Contains(t, out, srv.URL+"/api/download/id1.mp3")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConvertCommandRejectsBadFlags(t *testing.T) {
	srv := fakeService(t)
	cfg := writeConfig(t, srv.URL, t.TempDir())
	src := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(src, []byte("pcm"), 0o644))

	_, err := execute(t, "--config", cfg, "convert", src, "--quality", "100")
	assert.Error(t, err)

	_, err = execute(t, "--config", cfg, "convert", src, "--format", "wma")
	assert.Error(t, err)

	_, err = execute(t, "--config", cfg, "convert", filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestYouTubeCommandReportsServiceError(t *testing.T) {
	srv := fakeService(t)
	cfg := writeConfig(t, srv.URL, t.TempDir())

	_, err := execute(t, "--config", cfg, "youtube", "https://youtu.be/gone")
	require.Error(t, err)
	assert.Equal(t, "Error: video unavailable", err.Error())

	_, err = execute(t, "--config", cfg, "youtube", "   ")
	require.Error(t, err)
	assert.Equal(t, "Please enter a YouTube URL", err.Error())
}

func TestHealthCommand(t *testing.T) {
	srv := fakeService(t)
	cfg := writeConfig(t, srv.URL, t.TempDir())

	out, err := execute(t, "--config", cfg, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "ok (version test)")
}

func TestShellCommand(t *testing.T) {
	srv := fakeService(t)
	cfg := writeConfig(t, srv.URL, t.TempDir())

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewBufferString("format flac\nstatus\nquit\n"))
	cmd.SetArgs([]string{"--config", cfg, "shell"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "flac")
}
