package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"anytrack/form"
	"anytrack/request"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": "0.1.0"})
	})
	r.POST("/api/convert", func(c *gin.Context) {
		if _, err := c.FormFile("file"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No file uploaded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"file_id":       "abc." + c.PostForm("format"),
			"original_name": "My Song!!.mp3",
		})
	})
	r.POST("/api/youtube", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "YouTube download failed"})
	})
	r.POST("/api/metadata", func(c *gin.Context) {
		c.String(http.StatusBadGateway, "<html>bad gateway</html>")
	})
	r.GET("/api/download/:id", func(c *gin.Context) {
		if c.Param("id") != "abc.mp3" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "audio/mpeg", []byte("ID3-audio"))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *Client {
	srv := fakeService(t)
	return New(srv.URL+"/", srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func build(t *testing.T, mutate func(*form.State)) *request.Request {
	t.Helper()
	s := form.New()
	mutate(s)
	r, err := request.Builder{}.Build(s.Clone())
	require.NoError(t, err)
	return r
}

func TestNewDefaults(t *testing.T) {
	c := New("", nil, nil)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, "http://svc:8080/api/download/abc.mp3", New("http://svc:8080/", nil, nil).DownloadURL("abc.mp3"))
	assert.Equal(t, "http://svc/api/download/a%2Fb.mp3", New("http://svc", nil, nil).DownloadURL("a/b.mp3"))
}

func TestSendAndDecodeSuccess(t *testing.T) {
	c := newTestClient(t)
	r := build(t, func(s *form.State) {
		s.Source = form.MemoryFile("in.wav", []byte("pcm"))
	})

	resp, err := c.Send(context.Background(), r)
	require.NoError(t, err)
	out, err := Decode(resp)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "abc.mp3", out.FileID)
	assert.Equal(t, "My Song!!.mp3", out.OriginalName)
}

func TestDecodeServiceFailure(t *testing.T) {
	c := newTestClient(t)
	r := build(t, func(s *form.State) {
		s.Mode = form.URLConvert
		s.SourceURL = "https://youtu.be/x"
	})

	resp, err := c.Send(context.Background(), r)
	require.NoError(t, err)
	out, err := Decode(resp)
	require.NoError(t, err, "error statuses with an envelope are service failures, not transport errors")
	assert.False(t, out.Success)
	assert.Equal(t, "YouTube download failed", out.Message)
}

func TestDecodeNonJSON(t *testing.T) {
	c := newTestClient(t)
	r := build(t, func(s *form.State) {
		s.Mode = form.MetadataEdit
		s.Source = form.MemoryFile("in.mp3", []byte("id3"))
	})

	resp, err := c.Send(context.Background(), r)
	require.NoError(t, err)
	_, err = Decode(resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSendTransportError(t *testing.T) {
	c := New("http://127.0.0.1:1", nil, nil)
	r := build(t, func(s *form.State) {
		s.Mode = form.URLConvert
		s.SourceURL = "https://youtu.be/x"
	})
	_, err := c.Send(context.Background(), r)
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	c := newTestClient(t)

	resp, err := c.Fetch(context.Background(), c.DownloadURL("abc.mp3"))
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "ID3-audio", string(data))

	_, err = c.Fetch(context.Background(), c.DownloadURL("missing.mp3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHealth(t *testing.T) {
	c := newTestClient(t)
	hs, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", hs.Status)
	assert.Equal(t, "0.1.0", hs.Version)
}
