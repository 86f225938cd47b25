// Package client talks to the remote conversion service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"anytrack/request"
)

// DefaultBaseURL is used when no service address is configured.
const DefaultBaseURL = "http://localhost:8080"

// maxResponseBytes bounds the JSON envelope, not downloads.
const maxResponseBytes = 1 << 20

// Response is the envelope shared by every conversion endpoint.
type Response struct {
	Success      bool   `json:"success"`
	FileID       string `json:"file_id,omitempty"`
	OriginalName string `json:"original_name,omitempty"`
	Message      string `json:"message,omitempty"`
}

// HealthStatus is returned by GET /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New returns a client for the service at baseURL. A nil httpClient means
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: baseURL, http: httpClient, logger: logger}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Send issues r. The caller owns the returned body; pass it to Decode.
func (c *Client) Send(ctx context.Context, r *request.Request) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, c.baseURL+r.Path, bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", r.ContentType)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("sending request", "mode", r.Mode.String(), "url", req.URL.String(), "bytes", len(r.Body))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Decode reads the JSON envelope and closes the body. Error statuses still
// carry an envelope, so the status code alone is not treated as failure.
func Decode(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if !out.Success && out.Message == "" {
		out.Message = fmt.Sprintf("service returned %s", resp.Status)
	}
	return &out, nil
}

// DownloadURL is the artifact endpoint for fileID.
func (c *Client) DownloadURL(fileID string) string {
	return c.baseURL + request.DownloadPath + url.PathEscape(fileID)
}

// Fetch GETs an artifact. Non-200 responses are returned as errors with the
// body already closed.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file, status: %s", resp.Status)
	}
	return resp, nil
}

// Health probes the service.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.Fetch(ctx, c.baseURL+request.HealthPath)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&hs); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &hs, nil
}
