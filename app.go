// anytrack/app.go
package main

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"anytrack/client"
	"anytrack/config"
	"anytrack/operation"
	"anytrack/request"
	"anytrack/result"

	"github.com/mattn/go-isatty"
)

// app holds what every command shares once the configuration is loaded.
type app struct {
	configFlag string
	cfg        *config.Config
}

func (a *app) ensureConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.configFlag)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// newLogger writes text logs for interactive use and JSON for the server.
func newLogger(w io.Writer, level string, asJSON bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) newClient(logger *slog.Logger) *client.Client {
	return client.New(a.cfg.APIURL, &http.Client{Timeout: a.cfg.RequestTimeout}, logger)
}

// newController wires the client, request builder and saver together.
// downloadDir overrides the configured directory when set.
func (a *app) newController(logger *slog.Logger, downloadDir string) *operation.Controller {
	cl := a.newClient(logger)
	if downloadDir == "" {
		downloadDir = a.cfg.DownloadDir
	}
	return operation.New(cl, operation.Options{
		Builder: request.Builder{MaxUploadSize: a.cfg.MaxUploadSize},
		Saver: &result.Saver{
			Fetcher:     cl,
			Dir:         downloadDir,
			MaxBytes:    a.cfg.MaxDownloadSize,
			MinFreeDisk: a.cfg.MinFreeDisk,
			Logger:      logger,
		},
		Logger: logger,
	})
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
