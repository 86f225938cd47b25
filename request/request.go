// Package request assembles the outbound payload for each operation kind.
package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"anytrack/form"
)

var (
	ErrNoFile       = errors.New("no source file selected")
	ErrNoURL        = errors.New("no source url entered")
	ErrFileTooLarge = errors.New("source file exceeds upload limit")
)

// ValidationError is returned when the form cannot produce a request. It is
// detected before any network traffic.
type ValidationError struct {
	Err     error
	Message string // shown to the user verbatim
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Service paths. The core only depends on their shapes.
const (
	ConvertPath  = "/api/convert"
	YouTubePath  = "/api/youtube"
	MetadataPath = "/api/metadata"
	DownloadPath = "/api/download/"
	HealthPath   = "/health"
)

// Request is a fully materialised call to the conversion service.
type Request struct {
	Mode        form.Mode
	Method      string
	Path        string
	ContentType string
	Body        []byte
	// Fields are the non-file values carried in Body, kept for logging.
	Fields   map[string]string
	FileName string
}

// Builder turns form state into requests. A zero MaxUploadSize disables the
// size check.
type Builder struct {
	MaxUploadSize int64
}

// Build dispatches on the active mode.
func (b Builder) Build(s form.State) (*Request, error) {
	switch s.Mode {
	case form.FileConvert:
		return b.convert(s)
	case form.URLConvert:
		return b.youtube(s)
	case form.MetadataEdit:
		return b.metadata(s)
	}
	return nil, fmt.Errorf("%w: %d", form.ErrUnknownMode, int(s.Mode))
}

func (b Builder) convert(s form.State) (*Request, error) {
	if s.Source == nil {
		return nil, &ValidationError{Err: ErrNoFile, Message: "Please select a file"}
	}
	a := s.Advanced
	fields := [][2]string{
		{"format", string(s.Format)},
		{"quality", strconv.Itoa(s.Quality)},
		{"bitrate_mode", string(a.BitrateMode)},
		{"sample_rate", strconv.Itoa(a.SampleRateHz)},
		{"channels", strconv.Itoa(a.Channels)},
		{"fade_in", strconv.FormatBool(a.FadeIn)},
		{"fade_out", strconv.FormatBool(a.FadeOut)},
		{"reverse", strconv.FormatBool(a.Reverse)},
	}
	return b.multipart(form.FileConvert, ConvertPath, s.Source, fields)
}

// youtube deliberately omits the advanced options; the service ignores
// audio effects for remote sources.
func (b Builder) youtube(s form.State) (*Request, error) {
	url := strings.TrimSpace(s.SourceURL)
	if url == "" {
		return nil, &ValidationError{Err: ErrNoURL, Message: "Please enter a YouTube URL"}
	}
	payload := struct {
		URL     string `json:"url"`
		Format  string `json:"format"`
		Quality string `json:"quality"`
	}{url, string(s.Format), strconv.Itoa(s.Quality)}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode youtube request: %w", err)
	}
	return &Request{
		Mode:        form.URLConvert,
		Method:      http.MethodPost,
		Path:        YouTubePath,
		ContentType: "application/json",
		Body:        body,
		Fields:      map[string]string{"url": payload.URL, "format": payload.Format, "quality": payload.Quality},
	}, nil
}

// metadata sends only non-empty tags so the service can tell "unchanged"
// apart from "cleared".
func (b Builder) metadata(s form.State) (*Request, error) {
	if s.Source == nil {
		return nil, &ValidationError{Err: ErrNoFile, Message: "Please select a file"}
	}
	var fields [][2]string
	for _, name := range form.MetadataFields {
		if v := s.Metadata.Field(name); v != "" {
			fields = append(fields, [2]string{name, v})
		}
	}
	return b.multipart(form.MetadataEdit, MetadataPath, s.Source, fields)
}

func (b Builder) multipart(mode form.Mode, path string, src form.Source, fields [][2]string) (*Request, error) {
	if sizer, ok := src.(form.Sizer); ok && b.MaxUploadSize > 0 {
		size, err := sizer.Size()
		if err != nil {
			return nil, fmt.Errorf("inspect source file: %w", err)
		}
		if size > b.MaxUploadSize {
			return nil, b.tooLarge(size)
		}
	}

	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", src.Name())
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}

	var r io.Reader = rc
	if b.MaxUploadSize > 0 {
		r = &io.LimitedReader{R: rc, N: b.MaxUploadSize + 1}
	}
	written, err := io.Copy(part, r)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	if b.MaxUploadSize > 0 && written > b.MaxUploadSize {
		return nil, b.tooLarge(written)
	}

	values := make(map[string]string, len(fields))
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f[0], err)
		}
		values[f[0]] = f[1]
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	return &Request{
		Mode:        mode,
		Method:      http.MethodPost,
		Path:        path,
		ContentType: mw.FormDataContentType(),
		Body:        buf.Bytes(),
		Fields:      values,
		FileName:    src.Name(),
	}, nil
}

func (b Builder) tooLarge(size int64) error {
	return &ValidationError{
		Err:     fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, size, b.MaxUploadSize),
		Message: fmt.Sprintf("File is too large (limit %d bytes)", b.MaxUploadSize),
	}
}
