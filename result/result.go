// Package result turns a successful service response into something the user
// can play or save.
package result

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"anytrack/form"
	"anytrack/slug"

	"github.com/shirou/gopsutil/v3/disk"
)

// Suffix is appended to every saved name so artifacts are easy to spot.
const Suffix = "_anytrack"

var (
	ErrNoArtifact       = errors.New("no artifact to download")
	ErrInsufficientDisk = errors.New("not enough free disk space")
	ErrTooLarge         = errors.New("artifact exceeds download limit")
)

// Artifact describes a produced file. PreviewURL addresses the same resource
// as DownloadURL and is meant for inline playback.
type Artifact struct {
	FileID      string `json:"file_id"`
	DownloadURL string `json:"download_url"`
	PreviewURL  string `json:"preview_url"`
	Filename    string `json:"filename"`
}

// Extension returns what follows the last "." of the URL's final path
// segment, or "" when that segment has none.
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	idx := strings.LastIndex(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return ""
	}
	return base[idx+1:]
}

// inputExtensions are source containers the service accepts besides the
// output formats.
var inputExtensions = []string{"opus", "wma", "aiff", "aif", "webm", "mp4"}

// isAudioExtension reports whether e names an audio file type. ext, the
// artifact's own extension, always counts.
func isAudioExtension(e, ext string) bool {
	e = strings.ToLower(e)
	if e == "" {
		return false
	}
	if e == strings.ToLower(ext) {
		return true
	}
	for _, f := range form.Formats {
		if e == string(f) {
			return true
		}
	}
	for _, known := range inputExtensions {
		if e == known {
			return true
		}
	}
	return false
}

// stem drops a trailing audio extension from name. Other dots, as in
// "Mr. Brightside" or "Vol. 2", are part of the title.
func stem(name, ext string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndex(name, "."); idx > 0 && isAudioExtension(name[idx+1:], ext) {
		return name[:idx]
	}
	return name
}

// Derive builds the artifact for downloadURL. The saved name is the slug of
// originalName without its audio extension, the fixed suffix and the
// extension of the URL; fallbackExt is used when the URL carries none.
func Derive(fileID, downloadURL, originalName, fallbackExt string) Artifact {
	ext := Extension(downloadURL)
	if ext == "" {
		ext = strings.TrimPrefix(fallbackExt, ".")
	}
	name := slug.Normalize(stem(originalName, ext)) + Suffix
	if ext != "" {
		name += "." + ext
	}
	return Artifact{
		FileID:      fileID,
		DownloadURL: downloadURL,
		PreviewURL:  downloadURL,
		Filename:    name,
	}
}

// Fetcher retrieves artifact bytes.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*http.Response, error)
}

// Saver writes artifacts into Dir.
type Saver struct {
	Fetcher     Fetcher
	Dir         string
	MaxBytes    int64 // 0 disables the limit
	MinFreeDisk int64
	// DiskUsage defaults to gopsutil's disk.Usage.
	DiskUsage func(path string) (*disk.UsageStat, error)
	Logger    *slog.Logger
}

// Save downloads a and returns the path it was written to. Bytes land in a
// temporary file first; that file is removed on every path out of Save, so a
// failed fetch leaves nothing behind. Existing files are never overwritten.
func (s *Saver) Save(ctx context.Context, a Artifact) (string, error) {
	if a.DownloadURL == "" {
		return "", ErrNoArtifact
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".anytrack-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	resp, err := s.Fetcher.Fetch(ctx, a.DownloadURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := s.checkDisk(dir, resp.ContentLength); err != nil {
		return "", err
	}

	var body io.Reader = resp.Body
	if s.MaxBytes > 0 {
		body = &io.LimitedReader{R: resp.Body, N: s.MaxBytes + 1}
	}
	written, err := io.Copy(tmp, body)
	if err != nil {
		return "", fmt.Errorf("failed to write downloaded file: %w", err)
	}
	if s.MaxBytes > 0 && written > s.MaxBytes {
		return "", fmt.Errorf("%w of %d bytes", ErrTooLarge, s.MaxBytes)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	target, err := claimPath(dir, a.Filename)
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("move download into place: %w", err)
	}
	s.logger().Info("artifact saved", "path", target, "bytes", written)
	return target, nil
}

func (s *Saver) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// checkDisk verifies the download dir can hold the artifact plus the
// configured reserve. Unknown usage is logged and allowed.
func (s *Saver) checkDisk(dir string, contentLength int64) error {
	usage := s.DiskUsage
	if usage == nil {
		usage = disk.Usage
	}
	d, err := usage(dir)
	if err != nil {
		s.logger().Warn("could not get disk usage", "dir", dir, "error", err)
		return nil
	}
	need := s.MinFreeDisk
	if contentLength > 0 {
		need += contentLength
	}
	if need > 0 && d.Free < uint64(need) {
		return fmt.Errorf("%w: available %d, required %d", ErrInsufficientDisk, d.Free, need)
	}
	return nil
}

// claimPath creates an empty dir/name, or dir/name-N.ext for the first free
// N, and returns its path. Creation is exclusive, so a file that appears
// concurrently is never reused.
func claimPath(dir, name string) (string, error) {
	name = filepath.Base(name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for i := 1; ; i++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if err := f.Close(); err != nil {
				os.Remove(candidate)
				return "", err
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("claim %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
	}
}
