// Package form holds the user-editable input of a conversion session.
package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownMode        = errors.New("unknown mode")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrInvalidQuality     = errors.New("quality must be 64-320 kbps in steps of 32")
	ErrInvalidBitrateMode = errors.New("bitrate mode must be constant or variable")
	ErrInvalidSampleRate  = errors.New("unsupported sample rate")
	ErrInvalidChannels    = errors.New("channels must be 1 or 2")
	ErrUnknownField       = errors.New("unknown metadata field")
)

// Mode selects which of the three mutually exclusive operations the form drives.
type Mode int

const (
	FileConvert Mode = iota
	URLConvert
	MetadataEdit
)

func (m Mode) String() string {
	switch m {
	case FileConvert:
		return "convert"
	case URLConvert:
		return "youtube"
	case MetadataEdit:
		return "metadata"
	default:
		return "unknown"
	}
}

// ParseMode accepts the names returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "convert", "file":
		return FileConvert, nil
	case "youtube", "url":
		return URLConvert, nil
	case "metadata", "tags":
		return MetadataEdit, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Format is an output container/codec target understood by the service.
type Format string

const (
	MP3  Format = "mp3"
	WAV  Format = "wav"
	FLAC Format = "flac"
	OGG  Format = "ogg"
	AAC  Format = "aac"
	M4A  Format = "m4a"
)

// Formats lists every supported target in display order.
var Formats = []Format{MP3, WAV, FLAC, OGG, AAC, M4A}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Lossy reports whether the quality setting has any effect for f.
func (f Format) Lossy() bool {
	switch f {
	case MP3, OGG, AAC, M4A:
		return true
	}
	return false
}

const (
	MinQuality     = 64
	MaxQuality     = 320
	QualityStep    = 32
	DefaultQuality = 192
)

func ValidQuality(kbps int) bool {
	return kbps >= MinQuality && kbps <= MaxQuality && (kbps-MinQuality)%QualityStep == 0
}

type BitrateMode string

const (
	Constant BitrateMode = "constant"
	Variable BitrateMode = "variable"
)

// SampleRates are the only rates the service accepts.
var SampleRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 96000}

func validSampleRate(hz int) bool {
	for _, r := range SampleRates {
		if r == hz {
			return true
		}
	}
	return false
}

// Advanced carries the per-file audio options sent with FileConvert.
type Advanced struct {
	BitrateMode  BitrateMode `json:"bitrate_mode"`
	SampleRateHz int         `json:"sample_rate"`
	Channels     int         `json:"channels"`
	FadeIn       bool        `json:"fade_in"`
	FadeOut      bool        `json:"fade_out"`
	Reverse      bool        `json:"reverse"`
}

// DefaultAdvanced matches the service's own fallbacks.
func DefaultAdvanced() Advanced {
	return Advanced{BitrateMode: Constant, SampleRateHz: 44100, Channels: 2}
}

// Validate checks the enumerated fields.
func (a Advanced) Validate() error {
	if a.BitrateMode != Constant && a.BitrateMode != Variable {
		return fmt.Errorf("%w: %q", ErrInvalidBitrateMode, a.BitrateMode)
	}
	if !validSampleRate(a.SampleRateHz) {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, a.SampleRateHz)
	}
	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("%w: %d", ErrInvalidChannels, a.Channels)
	}
	return nil
}

// Set assigns one option by its wire name.
func (a *Advanced) Set(name, value string) error {
	next := *a
	switch name {
	case "bitrate_mode":
		next.BitrateMode = BitrateMode(strings.ToLower(value))
	case "sample_rate":
		hz, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidSampleRate, value)
		}
		next.SampleRateHz = hz
	case "channels":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidChannels, value)
		}
		next.Channels = n
	case "fade_in", "fade_out", "reverse":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("option %s: %w", name, err)
		}
		switch name {
		case "fade_in":
			next.FadeIn = b
		case "fade_out":
			next.FadeOut = b
		default:
			next.Reverse = b
		}
	default:
		return fmt.Errorf("unknown option %q", name)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*a = next
	return nil
}

// Metadata holds optional tag values. Empty means "leave unchanged".
type Metadata struct {
	Artist string `json:"artist,omitempty"`
	Title  string `json:"title,omitempty"`
	Album  string `json:"album,omitempty"`
	Genre  string `json:"genre,omitempty"`
}

// MetadataFields is the wire order of the tag fields.
var MetadataFields = []string{"artist", "title", "album", "genre"}

// Field returns the value stored under a wire name.
func (m Metadata) Field(name string) string {
	switch name {
	case "artist":
		return m.Artist
	case "title":
		return m.Title
	case "album":
		return m.Album
	case "genre":
		return m.Genre
	}
	return ""
}

func (m *Metadata) Set(name, value string) error {
	switch name {
	case "artist":
		m.Artist = value
	case "title":
		m.Title = value
	case "album":
		m.Album = value
	case "genre":
		m.Genre = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// State is the whole form. It is owned by a single controller and is not
// safe for concurrent use on its own.
type State struct {
	Mode      Mode
	Source    Source
	SourceURL string
	Format    Format
	Quality   int
	Advanced  Advanced
	Metadata  Metadata
}

// New returns a form with the defaults shown on first load.
func New() *State {
	return &State{
		Mode:     FileConvert,
		Format:   MP3,
		Quality:  DefaultQuality,
		Advanced: DefaultAdvanced(),
	}
}

func (s *State) SetFormat(f Format) error {
	parsed, err := ParseFormat(string(f))
	if err != nil {
		return err
	}
	s.Format = parsed
	return nil
}

func (s *State) SetQuality(kbps int) error {
	if !ValidQuality(kbps) {
		return fmt.Errorf("%w: %d", ErrInvalidQuality, kbps)
	}
	s.Quality = kbps
	return nil
}

// Clone returns a copy safe to hand out of the owning controller.
func (s *State) Clone() State {
	return *s
}
