package operation

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"anytrack/form"
	"anytrack/progress"
	"anytrack/result"
)

// Phase is the stage of the current operation.
type Phase string

const (
	Idle      Phase = "idle"
	InFlight  Phase = "in_flight"
	Succeeded Phase = "succeeded"
	Failed    Phase = "failed"
)

// ErrBusy is returned for submissions and form edits while an operation is
// in flight. Nothing is queued.
var ErrBusy = errors.New("an operation is already in flight")

// State is the derived, read-only view of the controller.
type State struct {
	ID           string    `json:"id,omitempty"`
	Mode         form.Mode `json:"mode"`
	Phase        Phase     `json:"phase"`
	Progress     float64   `json:"progress"`
	Message      string    `json:"message,omitempty"`
	FileID       string    `json:"file_id,omitempty"`
	OriginalName string    `json:"original_name,omitempty"`
	// Artifact is set only while Phase is Succeeded.
	Artifact *result.Artifact `json:"artifact,omitempty"`
	// DownloadMessage reports the last local save; it never affects Phase.
	DownloadMessage string    `json:"download_message,omitempty"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	CompletedAt     time.Time `json:"completed_at,omitempty"`
	// Seq increases with every published change.
	Seq uint64 `json:"seq"`
}

// kind describes what differs between the three operation flavours.
type kind struct {
	profile     progress.Profile
	success     string
	defaultName func(form.State) string
	fallbackExt func(form.State) string
}

func sourceName(s form.State) string {
	if s.Source == nil {
		return ""
	}
	return s.Source.Name()
}

func targetFormat(s form.State) string { return string(s.Format) }

var kinds = map[form.Mode]kind{
	form.FileConvert: {
		profile:     progress.FileConvert,
		success:     "Conversion successful!",
		defaultName: sourceName,
		fallbackExt: targetFormat,
	},
	form.URLConvert: {
		profile:     progress.URLConvert,
		success:     "YouTube conversion successful!",
		defaultName: func(form.State) string { return "youtube-audio" },
		fallbackExt: targetFormat,
	},
	form.MetadataEdit: {
		profile:     progress.MetadataEdit,
		success:     "Metadata updated successfully!",
		defaultName: sourceName,
		fallbackExt: func(s form.State) string {
			return strings.TrimPrefix(filepath.Ext(sourceName(s)), ".")
		},
	},
}
