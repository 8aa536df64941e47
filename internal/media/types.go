// Package media defines the domain types shared across the download
// orchestration service: catalog entries, progress records, job descriptors,
// and the collaborator interface for the external extraction tooling.
package media

import (
	"context"
	"fmt"
)

// Format is an audio container/codec requested by the client.
type Format string

// Supported audio formats.
const (
	FormatMP3  Format = "mp3"
	FormatM4A  Format = "m4a"
	FormatOpus Format = "opus"
)

// ParseFormat validates a user-supplied format string. An empty string
// selects FormatMP3.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatMP3, nil
	case FormatMP3, FormatM4A, FormatOpus:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Status is the lifecycle state of one extraction job.
type Status string

// Job statuses reported by the progress tracker.
const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusFinalizing  Status = "finalizing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
	StatusUnknown     Status = "unknown"
)

// Terminal reports whether the status is a final state. Terminal entries do
// not block re-admission of the same identifier.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Progress is the transient per-job status record served by /status.
type Progress struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Metadata is the structured description the extractor resolves for a URL.
// ID is the stable external content identifier and is the primary key for
// both the catalog and the progress tracker.
type Metadata struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Uploader   string  `json:"uploader"`
	UploadDate string  `json:"upload_date"`
}

// Entry is the durable record describing one completed extraction. Text
// fields are sanitized before the entry is persisted; the record is immutable
// except for deletion.
type Entry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Audio      string  `json:"audio"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Uploader   string  `json:"uploader"`
	UploadDate string  `json:"upload_date"`
}

// Job is one admitted unit of extraction work.
type Job struct {
	URL    string
	ID     string
	Format Format
}

// Extractor is the boundary to the external media tooling. Probe resolves a
// URL without downloading, DownloadAudio produces the audio artifact at the
// canonical path for the identifier, and FetchThumbnail writes the .webp
// thumbnail next to it.
type Extractor interface {
	Probe(ctx context.Context, url string) (Metadata, error)
	DownloadAudio(ctx context.Context, url, id string, format Format) error
	FetchThumbnail(ctx context.Context, url, id string) error
}
