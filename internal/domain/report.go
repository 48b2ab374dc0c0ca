package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// videoExtensions lists upload extensions treated as video when the producer
// does not set media_type.
var videoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
	".webm": true, ".flv": true, ".wmv": true,
}

// reportNamespace seeds deterministic IDs for reports submitted without one.
var reportNamespace = uuid.MustParse("6f1c2a4e-8d3b-4f5a-9c7e-2b1d0e3f4a5b")

// rawReport is the JSON payload published by the intake service.
type rawReport struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	MediaPath   string     `json:"media_path"`
	MediaType   string     `json:"media_type"`
	Location    *Location  `json:"location"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// ParseReport deserializes a RawEvent's value into a Report.
// Reports without an ID get a UUIDv5 derived from the payload, so replays of
// the same message produce the same ID.
func ParseReport(raw RawEvent) (Report, error) {
	var rec rawReport
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Report{}, fmt.Errorf("parse report: %w", err)
	}

	mediaPath := strings.TrimSpace(rec.MediaPath)
	if mediaPath == "" {
		return Report{}, errors.New("parse report: media_path is required")
	}

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = uuid.NewSHA1(reportNamespace, raw.Value).String()
	}

	submitted := raw.Timestamp.UTC()
	if rec.SubmittedAt != nil {
		submitted = rec.SubmittedAt.UTC()
	}

	return Report{
		ID:          id,
		Text:        rec.Text,
		MediaPath:   mediaPath,
		MediaType:   resolveMediaType(rec.MediaType, mediaPath),
		Location:    rec.Location,
		SubmittedAt: submitted,
	}, nil
}

// resolveMediaType honours an explicit media type and otherwise infers it from
// the file extension. Unknown extensions are treated as images.
func resolveMediaType(declared, path string) MediaType {
	switch MediaType(strings.ToLower(strings.TrimSpace(declared))) {
	case MediaVideo:
		return MediaVideo
	case MediaImage:
		return MediaImage
	}
	if IsVideoPath(path) {
		return MediaVideo
	}
	return MediaImage
}

// IsVideoPath reports whether the file extension denotes a video container.
func IsVideoPath(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}
