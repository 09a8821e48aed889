package models

import (
	"strings"
	"time"
)

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// UnmarshalText accepts the legacy "image" value written by older clients.
func (k *MediaKind) UnmarshalText(text []byte) error {
	if strings.HasPrefix(strings.ToLower(string(text)), "video") {
		*k = MediaVideo
		return nil
	}
	*k = MediaPhoto
	return nil
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CompletionMedia is one finalized evidence entry as stored in job_completions.media.
type CompletionMedia struct {
	URL        string    `json:"url"`
	Kind       MediaKind `json:"type"`
	Note       string    `json:"note"`
	Geo        *GeoPoint `json:"location"`
	CapturedAt time.Time `json:"timestamp"`
	Resolution string    `json:"resolution,omitempty"`
	Size       string    `json:"size,omitempty"`
}

type CompletionRecord struct {
	JobID        string            `json:"job_id"`
	SignatureURL string            `json:"signature_url,omitempty"`
	Rating       int               `json:"rating"`
	Comment      string            `json:"comment"`
	Media        []CompletionMedia `json:"media"`
	CreatedAt    time.Time         `json:"created_at"`
}
