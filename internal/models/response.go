package models

import "time"

type HealthResponse struct {
	Status string `json:"status"`
}

type JobListResponse struct {
	Jobs    []JobView `json:"jobs"`
	Loading bool      `json:"loading"`
	Error   string    `json:"error,omitempty"`
}

type MediaItemResponse struct {
	ID         string    `json:"id"`
	Kind       MediaKind `json:"type"`
	State      string    `json:"state"`
	URL        string    `json:"url,omitempty"`
	PreviewURL string    `json:"preview_url,omitempty"`
	Note       string    `json:"note"`
	Geo        *GeoPoint `json:"location"`
	Resolution string    `json:"resolution,omitempty"`
	Size       string    `json:"size,omitempty"`
	CapturedAt time.Time `json:"timestamp"`
	Error      string    `json:"error,omitempty"`
}

type SessionResponse struct {
	SessionID    string              `json:"session_id"`
	JobID        string              `json:"job_id"`
	Rating       int                 `json:"rating"`
	Comment      string              `json:"comment"`
	SignatureURL string              `json:"signature_url,omitempty"`
	HasSignature bool                `json:"has_new_signature"`
	Submitted    bool                `json:"submitted"`
	Media        []MediaItemResponse `json:"media"`
}

type SubmitResponse struct {
	JobID      string           `json:"job_id"`
	Status     string           `json:"status"`
	Completion CompletionRecord `json:"completion"`
}

type SubmitErrorResponse struct {
	Error     string              `json:"error"`
	Message   string              `json:"message"`
	Retryable bool                `json:"retryable"`
	Media     []MediaItemResponse `json:"media,omitempty"`
}

type VideoSessionResponse struct {
	State      string `json:"state"`
	Facing     string `json:"facing"`
	Elapsed    int    `json:"elapsed_seconds"`
	PreviewURL string `json:"preview_url,omitempty"`
	Size       string `json:"size,omitempty"`
}

type OrderStatusResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Items   int    `json:"items"`
}
