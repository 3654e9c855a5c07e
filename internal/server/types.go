// Package server provides the HTTP API of the audio split service.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/run"
)

// UploadForm holds the split parameters of POST /audio/upload after
// defaults have been applied.
type UploadForm struct {
	// SegmentDuration is the window length in seconds.
	SegmentDuration int `validate:"min=1,max=86400"`
	// OverlapDuration is the overlap in seconds; it must stay below SegmentDuration.
	OverlapDuration int `validate:"min=0,ltfield=SegmentDuration"`
}

// UploadResponse is the HTTP response after a successful split.
type UploadResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	RunID    string         `json:"runId"`
	Duration int            `json:"duration"`
	Settings audio.Settings `json:"settings"`
	Parts    []PartResponse `json:"parts"`
}

// PartResponse describes one produced segment.
type PartResponse struct {
	// Name is the file name, e.g. "part_1.mp3".
	Name string `json:"name"`
	// Path is the download URL path.
	Path string `json:"path"`
	// StartTime is the offset of the part in the original track, in seconds.
	StartTime int `json:"startTime"`
	// Duration is the part length in seconds.
	Duration int `json:"duration"`
	// URL is the S3 location when the part was published.
	URL string `json:"url,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Success is always false.
	Success bool `json:"success"`
	// Message is the human-readable error message.
	Message string `json:"message"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// RunResponse is the HTTP response for a recorded run.
type RunResponse struct {
	ID              string         `json:"id"`
	Status          string         `json:"status"`
	InputName       string         `json:"inputName,omitempty"`
	SegmentDuration int            `json:"segmentDuration"`
	OverlapDuration int            `json:"overlapDuration"`
	Duration        int            `json:"duration"`
	Parts           []PartResponse `json:"parts"`
	Error           string         `json:"error,omitempty"`
	ErrorCode       string         `json:"errorCode,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
}

// RunListResponse is the HTTP response for GET /runs.
type RunListResponse struct {
	Runs []RunResponse `json:"runs"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

func partsToResponse(parts []run.Part) []PartResponse {
	resp := make([]PartResponse, len(parts))
	for i, p := range parts {
		resp[i] = PartResponse{
			Name:      p.Name,
			Path:      p.DownloadPath,
			StartTime: p.StartTime,
			Duration:  p.Duration,
			URL:       p.URL,
		}
	}
	return resp
}

func runToResponse(r *run.Run) RunResponse {
	resp := RunResponse{
		ID:              r.ID,
		Status:          string(r.Status),
		InputName:       r.InputName,
		SegmentDuration: r.SegmentDuration,
		OverlapDuration: r.OverlapDuration,
		Duration:        r.TotalDuration,
		Parts:           partsToResponse(r.Parts),
		Error:           r.Error,
		ErrorCode:       r.ErrorCode,
		CreatedAt:       r.CreatedAt,
	}
	if !r.CompletedAt.IsZero() {
		completed := r.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}
