// Package run records split runs: the Run aggregate with its state machine,
// repositories for persistence, and the Service that executes a run through
// the audio splitter.
package run

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/audiosplit-api/internal/run/id"
)

// Status represents the current state of a Run.
type Status string

const (
	// StatusInQueue indicates the run was accepted and waits for the splitter.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the splitter is working on the run.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every segment was produced.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the run stopped on an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the caller went away before the run finished.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Part is the recorded outcome of one segment.
type Part struct {
	// Name is the output file name, e.g. "part_1.mp3".
	Name string `json:"name"`
	// DownloadPath is the relative URL the file is served under.
	DownloadPath string `json:"path"`
	// URL is the S3 location when the part was published.
	URL string `json:"url,omitempty"`
	// StartTime is the offset in the original track, in seconds.
	StartTime int `json:"startTime"`
	// Duration is the part length in seconds.
	Duration int `json:"duration"`
}

// Run represents one split of one uploaded file.
type Run struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string
	// Status is the current run state.
	Status Status
	// InputName is the original name of the uploaded file.
	InputName string
	// InputPath is where the upload was stored.
	InputPath string
	// SegmentDuration is the requested window length in seconds.
	SegmentDuration int
	// OverlapDuration is the requested overlap in seconds.
	OverlapDuration int
	// TotalDuration is the probed input duration in whole seconds.
	TotalDuration int
	// Parts lists the produced segments in playback order.
	Parts []Part
	// Error contains the failure message if the run failed.
	Error string
	// ErrorCode classifies the failure, e.g. "TRANSCODE_FAILED".
	ErrorCode string
	// CreatedAt is when the run was created.
	CreatedAt time.Time
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time
	// StartedAt is when the splitter picked the run up.
	StartedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Run with a generated ID and initial IN_QUEUE status.
func New() *Run {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Run with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(runID string) *Run {
	now := time.Now()
	return &Run{
		ID:        runID,
		Status:    StatusInQueue,
		Parts:     make([]Part, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the run status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.Status, status) {
		return ErrInvalidTransition
	}

	r.Status = status
	r.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		r.StartedAt = r.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		r.CompletedAt = r.UpdatedAt
	}

	return nil
}

// Start transitions the run from IN_QUEUE to RUNNING.
func (r *Run) Start() error {
	return r.TransitionTo(StatusRunning)
}

// Complete records the result and transitions the run to COMPLETED.
func (r *Run) Complete(totalDuration int, parts []Part) error {
	r.mu.Lock()
	r.TotalDuration = totalDuration
	r.Parts = append(make([]Part, 0, len(parts)), parts...)
	r.mu.Unlock()
	return r.TransitionTo(StatusCompleted)
}

// Fail transitions the run to FAILED with an error message and code.
func (r *Run) Fail(code, errMsg string) error {
	r.mu.Lock()
	r.Error = errMsg
	r.ErrorCode = code
	r.mu.Unlock()
	return r.TransitionTo(StatusFailed)
}

// Cancel transitions the run to CANCELLED.
func (r *Run) Cancel(errMsg string) error {
	r.mu.Lock()
	r.Error = errMsg
	r.mu.Unlock()
	return r.TransitionTo(StatusCancelled)
}

// GetStatus returns the current run status (thread-safe).
func (r *Run) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// SetPartURL records the published URL of the part at index.
func (r *Run) SetPartURL(index int, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index >= 0 && index < len(r.Parts) {
		r.Parts[index].URL = url
		r.UpdatedAt = time.Now()
	}
}

// IsTerminal returns true if the run is in a terminal state.
func (r *Run) IsTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status == StatusCompleted ||
		r.Status == StatusFailed ||
		r.Status == StatusCancelled
}

// Clone creates a deep copy of the run for safe reads.
func (r *Run) Clone() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parts := make([]Part, len(r.Parts))
	copy(parts, r.Parts)

	return &Run{
		ID:              r.ID,
		Status:          r.Status,
		InputName:       r.InputName,
		InputPath:       r.InputPath,
		SegmentDuration: r.SegmentDuration,
		OverlapDuration: r.OverlapDuration,
		TotalDuration:   r.TotalDuration,
		Parts:           parts,
		Error:           r.Error,
		ErrorCode:       r.ErrorCode,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
	}
}
