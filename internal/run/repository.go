package run

import (
	"context"
	"errors"
)

// ErrRunNotFound is returned when a run cannot be found by ID.
var ErrRunNotFound = errors.New("run not found")

// Repository defines the interface for run persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Save persists a run to the storage.
	// If the run already exists, it should be updated.
	Save(ctx context.Context, run *Run) error

	// FindByID retrieves a run by its unique identifier.
	// Returns ErrRunNotFound if the run does not exist.
	FindByID(ctx context.Context, id string) (*Run, error)

	// List returns runs newest first. A limit of zero or less returns all runs.
	List(ctx context.Context, limit int) ([]*Run, error)
}
