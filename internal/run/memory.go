package run

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Runs are lost on restart; set DB_PATH to keep history in SQLite.
type MemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryRepository creates a new in-memory run repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		runs: make(map[string]*Run),
	}
}

// Save persists a run to the in-memory storage.
// Creates a clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run.Clone()
	return nil
}

// FindByID retrieves a run by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.Clone(), nil
}

// List returns clones of the stored runs, newest first.
func (r *MemoryRepository) List(_ context.Context, limit int) ([]*Run, error) {
	r.mu.RLock()
	result := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		result = append(result, run.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(a, b *Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
