package filter

import (
	"context"
	"sync"
)

// Repository persists the last applied [State] per view.
//
// Only the most recent value is kept; saving replaces the previous one.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Save stores state as the current filter of view.
	Save(ctx context.Context, view string, state State) error

	// Load returns the stored filter of view. ok is false when nothing
	// has been saved for the view.
	Load(ctx context.Context, view string) (state State, ok bool, err error)

	// Delete forgets the filter of view. Deleting an unknown view is a no-op.
	Delete(ctx context.Context, view string) error
}

// MemoryRepository is an in-process [Repository]. State is lost on restart.
type MemoryRepository struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryRepository returns an empty [MemoryRepository].
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{states: make(map[string]State)}
}

// Save implements [Repository].
func (m *MemoryRepository) Save(_ context.Context, view string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[view] = state.Normalize()
	return nil
}

// Load implements [Repository].
func (m *MemoryRepository) Load(_ context.Context, view string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[view]
	return s, ok, nil
}

// Delete implements [Repository].
func (m *MemoryRepository) Delete(_ context.Context, view string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, view)
	return nil
}
