// Package selection implements a capped set of numeric IDs, such as the
// trucks an operator picks before authorizing them at a gate.
//
// The cap is enforced on every insert: adding past the limit is rejected
// with [ErrLimitReached], never truncated. While a [Selection.Submit] call
// is in flight the selection is locked and every mutation fails with
// [ErrLocked].
package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrLimitReached is returned when adding an ID to a full selection.
	ErrLimitReached = errors.New("selection limit reached")

	// ErrLocked is returned when mutating a selection during a submit.
	ErrLocked = errors.New("selection is locked while a submit is in flight")

	// ErrBusy is returned when a submit is already in flight.
	ErrBusy = errors.New("a submit is already in flight")

	// ErrEmpty is returned when submitting an empty selection.
	ErrEmpty = errors.New("selection is empty")
)

// SubmitFunc sends the selected IDs to the server.
type SubmitFunc func(ctx context.Context, ids []int64) error

// Selection is a set of at most Max IDs, kept in insertion order.
// All methods are safe for concurrent use.
type Selection struct {
	mu     sync.Mutex
	max    int
	ids    map[int64]struct{}
	order  []int64
	locked bool
}

// New returns an empty selection capped at max IDs.
func New(max int) (*Selection, error) {
	if max < 1 {
		return nil, fmt.Errorf("selection max must be at least 1, got %d", max)
	}
	return &Selection{
		max: max,
		ids: make(map[int64]struct{}, max),
	}, nil
}

// Add selects id. Adding an ID that is already selected is a no-op.
func (s *Selection) Add(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}
	if _, ok := s.ids[id]; ok {
		return nil
	}
	if len(s.order) >= s.max {
		return fmt.Errorf("%w: %d of %d selected", ErrLimitReached, len(s.order), s.max)
	}

	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return nil
}

// Remove deselects id. Removing an ID that is not selected is a no-op.
func (s *Selection) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}
	s.removeLocked(id)
	return nil
}

// Toggle flips the selection state of id and reports whether it is now
// selected.
func (s *Selection) Toggle(id int64) (bool, error) {
	s.mu.Lock()
	_, selected := s.ids[id]
	s.mu.Unlock()

	if selected {
		return false, s.Remove(id)
	}
	if err := s.Add(id); err != nil {
		return false, err
	}
	return true, nil
}

// Clear deselects everything.
func (s *Selection) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}
	s.clearLocked()
	return nil
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns a copy of the selected IDs in insertion order.
func (s *Selection) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.order...)
}

// Len returns the number of selected IDs.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Max returns the selection cap.
func (s *Selection) Max() int {
	return s.max
}

// Locked reports whether a submit is in flight.
func (s *Selection) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Submit locks the selection, calls fn with the selected IDs and unlocks
// when fn returns. On success the selection is cleared; on failure it is
// kept so the operator can retry.
//
// Only one submit may be in flight; a concurrent call returns [ErrBusy]
// without calling fn.
func (s *Selection) Submit(ctx context.Context, fn SubmitFunc) error {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrBusy
	}
	if len(s.order) == 0 {
		s.mu.Unlock()
		return ErrEmpty
	}
	s.locked = true
	ids := append([]int64(nil), s.order...)
	s.mu.Unlock()

	err := fn(ctx, ids)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
	if err != nil {
		return err
	}
	s.clearLocked()
	return nil
}

func (s *Selection) removeLocked(id int64) {
	if _, ok := s.ids[id]; !ok {
		return
	}
	delete(s.ids, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Selection) clearLocked() {
	s.ids = make(map[int64]struct{}, s.max)
	s.order = nil
}
