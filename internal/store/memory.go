package store

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// subscriberBuffer is the channel capacity handed to each subscriber.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Snapshots are keyed by view name, with new content replacing previous
// values. Subscribers receive changes via buffered channels (buffer size
// 100). Changes are sent non-blocking; if a subscriber's buffer is full, the
// change is dropped for that subscriber to prevent blocking the pollers.
type MemoryStore struct {
	mu          sync.RWMutex
	snapshots   map[string]Snapshot
	subscribers map[chan Change]struct{}
	subMu       sync.RWMutex
	now         func() time.Time
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:   make(map[string]Snapshot),
		subscribers: make(map[chan Change]struct{}),
		now:         time.Now,
	}
}

// Register records a view's metadata. Content and status of an already
// registered view are kept.
func (m *MemoryStore) Register(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.snapshots[snap.View]
	if !ok {
		snap.Regions = cloneRegions(snap.Regions)
		if snap.Regions == nil {
			snap.Regions = make(map[string]Region)
		}
		snap.Labels = maps.Clone(snap.Labels)
		m.snapshots[snap.View] = snap
		return
	}

	prev.Kind = snap.Kind
	prev.URL = snap.URL
	prev.Labels = maps.Clone(snap.Labels)
	m.snapshots[snap.View] = prev
}

// Update stores the content of snap and publishes the regions whose hash
// differs from the stored snapshot. Status fields of snap are ignored; use
// [MemoryStore.SetStatus] for those.
func (m *MemoryStore) Update(snap Snapshot) Change {
	now := m.now()

	m.mu.Lock()
	prev, ok := m.snapshots[snap.View]
	if !ok {
		prev = Snapshot{View: snap.View, Kind: snap.Kind, URL: snap.URL, Labels: maps.Clone(snap.Labels)}
	}

	changed := diffRegions(prev.Regions, snap.Regions)

	next := prev
	next.Hash = snap.Hash
	next.Regions = cloneRegions(snap.Regions)
	if next.Regions == nil {
		next.Regions = make(map[string]Region)
	}
	next.Items = slices.Clone(snap.Items)
	if len(changed) > 0 || !ok {
		next.UpdatedAt = now
	}
	m.snapshots[snap.View] = next
	m.mu.Unlock()

	change := Change{
		View:      snap.View,
		Changed:   changed,
		Halted:    next.Halted,
		Notice:    next.Notice,
		Suspended: next.Suspended,
		At:        now,
	}
	for _, name := range changed {
		if r, exists := next.Regions[name]; exists {
			change.Regions = append(change.Regions, r)
		}
	}

	if len(changed) > 0 {
		m.notifySubscribers(change)
	}
	return change
}

// SetStatus records the polling state of view. It returns false if the view
// is unknown. Subscribers are notified only when the state flips in a way a
// dashboard must show.
func (m *MemoryStore) SetStatus(view string, status Status) bool {
	m.mu.Lock()
	snap, ok := m.snapshots[view]
	if !ok {
		m.mu.Unlock()
		return false
	}
	notable := snap.Halted != status.Halted ||
		snap.Notice != status.Notice ||
		snap.Suspended != status.Suspended ||
		(snap.LastError == nil) != (status.LastError == nil)
	snap.Status = status
	m.snapshots[view] = snap
	m.mu.Unlock()

	if notable {
		m.notifySubscribers(Change{
			View:      view,
			Changed:   []string{},
			Halted:    status.Halted,
			Notice:    status.Notice,
			Suspended: status.Suspended,
			At:        m.now(),
		})
	}
	return true
}

// Get returns a copy of the snapshot stored for view.
func (m *MemoryStore) Get(view string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[view]
	if !ok {
		return Snapshot{}, false
	}
	return cloneSnapshot(snap), true
}

// GetAll returns a copy of all snapshots ordered by view name.
func (m *MemoryStore) GetAll() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Snapshot, 0, len(m.snapshots))
	for _, name := range slices.Sorted(maps.Keys(m.snapshots)) {
		results = append(results, cloneSnapshot(m.snapshots[name]))
	}
	return results
}

// Subscribe creates a new subscription and returns a channel for receiving
// changes.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Change {
	ch := make(chan Change, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Change) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the change to all active subscribers without
// blocking.
func (m *MemoryStore) notifySubscribers(change Change) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- change:
		default:
			// subscriber is slow, drop the message
		}
	}
}

// diffRegions returns the sorted names of regions that were added, removed,
// or whose hash differs.
func diffRegions(prev, next map[string]Region) []string {
	changed := []string{}
	for name, r := range next {
		old, ok := prev[name]
		if !ok || old.Hash != r.Hash {
			changed = append(changed, name)
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok {
			changed = append(changed, name)
		}
	}
	slices.Sort(changed)
	return changed
}

func cloneRegions(in map[string]Region) map[string]Region {
	if in == nil {
		return nil
	}
	out := make(map[string]Region, len(in))
	for name, r := range in {
		r.Name = name
		r.Content = slices.Clone(r.Content)
		out[name] = r
	}
	return out
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Regions = cloneRegions(s.Regions)
	s.Labels = maps.Clone(s.Labels)
	s.Items = slices.Clone(s.Items)
	if s.LastError != nil {
		msg := *s.LastError
		s.LastError = &msg
	}
	return s
}
