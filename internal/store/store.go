package store

import (
	"encoding/json"
	"time"

	"github.com/jpalmerr/yardwatch/internal/filter"
)

// Region is the unit of targeted replacement within a view.
//
// Content is JSON: a canonical JSON value for JSON views, a JSON string
// holding the element markup for HTML views.
type Region struct {
	Name    string          `json:"name"`
	Hash    int32           `json:"hash"`
	Content json.RawMessage `json:"content"`
}

// Status is the polling state of a view, independent of its content.
type Status struct {
	CheckedAt         time.Time `json:"checked_at"`
	Halted            bool      `json:"halted"`
	Notice            string    `json:"notice,omitempty"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastError         *string   `json:"last_error"`
	Suspended         bool      `json:"suspended"`
	LatencyMs         int64     `json:"latency_ms"`
}

// Snapshot is the stored state of one view.
type Snapshot struct {
	View      string            `json:"view"`
	Kind      string            `json:"kind"`
	URL       string            `json:"url"`
	Labels    map[string]string `json:"labels"`
	Hash      int32             `json:"hash"`
	Regions   map[string]Region `json:"regions"`
	Items     []filter.Item     `json:"items,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
	Status
}

// Change is published whenever a view's content or notable status moves.
//
// Changed lists region names whose hash differs from the previous snapshot,
// including regions that disappeared. Regions carries the new content of the
// changed regions that still exist. A status-only change has an empty
// Changed list.
type Change struct {
	View      string    `json:"view"`
	Changed   []string  `json:"changed"`
	Regions   []Region  `json:"regions,omitempty"`
	Halted    bool      `json:"halted"`
	Notice    string    `json:"notice,omitempty"`
	Suspended bool      `json:"suspended"`
	At        time.Time `json:"at"`
}

// Store defines the interface for storing snapshots and subscribing to
// changes.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Register records a view before its first poll so it is listed
	// immediately. Registering an existing view replaces its metadata only.
	Register(snap Snapshot)

	// Update replaces a view's content and publishes a [Change] when at
	// least one region hash differs. It returns the change, which has an
	// empty Changed list when nothing moved.
	Update(snap Snapshot) Change

	// SetStatus records the polling state of a view. A [Change] is
	// published when the halted, notice, suspended or error presence flips.
	SetStatus(view string, status Status) bool

	// Get returns the snapshot of one view.
	Get(view string) (Snapshot, bool)

	// GetAll returns all snapshots ordered by view name.
	GetAll() []Snapshot

	// Subscribe returns a channel that receives changes.
	// The returned channel has a buffer; slow consumers may miss changes.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Change

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Change)
}
