package poller

import "time"

// EventKind describes the outcome of one cycle tick.
type EventKind string

const (
	// EventChanged means the content hash differed and apply succeeded.
	EventChanged EventKind = "changed"

	// EventUnchanged means the content hash matched the last applied one.
	EventUnchanged EventKind = "unchanged"

	// EventFailed means fetch, digest or apply failed.
	EventFailed EventKind = "failed"

	// EventHalted means the consecutive-error threshold was reached.
	// No further requests are made until the cycle is reloaded.
	EventHalted EventKind = "halted"

	// EventDropped means a tick arrived while a request was in flight.
	EventDropped EventKind = "dropped"

	// EventSuspended means a tick was skipped because the cycle was suspended.
	EventSuspended EventKind = "suspended"

	// EventReloaded means the cycle state was reset by [Cycle.Reload].
	EventReloaded EventKind = "reloaded"
)

// Event is emitted by a [Cycle] for every tick it handles.
type Event struct {
	// Cycle is the name of the emitting cycle.
	Cycle string

	// Kind is the outcome of the tick.
	Kind EventKind

	// Hash is the content hash computed on this tick (changed/unchanged only).
	Hash int32

	// Changed lists what Apply reported as moved on this tick (changed only).
	Changed []string

	// Err is the failure cause for failed and halted events.
	Err error

	// Counted reports whether Err counted toward the error threshold.
	Counted bool

	// ConsecutiveErrors is the counter value after this tick.
	ConsecutiveErrors int

	// Latency is the time from the start of the fetch to the end of apply.
	Latency time.Duration

	// At is when the event was produced.
	At time.Time
}

// Stats is a point-in-time view of a cycle's counters.
type Stats struct {
	Name              string        `json:"name"`
	Interval          time.Duration `json:"interval"`
	Requests          int64         `json:"requests"`
	Changes           int64         `json:"changes"`
	Failures          int64         `json:"failures"`
	Dropped           int64         `json:"dropped"`
	Suspended         int64         `json:"suspended"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	InFlight          bool          `json:"in_flight"`
	Halted            bool          `json:"halted"`
	LastHash          int32         `json:"last_hash"`
}
