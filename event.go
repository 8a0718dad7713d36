package yardwatch

import (
	"time"

	"github.com/jpalmerr/yardwatch/internal/poller"
)

// EventKind describes the outcome of one polling tick of a view.
type EventKind string

const (
	// EventChanged means the view's content hash moved and the new regions
	// were published.
	EventChanged EventKind = EventKind(poller.EventChanged)

	// EventUnchanged means the view was polled and nothing moved.
	EventUnchanged EventKind = EventKind(poller.EventUnchanged)

	// EventFailed means the poll failed. See [Event.Counted].
	EventFailed EventKind = EventKind(poller.EventFailed)

	// EventHalted means the consecutive-error threshold was reached. The
	// view is not polled again until it is reloaded.
	EventHalted EventKind = EventKind(poller.EventHalted)

	// EventDropped means a tick arrived while a request was in flight.
	EventDropped EventKind = EventKind(poller.EventDropped)

	// EventSuspended means a tick was skipped because a modal was open or
	// the page was hidden.
	EventSuspended EventKind = EventKind(poller.EventSuspended)

	// EventReloaded means the view was reloaded after a halt.
	EventReloaded EventKind = EventKind(poller.EventReloaded)
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	return string(k)
}

// Event is delivered to callbacks registered with [WithChangeCallback].
type Event struct {
	// View is the name of the view.
	View string

	// Kind is the outcome of the tick.
	Kind EventKind

	// Changed lists the regions whose content moved. Set for EventChanged.
	Changed []string

	// Hash is the view's content hash for changed and unchanged ticks.
	Hash int32

	// Err is the failure cause for failed and halted events.
	Err error

	// Counted reports whether Err counted toward the error threshold.
	// Timeouts and aborted requests do not count.
	Counted bool

	// ConsecutiveErrors is the error counter after this tick.
	ConsecutiveErrors int

	// Latency is the time from the start of the request to the end of apply.
	Latency time.Duration

	// At is when the event was produced.
	At time.Time
}

// publicEvent converts a cycle event. The changed list is copied.
func publicEvent(ev poller.Event) Event {
	out := Event{
		View:              ev.Cycle,
		Kind:              EventKind(ev.Kind),
		Hash:              ev.Hash,
		Err:               ev.Err,
		Counted:           ev.Counted,
		ConsecutiveErrors: ev.ConsecutiveErrors,
		Latency:           ev.Latency,
		At:                ev.At,
	}
	if len(ev.Changed) > 0 {
		out.Changed = append([]string(nil), ev.Changed...)
	}
	return out
}
