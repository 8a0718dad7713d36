package server

import (
	"context"
	"errors"

	"github.com/jpalmerr/yardwatch/internal/filter"
	"github.com/jpalmerr/yardwatch/internal/poller"
)

var (
	// ErrNotFound is returned by a [Controller] for an unknown view.
	ErrNotFound = errors.New("view not found")

	// ErrUnsupported is returned when a view lacks the requested feature,
	// such as a selection on a view configured without one.
	ErrUnsupported = errors.New("not supported by this view")
)

// GateState is the suspend state of one view.
type GateState struct {
	View      string `json:"view"`
	Suspended bool   `json:"suspended"`
	Modals    int    `json:"modals"`
	Hidden    bool   `json:"hidden"`
}

// SelectionState is the capped selection of one view.
type SelectionState struct {
	View   string  `json:"view"`
	IDs    []int64 `json:"ids"`
	Max    int     `json:"max"`
	Locked bool    `json:"locked"`
}

// Controller is the view-level surface the server drives.
//
// Implementations return [ErrNotFound] (possibly wrapped) for unknown views.
type Controller interface {
	OpenModal(view string) (GateState, error)
	CloseModal(view string) (GateState, error)
	SetHidden(view string, hidden bool) (GateState, error)
	Gate(view string) (GateState, error)

	Refresh(view string) error
	Reload(view string) error
	Stats(view string) (poller.Stats, error)

	Filter(ctx context.Context, view string) (filter.State, error)
	SetFilter(ctx context.Context, view string, state filter.State) (filter.State, error)

	Selection(view string) (SelectionState, error)
	Select(view string, id int64) (SelectionState, error)
	Deselect(view string, id int64) (SelectionState, error)
	Submit(ctx context.Context, view string) (SelectionState, error)
}
