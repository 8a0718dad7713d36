package yardwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/jpalmerr/yardwatch/internal/filter"
	"github.com/jpalmerr/yardwatch/internal/gate"
	"github.com/jpalmerr/yardwatch/internal/poller"
	"github.com/jpalmerr/yardwatch/internal/result"
	"github.com/jpalmerr/yardwatch/internal/server"
	"github.com/jpalmerr/yardwatch/internal/store"
)

// controller implements [server.Controller] over the running views.
type controller struct {
	views   map[string]*viewRuntime
	store   store.Store
	filters FilterRepository
	client  *poller.Client
	logger  *slog.Logger

	// statusMu serializes read-modify-write of view status
	statusMu sync.Mutex
}

var _ server.Controller = (*controller)(nil)

func (c *controller) lookup(view string) (*viewRuntime, error) {
	vr, ok := c.views[view]
	if !ok {
		return nil, fmt.Errorf("%q: %w", view, server.ErrNotFound)
	}
	return vr, nil
}

// updateStatus applies mutate to the stored status of view.
func (c *controller) updateStatus(view string, mutate func(*store.Status)) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	snap, ok := c.store.Get(view)
	if !ok {
		return
	}
	status := snap.Status
	mutate(&status)
	c.store.SetStatus(view, status)
}

// recordEvent folds a cycle event into the view's stored status.
func (c *controller) recordEvent(ev poller.Event) {
	vr, ok := c.views[ev.Cycle]
	if !ok {
		return
	}

	c.updateStatus(ev.Cycle, func(s *store.Status) {
		s.Suspended = vr.gate.Suspended()

		switch ev.Kind {
		case poller.EventChanged, poller.EventUnchanged:
			s.CheckedAt = ev.At
			s.LatencyMs = ev.Latency.Milliseconds()
			s.ConsecutiveErrors = 0
			s.LastError = nil
		case poller.EventFailed:
			s.CheckedAt = ev.At
			s.LatencyMs = ev.Latency.Milliseconds()
			s.ConsecutiveErrors = ev.ConsecutiveErrors
			msg := errorMessage(ev.Err)
			s.LastError = &msg
		case poller.EventHalted:
			s.Halted = true
			s.Notice = poller.ErrHalted.Error()
			s.ConsecutiveErrors = ev.ConsecutiveErrors
		case poller.EventReloaded:
			s.Halted = false
			s.Notice = ""
			s.ConsecutiveErrors = 0
			s.LastError = nil
		}
	})
}

// errorMessage prefers the decoded upstream message over the wrapped text.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var resErr *result.Error
	if errors.As(err, &resErr) && resErr.Message != "" {
		return resErr.Message
	}
	return err.Error()
}

func gateState(view string, g *gate.Gate) server.GateState {
	return server.GateState{
		View:      view,
		Suspended: g.Suspended(),
		Modals:    g.Count(gate.ReasonModal),
		Hidden:    g.Count(gate.ReasonHidden) > 0,
	}
}

// withGate runs fn on the view's gate and mirrors the result into status.
func (c *controller) withGate(view string, fn func(*gate.Gate)) (server.GateState, error) {
	vr, err := c.lookup(view)
	if err != nil {
		return server.GateState{}, err
	}
	fn(vr.gate)

	state := gateState(view, vr.gate)
	c.updateStatus(view, func(s *store.Status) { s.Suspended = state.Suspended })
	return state, nil
}

func (c *controller) OpenModal(view string) (server.GateState, error) {
	return c.withGate(view, func(g *gate.Gate) { g.Acquire(gate.ReasonModal) })
}

func (c *controller) CloseModal(view string) (server.GateState, error) {
	return c.withGate(view, func(g *gate.Gate) { g.Release(gate.ReasonModal) })
}

func (c *controller) SetHidden(view string, hidden bool) (server.GateState, error) {
	return c.withGate(view, func(g *gate.Gate) { g.SetHidden(hidden) })
}

func (c *controller) Gate(view string) (server.GateState, error) {
	vr, err := c.lookup(view)
	if err != nil {
		return server.GateState{}, err
	}
	return gateState(view, vr.gate), nil
}

func (c *controller) Refresh(view string) error {
	vr, err := c.lookup(view)
	if err != nil {
		return err
	}
	if !vr.cycle.Trigger() {
		return poller.ErrHalted
	}
	return nil
}

func (c *controller) Reload(view string) error {
	vr, err := c.lookup(view)
	if err != nil {
		return err
	}
	vr.cycle.Reload()
	return nil
}

func (c *controller) Stats(view string) (poller.Stats, error) {
	vr, err := c.lookup(view)
	if err != nil {
		return poller.Stats{}, err
	}
	return vr.cycle.Stats(), nil
}

func (c *controller) Filter(ctx context.Context, view string) (filter.State, error) {
	if _, err := c.lookup(view); err != nil {
		return filter.State{}, err
	}
	state, _, err := c.filters.Load(ctx, view)
	if err != nil {
		return filter.State{}, fmt.Errorf("load filter for %q: %w", view, err)
	}
	return state, nil
}

func (c *controller) SetFilter(ctx context.Context, view string, state filter.State) (filter.State, error) {
	if _, err := c.lookup(view); err != nil {
		return filter.State{}, err
	}
	state = state.Normalize()
	if err := c.filters.Save(ctx, view, state); err != nil {
		return filter.State{}, fmt.Errorf("save filter for %q: %w", view, err)
	}
	return state, nil
}

func (c *controller) selectionOf(view string) (*viewRuntime, error) {
	vr, err := c.lookup(view)
	if err != nil {
		return nil, err
	}
	if vr.selection == nil {
		return nil, fmt.Errorf("%q has no selection: %w", view, server.ErrUnsupported)
	}
	return vr, nil
}

func selectionState(vr *viewRuntime) server.SelectionState {
	return server.SelectionState{
		View:   vr.view.name,
		IDs:    vr.selection.IDs(),
		Max:    vr.selection.Max(),
		Locked: vr.selection.Locked(),
	}
}

func (c *controller) Selection(view string) (server.SelectionState, error) {
	vr, err := c.selectionOf(view)
	if err != nil {
		return server.SelectionState{}, err
	}
	return selectionState(vr), nil
}

func (c *controller) Select(view string, id int64) (server.SelectionState, error) {
	vr, err := c.selectionOf(view)
	if err != nil {
		return server.SelectionState{}, err
	}
	if err := vr.selection.Add(id); err != nil {
		return server.SelectionState{}, err
	}
	return selectionState(vr), nil
}

func (c *controller) Deselect(view string, id int64) (server.SelectionState, error) {
	vr, err := c.selectionOf(view)
	if err != nil {
		return server.SelectionState{}, err
	}
	if err := vr.selection.Remove(id); err != nil {
		return server.SelectionState{}, err
	}
	return selectionState(vr), nil
}

// Submit posts the selected ids to the view's submit URL. On success the
// selection is cleared and the view refreshed.
func (c *controller) Submit(ctx context.Context, view string) (server.SelectionState, error) {
	vr, err := c.selectionOf(view)
	if err != nil {
		return server.SelectionState{}, err
	}
	spec, _ := vr.view.Selection()

	err = vr.selection.Submit(ctx, func(ctx context.Context, ids []int64) error {
		body, err := json.Marshal(map[string][]int64{"ids": ids})
		if err != nil {
			return err
		}
		resp := c.client.Fetch(ctx, poller.Request{
			Method:      http.MethodPost,
			URL:         spec.SubmitURL,
			Headers:     vr.view.headers,
			Body:        body,
			Timeout:     vr.view.timeout,
			NoCacheBust: true,
		})
		_, err = result.Decode(resp.Body, resp.StatusCode, resp.Error)
		return err
	})
	if err != nil {
		c.logger.Warn("selection submit failed", "view", view, "error", err)
		return server.SelectionState{}, err
	}

	c.logger.Info("selection submitted", "view", view)
	vr.cycle.Trigger()
	return selectionState(vr), nil
}
