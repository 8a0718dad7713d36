package yardwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/yardwatch/internal/digest"
	"github.com/jpalmerr/yardwatch/internal/filter"
	"github.com/jpalmerr/yardwatch/internal/gate"
	"github.com/jpalmerr/yardwatch/internal/poller"
	"github.com/jpalmerr/yardwatch/internal/result"
	"github.com/jpalmerr/yardwatch/internal/selection"
	"github.com/jpalmerr/yardwatch/internal/server"
	"github.com/jpalmerr/yardwatch/internal/store"
)

const (
	defaultPollingInterval = 15 * time.Second
	defaultPort            = 8080
	defaultMaxConcurrency  = 10
)

// Yardwatch is the orchestrator: it polls every configured view, keeps the
// latest regions in a store and serves them over HTTP.
//
// The typical lifecycle is:
//
//	yw, err := yardwatch.New(yardwatch.WithView(v))
//	if err != nil {
//	    slog.Error("failed to create yardwatch", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	yw.Start(ctx) // blocks until context cancelled
type Yardwatch struct {
	title           string
	views           []View
	pollingInterval time.Duration
	port            int
	maxConcurrency  int
	errorThreshold  int
	logger          *slog.Logger
	callbacks       []func(Event)
	filters         FilterRepository
	http2           bool
}

// New creates a new [Yardwatch] instance with the given options.
//
// At least one view must be configured via [WithView] or [WithViews].
// Other options have sensible defaults:
//   - Polling interval: 15 seconds
//   - Port: 8080
//   - Max concurrency: 10
//   - Error threshold: 3
//   - Filter repository: in memory
//
// Returns an error if no views are configured, view names collide, or any
// option is invalid.
func New(opts ...Option) (*Yardwatch, error) {
	cfg := &config{
		views:           []View{},
		pollingInterval: defaultPollingInterval,
		port:            defaultPort,
		maxConcurrency:  defaultMaxConcurrency,
		errorThreshold:  poller.DefaultErrorThreshold,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.views) == 0 {
		return nil, errors.New("at least one view is required")
	}

	// names key the API routes and the filter repository
	seen := make(map[string]bool, len(cfg.views))
	for _, v := range cfg.views {
		if v.name == "" {
			return nil, errors.New("view must be created with NewView")
		}
		if seen[v.name] {
			return nil, fmt.Errorf("duplicate view name: %q", v.name)
		}
		seen[v.name] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	filters := cfg.filters
	if filters == nil {
		filters = filter.NewMemoryRepository()
	}

	return &Yardwatch{
		title:           cfg.title,
		views:           cfg.views,
		pollingInterval: cfg.pollingInterval,
		port:            cfg.port,
		maxConcurrency:  cfg.maxConcurrency,
		errorThreshold:  cfg.errorThreshold,
		logger:          logger,
		callbacks:       cfg.callbacks,
		filters:         filters,
		http2:           cfg.http2,
	}, nil
}

// Start begins polling views and serving the API.
//
// Start is a blocking call that runs until the provided context is
// cancelled. Every view is polled immediately, then at its interval.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start.
func (y *Yardwatch) Start(ctx context.Context) error {
	y.logger.Info("yardwatch starting", "view_count", len(y.views))
	y.logger.Info("api available", "url", fmt.Sprintf("http://localhost:%d/api/views", y.port))

	if ctx.Err() != nil {
		return nil
	}

	rt, err := y.prepare()
	if err != nil {
		return err
	}
	defer rt.client.Close()

	rt.scheduler.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.consume()
	}()

	cleanup := func() {
		rt.scheduler.Stop() // closes results channel
		wg.Wait()
	}

	httpServer := server.NewServer(rt.store, rt.controller, y.port, y.title, y.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	y.logger.Info("yardwatch stopped")
	return nil
}

// Views returns a copy of the configured views.
func (y *Yardwatch) Views() []View {
	cp := make([]View, len(y.views))
	copy(cp, y.views)
	return cp
}

// Port returns the configured HTTP port.
func (y *Yardwatch) Port() int {
	return y.port
}

// PollingInterval returns the interval used by views without their own.
func (y *Yardwatch) PollingInterval() time.Duration {
	return y.pollingInterval
}

// ErrorThreshold returns the consecutive-error limit of every view.
func (y *Yardwatch) ErrorThreshold() int {
	return y.errorThreshold
}

// runtime is the wired state of one Start call.
type runtime struct {
	client     *poller.Client
	store      *store.MemoryStore
	scheduler  *poller.Scheduler
	controller *controller
	callbacks  []func(Event)
	logger     *slog.Logger
}

// viewRuntime is the per-view state shared by the cycle and the API.
type viewRuntime struct {
	view      View
	gate      *gate.Gate
	cycle     *poller.Cycle[extraction]
	selection *selection.Selection
}

// prepare wires client, store, scheduler and one cycle per view.
func (y *Yardwatch) prepare() (*runtime, error) {
	var clientOpts []poller.ClientOption
	if y.http2 {
		clientOpts = append(clientOpts, poller.WithHTTP2())
	}
	client, err := poller.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	st := store.NewMemoryStore()
	scheduler := poller.NewScheduler(y.maxConcurrency, y.logger)

	ctrl := &controller{
		views:   make(map[string]*viewRuntime, len(y.views)),
		store:   st,
		filters: y.filters,
		client:  client,
		logger:  y.logger,
	}

	for _, v := range y.views {
		vr, err := y.newViewRuntime(v, client, st, scheduler)
		if err != nil {
			client.Close()
			return nil, err
		}
		ctrl.views[v.name] = vr

		st.Register(store.Snapshot{View: v.name, Kind: v.kind.String(), URL: v.url, Labels: v.Labels()})
		if err := scheduler.Add(vr.cycle); err != nil {
			client.Close()
			return nil, err
		}
	}

	return &runtime{
		client:     client,
		store:      st,
		scheduler:  scheduler,
		controller: ctrl,
		callbacks:  y.callbacks,
		logger:     y.logger,
	}, nil
}

func (y *Yardwatch) newViewRuntime(v View, client *poller.Client, st store.Store, scheduler *poller.Scheduler) (*viewRuntime, error) {
	vr := &viewRuntime{view: v, gate: gate.New()}

	if spec, ok := v.Selection(); ok {
		sel, err := selection.New(spec.Max)
		if err != nil {
			return nil, fmt.Errorf("view %q: %w", v.name, err)
		}
		vr.selection = sel
	}

	interval := v.interval
	if interval == 0 {
		interval = y.pollingInterval
	}

	cycle, err := poller.NewCycle(poller.CycleConfig[extraction]{
		Name:     v.name,
		Interval: interval,
		Fetch:    fetcher(client, v),
		Digest: func(e extraction) (int32, error) {
			return digest.Hash(e.fingerprint), nil
		},
		Apply: func(_ context.Context, e extraction, hash int32) ([]string, error) {
			change := st.Update(store.Snapshot{
				View:    v.name,
				Kind:    v.kind.String(),
				URL:     v.url,
				Labels:  v.Labels(),
				Hash:    hash,
				Regions: e.regions,
				Items:   e.items,
			})
			return change.Changed, nil
		},
		Suspended: vr.gate.Suspended,
		Resumed:   vr.gate.Resumed,
		Threshold: y.errorThreshold,
		Limiter:   scheduler.Limiter(),
		OnEvent:   scheduler.Emit,
		Logger:    y.logger,
	})
	if err != nil {
		return nil, err
	}
	vr.cycle = cycle
	return vr, nil
}

// fetcher returns the fetch step of a view's cycle: one request, decoded
// once at the boundary, cut into regions.
func fetcher(client *poller.Client, v View) func(context.Context) (extraction, error) {
	req := poller.Request{
		Method:  v.method,
		URL:     v.url,
		Headers: v.headers,
		Body:    v.body,
		Timeout: v.timeout,
	}

	return func(ctx context.Context) (extraction, error) {
		resp := client.Fetch(ctx, req)

		if v.kind == KindHTML {
			if err := result.CheckHTML(resp.Body, resp.StatusCode, resp.Error); err != nil {
				return extraction{}, err
			}
			return extractHTML(resp.Body, v.regions)
		}

		raw, err := result.Decode(resp.Body, resp.StatusCode, resp.Error)
		if err != nil {
			return extraction{}, err
		}
		return extractJSON(raw, v.regions, v.items)
	}
}

// consume drains scheduler events into view status and callbacks until the
// scheduler stops.
func (rt *runtime) consume() {
	for ev := range rt.scheduler.Results() {
		// store first, callbacks fire after data is persisted
		rt.controller.recordEvent(ev)

		if len(rt.callbacks) > 0 {
			public := publicEvent(ev)
			for _, cb := range rt.callbacks {
				invokeCallbackSafe(cb, public, rt.logger)
			}
		}
	}
}

// invokeCallbackSafe calls a callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Event), ev Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("change callback panicked",
				"panic", r,
				"view", ev.View,
			)
		}
	}()
	cb(ev)
}
