package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/yardwatch/internal/result"
)

// DefaultErrorThreshold is the number of consecutive counted failures
// after which a cycle halts.
const DefaultErrorThreshold = 3

// ErrHalted is returned by operations on a halted cycle.
var ErrHalted = errors.New("polling halted after repeated errors; reload required")

// CycleConfig parameterizes a [Cycle].
//
// Fetch, Digest and Apply are required. T is whatever Fetch produces; it is
// handed unchanged to Digest and, when the digest changed, to Apply.
type CycleConfig[T any] struct {
	// Name identifies the cycle in events and logs.
	Name string

	// Interval is the time between ticks.
	Interval time.Duration

	// Fetch retrieves the current state.
	Fetch func(ctx context.Context) (T, error)

	// Digest reduces the fetched state to a content hash.
	Digest func(T) (int32, error)

	// Apply publishes the fetched state and returns the names of the parts
	// that moved. Called only when the hash changed.
	Apply func(ctx context.Context, payload T, hash int32) ([]string, error)

	// Suspended reports whether ticks should be skipped. May be nil.
	Suspended func() bool

	// Resumed returns a channel closed when suspension ends. When set, a
	// tick skipped during suspension is caught up as soon as it closes.
	Resumed func() <-chan struct{}

	// Threshold is the consecutive-error limit. Zero means DefaultErrorThreshold.
	Threshold int

	// Limiter bounds concurrent fetches across cycles. May be nil.
	Limiter chan struct{}

	// OnEvent receives every event. Must not block for long. May be nil.
	OnEvent func(Event)

	// Logger receives cycle logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Cycle is one polling-diff-render loop.
//
// All state (in-flight flag, last hash, error counter, halted flag) belongs
// to the instance, so any number of cycles can run side by side.
// Lifecycle methods are safe for concurrent use.
type Cycle[T any] struct {
	cfg    CycleConfig[T]
	logger *slog.Logger

	inFlight atomic.Bool
	missed   atomic.Bool

	mu                sync.Mutex
	lastHash          int32
	hasHash           bool
	consecutiveErrors int
	halted            bool
	started           bool
	stopped           bool
	cancel            context.CancelFunc

	trigger chan struct{}
	reload  chan struct{}
	wg      sync.WaitGroup

	requests  atomic.Int64
	changes   atomic.Int64
	failures  atomic.Int64
	dropped   atomic.Int64
	suspended atomic.Int64
}

// NewCycle validates cfg and returns a stopped [Cycle].
func NewCycle[T any](cfg CycleConfig[T]) (*Cycle[T], error) {
	if cfg.Name == "" {
		return nil, errors.New("cycle name cannot be empty")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("cycle %q: interval must be positive", cfg.Name)
	}
	if cfg.Fetch == nil || cfg.Digest == nil || cfg.Apply == nil {
		return nil, fmt.Errorf("cycle %q: fetch, digest and apply are required", cfg.Name)
	}
	if cfg.Threshold < 0 {
		return nil, fmt.Errorf("cycle %q: threshold cannot be negative", cfg.Name)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultErrorThreshold
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Cycle[T]{
		cfg:     cfg,
		logger:  logger.With("view", cfg.Name),
		trigger: make(chan struct{}, 1),
		reload:  make(chan struct{}, 1),
	}, nil
}

// Name returns the cycle name.
func (c *Cycle[T]) Name() string {
	return c.cfg.Name
}

// Start runs the first refresh immediately and then ticks at the configured
// interval until [Cycle.Stop] is called or ctx is cancelled.
//
// Start is non-blocking and idempotent. If Stop was called before Start,
// Start is a no-op.
func (c *Cycle[T]) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go c.loop(runCtx)
}

// Stop cancels the loop and any in-flight request and waits for them to
// finish. Stop is idempotent and safe to call before Start.
func (c *Cycle[T]) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		if c.cancel != nil {
			c.cancel()
		}
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// Trigger asks for an immediate tick. The tick is subject to the same
// guards as a timer tick. Returns false if the cycle is halted.
func (c *Cycle[T]) Trigger() bool {
	if c.Halted() {
		return false
	}
	select {
	case c.trigger <- struct{}{}:
	default:
		// a trigger is already pending
	}
	return true
}

// Reload clears the halted state, the error counter and the last hash, then
// requests a full refresh. This is the only way a halted cycle resumes.
func (c *Cycle[T]) Reload() {
	c.mu.Lock()
	c.halted = false
	c.consecutiveErrors = 0
	c.hasHash = false
	c.lastHash = 0
	c.mu.Unlock()

	c.emit(Event{Kind: EventReloaded})
	c.logger.Info("polling reloaded")

	select {
	case c.reload <- struct{}{}:
	default:
	}
}

// Halted reports whether the cycle stopped after repeated errors.
func (c *Cycle[T]) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}

// Stats returns a snapshot of the cycle's counters.
func (c *Cycle[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Name:              c.cfg.Name,
		Interval:          c.cfg.Interval,
		Requests:          c.requests.Load(),
		Changes:           c.changes.Load(),
		Failures:          c.failures.Load(),
		Dropped:           c.dropped.Load(),
		Suspended:         c.suspended.Load(),
		ConsecutiveErrors: c.consecutiveErrors,
		InFlight:          c.inFlight.Load(),
		Halted:            c.halted,
		LastHash:          c.lastHash,
	}
}

func (c *Cycle[T]) loop(ctx context.Context) {
	defer c.wg.Done()

	c.tick(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		// a halted cycle stops ticking entirely until reloaded
		if c.Halted() {
			ticker.Stop()
			select {
			case <-ctx.Done():
				return
			case <-c.reload:
				ticker.Reset(c.cfg.Interval)
				c.tick(ctx)
				continue
			}
		}

		var resumed <-chan struct{}
		if c.cfg.Resumed != nil {
			resumed = c.cfg.Resumed()
			// the gate may have reopened before the channel was read
			if c.missed.Load() && !c.suspendedNow() && c.missed.Swap(false) {
				c.tick(ctx)
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		case <-c.trigger:
			c.tick(ctx)
		case <-c.reload:
			c.tick(ctx)
		case <-resumed:
			if c.missed.Swap(false) {
				c.tick(ctx)
			}
		}
	}
}

// tick applies the guards and, if they pass, starts one refresh.
func (c *Cycle[T]) tick(ctx context.Context) {
	if ctx.Err() != nil || c.Halted() {
		return
	}

	if c.suspendedNow() {
		c.skipSuspended()
		return
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		c.dropped.Add(1)
		c.emit(Event{Kind: EventDropped})
		c.logger.Debug("tick dropped, refresh still in flight")
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		events := c.refresh(ctx)
		// clear the flag before reporting so observers can tick again
		c.inFlight.Store(false)
		for _, ev := range events {
			c.emit(ev)
		}
	}()
}

// refresh runs fetch, digest and apply once and returns the events to report.
func (c *Cycle[T]) refresh(ctx context.Context) []Event {
	if c.cfg.Limiter != nil {
		select {
		case c.cfg.Limiter <- struct{}{}:
			defer func() { <-c.cfg.Limiter }()
		case <-ctx.Done():
			return nil
		}
	}

	// the gate may have closed while waiting for a slot
	if c.suspendedNow() {
		c.missed.Store(true)
		c.suspended.Add(1)
		return []Event{{Kind: EventSuspended}}
	}

	start := time.Now()
	c.requests.Add(1)

	payload, err := c.cfg.Fetch(ctx)
	if err != nil {
		return c.fail(err, time.Since(start))
	}

	// stopped while the request was in flight: the stale response is discarded
	if ctx.Err() != nil {
		return nil
	}

	hash, err := c.safeDigest(payload)
	if err != nil {
		return c.fail(err, time.Since(start))
	}

	c.mu.Lock()
	changed := !c.hasHash || hash != c.lastHash
	c.mu.Unlock()

	if !changed {
		c.succeed()
		c.logger.Debug("view unchanged", "hash", hash)
		return []Event{{Kind: EventUnchanged, Hash: hash, Latency: time.Since(start)}}
	}

	changedParts, err := c.safeApply(ctx, payload, hash)
	if err != nil {
		return c.fail(err, time.Since(start))
	}

	c.mu.Lock()
	c.lastHash = hash
	c.hasHash = true
	c.mu.Unlock()

	c.changes.Add(1)
	c.succeed()
	c.logger.Debug("view changed", "hash", hash, "latency_ms", time.Since(start).Milliseconds())
	return []Event{{Kind: EventChanged, Hash: hash, Changed: changedParts, Latency: time.Since(start)}}
}

func (c *Cycle[T]) suspendedNow() bool {
	return c.cfg.Suspended != nil && c.cfg.Suspended()
}

// skipSuspended records a tick skipped by the gate so it is caught up on resume.
func (c *Cycle[T]) skipSuspended() {
	c.missed.Store(true)
	c.suspended.Add(1)
	c.emit(Event{Kind: EventSuspended})
}

// succeed resets the error counter.
func (c *Cycle[T]) succeed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors = 0
}

func (c *Cycle[T]) fail(err error, latency time.Duration) []Event {
	c.failures.Add(1)

	if !result.Counts(err) {
		c.mu.Lock()
		n := c.consecutiveErrors
		c.mu.Unlock()

		c.logger.Debug("refresh timed out or aborted", "error", err)
		return []Event{{Kind: EventFailed, Err: err, ConsecutiveErrors: n, Latency: latency}}
	}

	c.mu.Lock()
	c.consecutiveErrors++
	n := c.consecutiveErrors
	halt := !c.halted && n >= c.cfg.Threshold
	if halt {
		c.halted = true
	}
	c.mu.Unlock()

	c.logger.Warn("refresh failed", "error", err, "consecutive_errors", n)
	events := []Event{{Kind: EventFailed, Err: err, Counted: true, ConsecutiveErrors: n, Latency: latency}}

	if halt {
		c.logger.Error("polling halted", "error", err, "consecutive_errors", n, "threshold", c.cfg.Threshold)
		events = append(events, Event{Kind: EventHalted, Err: err, Counted: true, ConsecutiveErrors: n})
	}
	return events
}

func (c *Cycle[T]) emit(ev Event) {
	if c.cfg.OnEvent == nil {
		return
	}
	ev.Cycle = c.cfg.Name
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	c.cfg.OnEvent(ev)
}

// safeDigest calls the digest function with panic recovery.
func (c *Cycle[T]) safeDigest(payload T) (hash int32, err error) {
	defer c.recoverInto("digest", &err)
	return c.cfg.Digest(payload)
}

// safeApply calls the apply function with panic recovery.
func (c *Cycle[T]) safeApply(ctx context.Context, payload T, hash int32) (changed []string, err error) {
	defer c.recoverInto("apply", &err)
	return c.cfg.Apply(ctx, payload, hash)
}

// recoverInto converts a panic into an error carrying a correlation ID.
// The full stack trace is logged server-side under the same ID.
func (c *Cycle[T]) recoverInto(stage string, err *error) {
	r := recover()
	if r == nil {
		return
	}

	correlationID := uuid.NewString()
	c.logger.Error(stage+" panic",
		"correlation_id", correlationID,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(debug.Stack()),
	)
	*err = fmt.Errorf("%s panic (correlation_id: %s)", stage, correlationID)
}
