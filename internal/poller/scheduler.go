package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Runner is the type-independent surface of a [Cycle].
type Runner interface {
	Name() string
	Start(ctx context.Context)
	Stop()
	Trigger() bool
	Reload()
	Halted() bool
	Stats() Stats
}

// Scheduler starts and stops a set of cycles together and merges their
// events into a single channel.
//
// Cycles keep independent timers and state; the scheduler only bounds how
// many fetches run at once across all of them (see [Scheduler.Limiter]).
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	runners map[string]Runner
	order   []string
	limiter chan struct{}
	results chan Event
	logger  *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	stopped   bool
	closeOnce sync.Once
	stopDone  chan struct{}

	// sendMu keeps results open while an Emit is sending
	sendMu sync.RWMutex
}

// NewScheduler creates a new [Scheduler].
//
// maxConcurrency bounds concurrent fetches across all cycles that use
// [Scheduler.Limiter]; values below 1 are treated as 1.
func NewScheduler(maxConcurrency int, logger *slog.Logger) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runners:  make(map[string]Runner),
		limiter:  make(chan struct{}, maxConcurrency),
		results:  make(chan Event, 256),
		logger:   logger,
		stopDone: make(chan struct{}),
	}
}

// Limiter returns the semaphore cycles should use as [CycleConfig.Limiter].
func (s *Scheduler) Limiter() chan struct{} {
	return s.limiter
}

// Emit forwards ev to the results channel. It is meant to be used as
// [CycleConfig.OnEvent]. Emit blocks while the channel is full and gives up
// once the scheduler stops.
func (s *Scheduler) Emit(ev Event) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()

	s.mu.Lock()
	ctx := s.ctx
	stopped := s.stopped
	s.mu.Unlock()

	if stopped || ctx == nil {
		return
	}

	select {
	case s.results <- ev:
	case <-ctx.Done():
	}
}

// Add registers r. Names must be unique. Runners added after Start are
// started immediately.
func (s *Scheduler) Add(r Runner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler stopped, cannot add %q", r.Name())
	}
	if _, exists := s.runners[r.Name()]; exists {
		return fmt.Errorf("duplicate cycle name: %q", r.Name())
	}
	s.runners[r.Name()] = r
	s.order = append(s.order, r.Name())

	if s.started {
		r.Start(s.ctx)
	}
	return nil
}

// Get returns the runner registered under name.
func (s *Scheduler) Get(name string) (Runner, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[name]
	return r, ok
}

// Names returns the registered runner names in registration order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Results returns a receive-only channel that emits [Event] values.
//
// The channel is closed when the scheduler stops. Consumers should read from
// this channel until it is closed to receive all events.
func (s *Scheduler) Results() <-chan Event {
	return s.results
}

// Start starts every registered cycle. Each cycle refreshes immediately and
// then ticks on its own interval.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; if Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, name := range s.order {
		s.runners[name].Start(s.ctx)
	}
	s.logger.Info("scheduler started", "cycles", len(s.order))
}

// Stop halts all cycles and waits for their in-flight refreshes to finish,
// then closes the results channel.
//
// Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.stopDone
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	runners := make([]Runner, 0, len(s.order))
	for _, name := range s.order {
		runners = append(runners, s.runners[name])
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r Runner) {
			defer wg.Done()
			r.Stop()
		}(r)
	}
	wg.Wait()

	s.sendMu.Lock()
	s.closeOnce.Do(func() { close(s.results) })
	s.sendMu.Unlock()
	close(s.stopDone)
}
