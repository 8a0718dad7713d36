package yardwatch

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jpalmerr/yardwatch/internal/filter"
)

// config holds mutable state during Yardwatch construction.
type config struct {
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

// FilterRepository persists the filter state of each view.
//
// It is satisfied by the in-memory and SQLite repositories returned by
// [NewMemoryFilterRepository] and [OpenSQLiteFilterRepository].
type FilterRepository = filter.Repository

// NewMemoryFilterRepository returns a filter repository that lives for the
// lifetime of the process. It is the default.
func NewMemoryFilterRepository() FilterRepository {
	return filter.NewMemoryRepository()
}

// OpenSQLiteFilterRepository opens (creating if needed) a SQLite database at
// path and returns a filter repository backed by it, plus a close function.
// Use ":memory:" for a throwaway database.
func OpenSQLiteFilterRepository(path string) (FilterRepository, func() error, error) {
	repo, err := filter.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}

// Option is a function that configures a [Yardwatch] instance during
// construction. Options return an error if validation fails.
type Option func(*config) error

// WithView adds a single [View] to the polling list.
//
// Can be called multiple times. At least one view must be configured for
// [New] to succeed.
func WithView(v View) Option {
	return func(cfg *config) error {
		cfg.views = append(cfg.views, v)
		return nil
	}
}

// WithViews adds multiple [View] values, such as the output of
// [NewViewGrid].
func WithViews(views ...View) Option {
	return func(cfg *config) error {
		cfg.views = append(cfg.views, views...)
		return nil
	}
}

// WithPollingInterval sets the interval of views that do not set their own
// via [WithInterval]. Defaults to 15 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *config) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithPort sets the HTTP port for the API server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *config) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency sets the maximum number of requests in flight across
// all views. Defaults to 10.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithErrorThreshold sets how many consecutive counted failures halt a view.
// A halted view stays halted until it is reloaded. Defaults to 3.
//
// Returns an error if the value is zero or negative.
func WithErrorThreshold(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errors.New("error threshold must be positive")
		}
		cfg.errorThreshold = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithChangeCallback registers a function called for every polling event
// of every view, after the store has been updated.
//
// Multiple callbacks run in registration order from a single goroutine, so
// they must not block. Panics are recovered and logged.
//
// Example:
//
//	yw, err := yardwatch.New(
//	    yardwatch.WithView(v),
//	    yardwatch.WithChangeCallback(func(ev yardwatch.Event) {
//	        if ev.Kind == yardwatch.EventHalted {
//	            log.Printf("ALERT: %s stopped polling: %v", ev.View, ev.Err)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithChangeCallback(cb func(Event)) Option {
	return func(cfg *config) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

// WithFilterRepository sets where filter state is persisted. Defaults to
// an in-memory repository.
//
// Returns an error if repo is nil.
func WithFilterRepository(repo FilterRepository) Option {
	return func(cfg *config) error {
		if repo == nil {
			return errors.New("filter repository cannot be nil")
		}
		cfg.filters = repo
		return nil
	}
}

// WithHTTP2 polls over HTTP/2 where the server supports it.
func WithHTTP2() Option {
	return func(cfg *config) error {
		cfg.http2 = true
		return nil
	}
}

// WithTitle sets the title reported by the API. Defaults to "yardwatch".
func WithTitle(title string) Option {
	return func(cfg *config) error {
		cfg.title = title
		return nil
	}
}
