package yardwatch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// gridConfig holds configuration during view grid construction.
type gridConfig struct {
	urlTemplate  string
	bodyTemplate string
	dimensions   map[string][]string
	staticLabels map[string]string
	headers      map[string]string
	timeout      time.Duration
	method       string
	interval     time.Duration
	kind         Kind
	viewOptions  []ViewOption
}

// GridOption configures view grid generation for [NewViewGrid].
type GridOption func(*gridConfig) error

// WithURLTemplate sets the URL template for view generation.
// The template uses Go's text/template syntax with dimension keys as variables.
//
// Example:
//
//	WithURLTemplate("https://yard.example.com/patio/{{.yard}}/pendientes?gate={{.gate}}")
func WithURLTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("URL template required")
		}
		cfg.urlTemplate = tmpl
		return nil
	}
}

// WithBodyTemplate sets a JSON request body template. Dimension values are
// JSON-escaped before interpolation, so the template should quote them:
//
//	WithBodyTemplate(`{"gate":"{{.gate}}"}`)
func WithBodyTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("body template cannot be empty")
		}
		cfg.bodyTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the dimension values for cartesian product expansion.
//
// Returns an error if the map is empty, any dimension has no values,
// or any value is an empty string.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("dimension '%s' has no values", k)
			}
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
				}
			}
		}
		cfg.dimensions = dims
		return nil
	}
}

// WithGridLabels adds static labels to all generated views.
// On collision, static labels take precedence over dimension labels.
func WithGridLabels(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGridLabels requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.staticLabels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGridHeaders adds HTTP headers to all generated views.
func WithGridHeaders(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGridHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGridTimeout sets the request timeout for all generated views.
// Zero means the view default.
func WithGridTimeout(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithGridMethod sets the HTTP method for all generated views.
func WithGridMethod(method string) GridOption {
	return func(cfg *gridConfig) error {
		switch method {
		case http.MethodGet, http.MethodPost:
			cfg.method = method
			return nil
		default:
			return errors.New("method must be GET or POST")
		}
	}
}

// WithGridInterval sets the polling interval for all generated views.
// Zero means the global polling interval.
func WithGridInterval(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < 0 {
			return errors.New("interval cannot be negative")
		}
		if d != 0 && d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > time.Hour {
			return errors.New("interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}

// WithGridKind sets the payload format of all generated views.
func WithGridKind(kind Kind) GridOption {
	return func(cfg *gridConfig) error {
		switch kind {
		case KindJSON, KindHTML:
			cfg.kind = kind
			return nil
		default:
			return fmt.Errorf("unknown view kind %q", kind)
		}
	}
}

// WithGridViewOptions appends view options applied to every generated view
// after the grid's own, such as regions, items or a selection.
func WithGridViewOptions(opts ...ViewOption) GridOption {
	return func(cfg *gridConfig) error {
		cfg.viewOptions = append(cfg.viewOptions, opts...)
		return nil
	}
}
