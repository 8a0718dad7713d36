package yardwatch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// viewConfig holds mutable state during view construction.
type viewConfig struct {
	labels    map[string]string
	headers   map[string]string
	body      []byte
	timeout   time.Duration
	interval  time.Duration
	method    string
	kind      Kind
	regions   []RegionSpec
	items     *ItemSpec
	selection *SelectionSpec
}

// ViewOption is a function that configures a [View] during construction.
//
// Options return an error if validation fails. Cross-option rules (such as
// HTML regions on a JSON view) are checked once all options are applied.
type ViewOption func(*viewConfig) error

// WithLabels adds metadata labels to the view.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	v, err := yardwatch.NewView("porteria", url,
//	    yardwatch.WithLabels("gate", "1", "yard", "norte"),
//	)
func WithLabels(keyValues ...string) ViewOption {
	return func(cfg *viewConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithLabels requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.labels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithHeaders adds custom HTTP headers to every poll of this view.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithHeaders(keyValues ...string) ViewOption {
	return func(cfg *viewConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithBody sets a JSON request body. A view with a body is polled with POST
// unless [WithMethod] says otherwise.
func WithBody(body []byte) ViewOption {
	return func(cfg *viewConfig) error {
		cfg.body = copyBytes(body)
		return nil
	}
}

// WithTimeout sets the HTTP request timeout for this view.
//
// A poll that times out fails but does not count toward the consecutive
// error threshold. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) ViewOption {
	return func(cfg *viewConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithMethod sets the HTTP method. Supported methods are GET and POST.
func WithMethod(method string) ViewOption {
	return func(cfg *viewConfig) error {
		switch method {
		case http.MethodGet, http.MethodPost:
			cfg.method = method
			return nil
		default:
			return errors.New("method must be GET or POST")
		}
	}
}

// WithInterval sets the polling interval for this view.
//
// The interval must be at least 1 second and at most 1 hour. If not
// specified, the view uses the global interval configured via
// [WithPollingInterval].
//
// Ticks arriving while a request is still in flight are dropped, so a slow
// endpoint is polled at most once per response.
func WithInterval(d time.Duration) ViewOption {
	return func(cfg *viewConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > time.Hour {
			return errors.New("interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}

// WithKind sets the payload format. Defaults to [KindJSON].
func WithKind(kind Kind) ViewOption {
	return func(cfg *viewConfig) error {
		switch kind {
		case KindJSON, KindHTML:
			cfg.kind = kind
			return nil
		default:
			return fmt.Errorf("unknown view kind %q", kind)
		}
	}
}

// WithRegion adds a JSON region selected by the first present path among
// paths. An empty path ("" or ".") selects the whole payload.
//
// Example:
//
//	// accept both {"data":{"pendientes":[...]}} and {"pendientes":[...]}
//	yardwatch.WithRegion("pending", "data.pendientes", "pendientes")
func WithRegion(name string, paths ...string) ViewOption {
	return func(cfg *viewConfig) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("region name cannot be empty")
		}
		if len(paths) == 0 {
			return fmt.Errorf("region %q needs at least one path", name)
		}
		cfg.regions = append(cfg.regions, RegionSpec{Name: name, Paths: append([]string(nil), paths...)})
		return nil
	}
}

// WithHTMLRegion adds an HTML region selected by element id.
func WithHTMLRegion(name, elementID string) ViewOption {
	return func(cfg *viewConfig) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("region name cannot be empty")
		}
		if strings.TrimSpace(elementID) == "" {
			return fmt.Errorf("region %q needs an element id", name)
		}
		cfg.regions = append(cfg.regions, RegionSpec{Name: name, ElementID: elementID})
		return nil
	}
}

// WithItems declares the filterable item list of a JSON view: the array at
// path, each element's id field and its category field. Every argument
// accepts "|" separated alternates.
//
// Example:
//
//	yardwatch.WithItems("data.rows|rows", "id|truck_id", "tipo|type")
func WithItems(path, idField, categoryField string) ViewOption {
	return func(cfg *viewConfig) error {
		if strings.TrimSpace(idField) == "" {
			return errors.New("items id field cannot be empty")
		}
		cfg.items = &ItemSpec{Path: path, IDField: idField, CategoryField: categoryField}
		return nil
	}
}

// WithSelection enables a capped selection of at most max item ids,
// submitted as {"ids":[...]} by POST to submitURL.
func WithSelection(max int, submitURL string) ViewOption {
	return func(cfg *viewConfig) error {
		if max < 1 {
			return errors.New("selection max must be at least 1")
		}
		if err := checkURL(submitURL); err != nil {
			return fmt.Errorf("selection submit URL: %w", err)
		}
		cfg.selection = &SelectionSpec{Max: max, SubmitURL: submitURL}
		return nil
	}
}

// validate checks rules that span several options.
func (cfg *viewConfig) validate() error {
	if cfg.method == "" && len(cfg.body) > 0 {
		cfg.method = http.MethodPost
	}
	if cfg.method == http.MethodGet && len(cfg.body) > 0 {
		return errors.New("a request body requires POST")
	}

	seen := make(map[string]bool, len(cfg.regions))
	for _, r := range cfg.regions {
		if seen[r.Name] {
			return fmt.Errorf("duplicate region name %q", r.Name)
		}
		seen[r.Name] = true

		switch {
		case cfg.kind == KindHTML && r.ElementID == "":
			return fmt.Errorf("region %q: html views select regions by element id", r.Name)
		case cfg.kind == KindJSON && r.ElementID != "":
			return fmt.Errorf("region %q: json views select regions by path", r.Name)
		}
	}

	if cfg.kind == KindHTML && cfg.items != nil {
		return errors.New("items are only supported on json views")
	}
	return nil
}
