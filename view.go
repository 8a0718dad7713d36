package yardwatch

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

const defaultViewTimeout = 10 * time.Second

// Kind is the payload format a view polls.
type Kind string

const (
	// KindJSON views decode JSON payloads and reject success=false replies.
	KindJSON Kind = "json"

	// KindHTML views poll server-rendered HTML partials.
	KindHTML Kind = "html"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// viewNamePattern keeps view names usable as a single URL path segment.
var viewNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// RegionSpec describes one replaceable region of a view.
//
// JSON regions select a value by dot path (numeric segments index arrays).
// Paths lists alternates; the first one present in the payload wins, which
// lets one view accept both the legacy and the new field layout of an
// endpoint. HTML regions select the element whose id is ElementID.
type RegionSpec struct {
	Name      string
	Paths     []string
	ElementID string
}

// ItemSpec describes the filterable item list of a JSON view.
//
// Each field accepts "|" separated alternates, tried in order.
type ItemSpec struct {
	Path          string
	IDField       string
	CategoryField string
}

// SelectionSpec configures a capped selection on a view.
type SelectionSpec struct {
	Max       int
	SubmitURL string
}

// View is one polled page fragment of the yard application.
//
// View is immutable after creation via [NewView]. All fields are private
// with getter methods that return copies of mutable data.
type View struct {
	name      string
	url       string
	method    string
	headers   map[string]string
	body      []byte
	timeout   time.Duration
	interval  time.Duration
	kind      Kind
	regions   []RegionSpec
	items     *ItemSpec
	selection *SelectionSpec
	labels    map[string]string
}

// Name returns the view name. Names are used as API path segments.
func (v View) Name() string {
	return v.name
}

// URL returns the polled URL.
func (v View) URL() string {
	return v.url
}

// Method returns the HTTP method, GET unless set via [WithMethod].
func (v View) Method() string {
	return v.method
}

// Headers returns a copy of the view's custom HTTP headers.
func (v View) Headers() map[string]string {
	return copyMap(v.headers)
}

// Body returns a copy of the request body sent with POST views.
func (v View) Body() []byte {
	return copyBytes(v.body)
}

// Timeout returns the request timeout. Defaults to 10 seconds.
func (v View) Timeout() time.Duration {
	return v.timeout
}

// Interval returns the view's polling interval, or 0 when the global
// interval applies.
func (v View) Interval() time.Duration {
	return v.interval
}

// Kind returns the payload format of the view.
func (v View) Kind() Kind {
	return v.kind
}

// Regions returns a copy of the region specs.
func (v View) Regions() []RegionSpec {
	out := make([]RegionSpec, len(v.regions))
	for i, r := range v.regions {
		r.Paths = append([]string(nil), r.Paths...)
		out[i] = r
	}
	return out
}

// Items returns the item settings and whether one is configured.
func (v View) Items() (ItemSpec, bool) {
	if v.items == nil {
		return ItemSpec{}, false
	}
	return *v.items, true
}

// Selection returns the selection settings and whether one is configured.
func (v View) Selection() (SelectionSpec, bool) {
	if v.selection == nil {
		return SelectionSpec{}, false
	}
	return *v.selection, true
}

// Labels returns a copy of the view's labels.
func (v View) Labels() map[string]string {
	return copyMap(v.labels)
}

// NewView creates a [View] with the given name, URL, and options.
//
// The name must start with a letter or digit and contain only letters,
// digits, '.', '_' and '-'. The rawURL must be absolute.
//
// Example:
//
//	v, err := yardwatch.NewView("autorizacion", "https://yard.example.com/api/autorizacion",
//	    yardwatch.WithInterval(10*time.Second),
//	    yardwatch.WithRegion("pending", "data.pendientes", "pendientes"),
//	    yardwatch.WithSelection(3, "https://yard.example.com/api/autorizar"),
//	)
func NewView(name, rawURL string, opts ...ViewOption) (View, error) {
	if name == "" {
		return View{}, errors.New("view name cannot be empty")
	}
	if !viewNamePattern.MatchString(name) {
		return View{}, fmt.Errorf("view name %q may only contain letters, digits, '.', '_' and '-'", name)
	}

	if err := checkURL(rawURL); err != nil {
		return View{}, err
	}

	cfg := &viewConfig{
		labels:  make(map[string]string),
		headers: make(map[string]string),
		timeout: defaultViewTimeout,
		kind:    KindJSON,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return View{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return View{}, fmt.Errorf("view %q: %w", name, err)
	}

	method := cfg.method
	if method == "" {
		method = "GET"
	}

	return View{
		name:      name,
		url:       rawURL,
		method:    method,
		headers:   cfg.headers,
		body:      cfg.body,
		timeout:   cfg.timeout,
		interval:  cfg.interval,
		kind:      cfg.kind,
		regions:   cfg.regions,
		items:     cfg.items,
		selection: cfg.selection,
		labels:    cfg.labels,
	}, nil
}

func checkURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return errors.New("URL must be absolute (http:// or https://)")
	}
	return nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// copyBytes returns a copy of the byte slice, or nil if input is nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
