// Package config provides YAML configuration parsing for yardwatch.
//
// This package enables running yardwatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Patio Norte
//	port: 8080
//	poll_interval: 15s
//	storage:
//	  path: yardwatch.db
//
//	views:
//	  - name: pending
//	    url: ${YARD_URL}/api/porteria/pendientes
//	    regions:
//	      - pending=data.pendientes|pendientes
//	      - name: totals
//	        paths: [data.totales, totales]
//	    items:
//	      path: data.pendientes|pendientes
//	      id: id|truck_id
//	      category: tipo|type
//	    selection:
//	      max: 3
//	      submit_url: ${YARD_URL}/api/porteria/autorizar
//
//	  - name: board
//	    url: ${YARD_URL}/patio/tablero
//	    kind: html
//	    regions:
//	      - rows=#tabla-camiones
//
//	grids:
//	  - name: gate
//	    url_template: "${YARD_URL}/api/porteria/{{.gate}}/pendientes"
//	    dimensions:
//	      gate: ["1", "2", "3"]
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval.
// This prevents accidental DoS of the yard application.
const minPollInterval = 1 * time.Second

const (
	defaultPort         = 8080
	defaultPollInterval = 15 * time.Second
)

// Config is the root configuration structure for yardwatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is reported by the API. Defaults to "yardwatch" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the interval of views without their own.
	// Defaults to 15s.
	PollInterval Duration `yaml:"poll_interval"`

	// ErrorThreshold is how many consecutive counted failures halt a view.
	// Zero means the SDK default of 3.
	ErrorThreshold int `yaml:"error_threshold"`

	// MaxConcurrency bounds requests in flight across all views.
	// Zero means the SDK default of 10.
	MaxConcurrency int `yaml:"max_concurrency"`

	// HTTP2 polls over HTTP/2 where the server supports it.
	HTTP2 bool `yaml:"http2"`

	// Storage configures where filter state is kept.
	Storage StorageConfig `yaml:"storage"`

	// Views defines individually configured views.
	Views []ViewConfig `yaml:"views"`

	// Grids defines view grids that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// StorageConfig configures filter persistence.
type StorageConfig struct {
	// Path is the SQLite database file. Empty keeps filters in memory.
	// Supports environment variable substitution.
	Path string `yaml:"path"`
}

// ViewConfig defines a single polled view.
type ViewConfig struct {
	// Name is the view name, used as an API path segment.
	Name string `yaml:"name"`

	// URL is the polled endpoint.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Method is the HTTP method (GET or POST). Defaults to GET, or POST
	// when a body is set.
	Method string `yaml:"method"`

	// Body is a JSON request body. Supports environment variable substitution.
	Body string `yaml:"body"`

	// Kind is the payload format: "json" (default) or "html".
	Kind string `yaml:"kind"`

	// Timeout is the request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Interval is the custom polling interval for this view.
	// Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Labels are metadata key-value pairs.
	Labels map[string]string `yaml:"labels"`

	// Regions are the replaceable parts of the view.
	Regions []RegionConfig `yaml:"regions"`

	// Items declares the filterable item list of a JSON view.
	Items *ItemsConfig `yaml:"items"`

	// Selection enables a capped selection.
	Selection *SelectionConfig `yaml:"selection"`
}

// GridConfig defines a view grid that expands via cartesian product.
//
// For example, with dimensions {yard: [norte, sur], gate: ["1", "2"]},
// the grid expands to 4 views.
type GridConfig struct {
	// Name is the base name for generated views.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating view URLs.
	// Dimension keys are available as template variables: {{.gate}}
	URLTemplate string `yaml:"url_template"`

	// BodyTemplate is an optional Go template for a JSON request body.
	BodyTemplate string `yaml:"body_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	Method    string            `yaml:"method"`
	Kind      string            `yaml:"kind"`
	Timeout   Duration          `yaml:"timeout"`
	Interval  Duration          `yaml:"interval"`
	Headers   map[string]string `yaml:"headers"`
	Labels    map[string]string `yaml:"labels"`
	Regions   []RegionConfig    `yaml:"regions"`
	Items     *ItemsConfig      `yaml:"items"`
	Selection *SelectionConfig  `yaml:"selection"`
}

// RegionConfig selects one region of a view.
//
// It supports two formats in YAML:
//
// Shorthand string, with "|" separated path alternates or a "#" element id:
//
//	regions:
//	  - pending=data.pendientes|pendientes
//	  - rows=#tabla-camiones
//
// Structured object:
//
//	regions:
//	  - name: pending
//	    paths: [data.pendientes, pendientes]
//	  - name: rows
//	    element_id: tabla-camiones
type RegionConfig struct {
	Name      string
	Paths     []string
	ElementID string
}

// ItemsConfig declares the filterable item list of a JSON view.
// Every field accepts "|" separated alternates.
type ItemsConfig struct {
	Path     string `yaml:"path"`
	ID       string `yaml:"id"`
	Category string `yaml:"category"`
}

// SelectionConfig enables a capped selection submitted to SubmitURL.
type SelectionConfig struct {
	Max       int    `yaml:"max"`
	SubmitURL string `yaml:"submit_url"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for RegionConfig.
func (r *RegionConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return r.parseShorthand(s)

	case yaml.MappingNode:
		// temporary struct to avoid infinite recursion
		var raw struct {
			Name      string   `yaml:"name"`
			Paths     []string `yaml:"paths"`
			ElementID string   `yaml:"element_id"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		r.Name = raw.Name
		r.Paths = raw.Paths
		r.ElementID = raw.ElementID
		return nil
	}

	return fmt.Errorf("region must be a string or object, got %v", node.Kind)
}

// parseShorthand parses "name=path1|path2" or "name=#element-id".
func (r *RegionConfig) parseShorthand(s string) error {
	name, sel, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok {
		return fmt.Errorf("region %q: expected 'name=path' or 'name=#element-id'", s)
	}
	r.Name = strings.TrimSpace(name)
	sel = strings.TrimSpace(sel)

	if id, isID := strings.CutPrefix(sel, "#"); isID {
		r.ElementID = id
		return nil
	}
	for _, p := range strings.Split(sel, "|") {
		r.Paths = append(r.Paths, strings.TrimSpace(p))
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return submatches[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, templates, bodies, header
// values and the storage path. Defaults are applied for Port (8080) and
// PollInterval (15s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.ErrorThreshold < 0 {
		return fmt.Errorf("error_threshold cannot be negative, got %d", c.ErrorThreshold)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	path, err := expandEnvVars(c.Storage.Path)
	if err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}
	c.Storage.Path = path

	for i := range c.Views {
		v := &c.Views[i]
		if v.Name == "" {
			return fmt.Errorf("views[%d]: name is required", i)
		}
		where := fmt.Sprintf("views[%d] (%s)", i, v.Name)

		if v.URL == "" {
			return fmt.Errorf("%s: url is required", where)
		}
		expanded, err := expandEnvVars(v.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", where, err)
		}
		v.URL = expanded
		if err := validateURL(v.URL); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}

		if v.Body, err = expandEnvVars(v.Body); err != nil {
			return fmt.Errorf("%s: body: %w", where, err)
		}

		common := commonFields{
			method: v.Method, kind: v.Kind, timeout: v.Timeout, interval: v.Interval,
			headers: v.Headers, regions: v.Regions, items: v.Items, selection: v.Selection,
		}
		if err := common.expandAndValidate(where); err != nil {
			return err
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]
		if g.Name == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}
		where := fmt.Sprintf("grids[%d] (%s)", i, g.Name)

		if g.URLTemplate == "" {
			return fmt.Errorf("%s: url_template is required", where)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("%s: url_template: %w", where, err)
		}
		g.URLTemplate = expanded

		// fail fast before the SDK tries to use an invalid template
		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("%s: invalid url_template: %w", where, err)
		}
		if g.BodyTemplate, err = expandEnvVars(g.BodyTemplate); err != nil {
			return fmt.Errorf("%s: body_template: %w", where, err)
		}
		if _, err := template.New("").Parse(g.BodyTemplate); err != nil {
			return fmt.Errorf("%s: invalid body_template: %w", where, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("%s: at least one dimension is required", where)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("%s: dimension %q has no values", where, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("%s: dimension %q has duplicate value %q", where, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}

		common := commonFields{
			method: g.Method, kind: g.Kind, timeout: g.Timeout, interval: g.Interval,
			headers: g.Headers, regions: g.Regions, items: g.Items, selection: g.Selection,
		}
		if err := common.expandAndValidate(where); err != nil {
			return err
		}
	}

	if len(c.Views) == 0 && len(c.Grids) == 0 {
		return errors.New("at least one view or grid must be defined")
	}

	return nil
}

// commonFields are the settings shared by views and grids.
type commonFields struct {
	method    string
	kind      string
	timeout   Duration
	interval  Duration
	headers   map[string]string
	regions   []RegionConfig
	items     *ItemsConfig
	selection *SelectionConfig
}

// expandAndValidate expands header values and selection URLs in place and
// checks every field. where prefixes error messages.
func (f commonFields) expandAndValidate(where string) error {
	for k, v := range f.headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s: headers[%s]: %w", where, k, err)
		}
		f.headers[k] = expanded
	}

	if f.method != "" && f.method != "GET" && f.method != "POST" {
		return fmt.Errorf("%s: method must be GET or POST", where)
	}

	kind := f.kind
	if kind == "" {
		kind = "json"
	}
	if kind != "json" && kind != "html" {
		return fmt.Errorf("%s: kind must be json or html, got %q", where, f.kind)
	}

	if f.timeout != 0 && f.timeout.Duration() < time.Second {
		return fmt.Errorf("%s: timeout must be at least 1s if specified, got %s", where, f.timeout.Duration())
	}
	if f.interval != 0 {
		if f.interval.Duration() < time.Second {
			return fmt.Errorf("%s: interval must be at least 1s, got %s", where, f.interval.Duration())
		}
		if f.interval.Duration() > time.Hour {
			return fmt.Errorf("%s: interval must not exceed 1h, got %s", where, f.interval.Duration())
		}
	}

	for j, r := range f.regions {
		if r.Name == "" {
			return fmt.Errorf("%s: regions[%d]: name is required", where, j)
		}
		switch {
		case kind == "html" && r.ElementID == "":
			return fmt.Errorf("%s: regions[%d] (%s): html views need an element id", where, j, r.Name)
		case kind == "json" && len(r.Paths) == 0:
			return fmt.Errorf("%s: regions[%d] (%s): json views need at least one path", where, j, r.Name)
		}
	}

	if f.items != nil {
		if kind != "json" {
			return fmt.Errorf("%s: items are only supported on json views", where)
		}
		if f.items.ID == "" {
			return fmt.Errorf("%s: items.id is required", where)
		}
	}

	if f.selection != nil {
		if f.selection.Max < 1 {
			return fmt.Errorf("%s: selection.max must be at least 1", where)
		}
		expanded, err := expandEnvVars(f.selection.SubmitURL)
		if err != nil {
			return fmt.Errorf("%s: selection.submit_url: %w", where, err)
		}
		f.selection.SubmitURL = expanded
		if err := validateURL(expanded); err != nil {
			return fmt.Errorf("%s: selection.submit_url: %w", where, err)
		}
	}

	return nil
}

func validateURL(raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	return nil
}
