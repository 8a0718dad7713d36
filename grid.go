package yardwatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
)

// NewViewGrid creates one view per combination of dimension values, such
// as the same pending-trucks page for every gate of every yard.
//
// The URL template uses Go's text/template syntax. Dimension values are
// URL-encoded before interpolation into the URL, and JSON-escaped before
// interpolation into an optional body template. Missing template keys
// cause an error.
//
// View names join the base name and the dimension values (ordered by
// sorted key) with "-", so "pending" over {"gate": ["1", "2"]} yields
// "pending-1" and "pending-2". Names must still be valid view names.
//
// Labels are added from dimension values. Static labels from
// [WithGridLabels] take precedence on collision.
//
// Example:
//
//	views, err := yardwatch.NewViewGrid("pending",
//	    yardwatch.WithURLTemplate("https://yard.example.com/porteria/pendientes?gate={{.gate}}"),
//	    yardwatch.WithDimensions(map[string][]string{"gate": {"1", "2"}}),
//	    yardwatch.WithGridViewOptions(yardwatch.WithRegion("rows", "data.rows", "rows")),
//	)
func NewViewGrid(baseName string, opts ...GridOption) ([]View, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{
		staticLabels: make(map[string]string),
		headers:      make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.urlTemplate == "" {
		return nil, errors.New("URL template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	urlTmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}
	var bodyTmpl *template.Template
	if cfg.bodyTemplate != "" {
		bodyTmpl, err = template.New("body").Option("missingkey=error").Parse(cfg.bodyTemplate)
		if err != nil {
			return nil, fmt.Errorf("invalid body template: %w", err)
		}
	}

	combinations := cartesianProduct(cfg.dimensions)
	if len(combinations) == 0 {
		return nil, nil
	}

	views := make([]View, 0, len(combinations))
	for _, combo := range combinations {
		urlStr, err := executeTemplate(urlTmpl, encodeMap(combo, url.QueryEscape))
		if err != nil {
			return nil, fmt.Errorf("template execution failed: %w", err)
		}

		name := formatViewName(baseName, combo)
		labels := mergeMaps(combo, cfg.staticLabels)

		viewOpts := []ViewOption{WithLabels(flattenMap(labels)...)}
		if len(cfg.headers) > 0 {
			viewOpts = append(viewOpts, WithHeaders(flattenMap(cfg.headers)...))
		}
		if cfg.timeout > 0 {
			viewOpts = append(viewOpts, WithTimeout(cfg.timeout))
		}
		if cfg.method != "" {
			viewOpts = append(viewOpts, WithMethod(cfg.method))
		}
		if cfg.interval > 0 {
			viewOpts = append(viewOpts, WithInterval(cfg.interval))
		}
		if cfg.kind != "" {
			viewOpts = append(viewOpts, WithKind(cfg.kind))
		}
		if bodyTmpl != nil {
			body, err := executeTemplate(bodyTmpl, encodeMap(combo, jsonEscape))
			if err != nil {
				return nil, fmt.Errorf("body template execution failed: %w", err)
			}
			viewOpts = append(viewOpts, WithBody([]byte(body)))
		}
		viewOpts = append(viewOpts, cfg.viewOptions...)

		v, err := NewView(name, urlStr, viewOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create view '%s': %w", name, err)
		}
		views = append(views, v)
	}

	return views, nil
}

// cartesianProduct generates all combinations of dimension values.
// Keys are sorted alphabetically for deterministic output.
// Values maintain their original slice order.
//
// Example:
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := sortedKeys(dims)
	total := 1
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
		total *= len(dims[k])
	}

	out := make([]map[string]string, 0, total)
	indices := make([]int, len(keys))
	for {
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		out = append(out, combo)

		// odometer: advance the rightmost index, carry leftwards
		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return out
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encodeMap returns a copy of m with every value passed through enc.
func encodeMap(m map[string]string, enc func(string) string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = enc(v)
	}
	return out
}

// jsonEscape escapes s for use inside a JSON string literal.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

func executeTemplate(tmpl *template.Template, data map[string]string) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatViewName joins the base name and the values of combo, ordered by
// sorted key, into a single path-safe name.
func formatViewName(baseName string, combo map[string]string) string {
	parts := []string{slug(baseName)}
	for _, k := range sortedKeys(combo) {
		parts = append(parts, slug(combo[k]))
	}
	return strings.Join(parts, "-")
}

// slug lowercases s and replaces runs of characters outside [a-z0-9._]
// with a single "-".
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// mergeMaps merges multiple maps, with later maps taking precedence.
func mergeMaps(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// flattenMap converts a map to sorted key-value pairs for variadic options.
func flattenMap(m map[string]string) []string {
	out := make([]string, 0, len(m)*2)
	for _, k := range sortedKeys(m) {
		out = append(out, k, m[k])
	}
	return out
}
