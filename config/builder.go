package config

import (
	"sort"

	"github.com/jpalmerr/yardwatch"
)

// BuildViews converts parsed configuration into SDK views.
//
// It processes both direct views and grids, returning a combined slice.
// Grid dimensions are expanded via [yardwatch.NewViewGrid].
func BuildViews(cfg *Config) ([]yardwatch.View, error) {
	var views []yardwatch.View

	for _, vc := range cfg.Views {
		v, err := buildView(vc)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}

	for _, gc := range cfg.Grids {
		gridViews, err := buildGridViews(gc)
		if err != nil {
			return nil, err
		}
		views = append(views, gridViews...)
	}

	return views, nil
}

// Options returns the SDK options for the top-level settings of cfg.
// Views and the filter repository are left to the caller.
func Options(cfg *Config) []yardwatch.Option {
	opts := []yardwatch.Option{
		yardwatch.WithPort(cfg.Port),
		yardwatch.WithPollingInterval(cfg.PollInterval.Duration()),
		yardwatch.WithTitle(cfg.Title),
	}
	if cfg.ErrorThreshold > 0 {
		opts = append(opts, yardwatch.WithErrorThreshold(cfg.ErrorThreshold))
	}
	if cfg.MaxConcurrency > 0 {
		opts = append(opts, yardwatch.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if cfg.HTTP2 {
		opts = append(opts, yardwatch.WithHTTP2())
	}
	return opts
}

func buildView(vc ViewConfig) (yardwatch.View, error) {
	var opts []yardwatch.ViewOption

	if vc.Method != "" {
		opts = append(opts, yardwatch.WithMethod(vc.Method))
	}
	if vc.Body != "" {
		opts = append(opts, yardwatch.WithBody([]byte(vc.Body)))
	}
	if vc.Kind != "" {
		opts = append(opts, yardwatch.WithKind(yardwatch.Kind(vc.Kind)))
	}
	if vc.Timeout != 0 {
		opts = append(opts, yardwatch.WithTimeout(vc.Timeout.Duration()))
	}
	if vc.Interval != 0 {
		opts = append(opts, yardwatch.WithInterval(vc.Interval.Duration()))
	}
	if len(vc.Headers) > 0 {
		opts = append(opts, yardwatch.WithHeaders(mapToKeyValuePairs(vc.Headers)...))
	}
	if len(vc.Labels) > 0 {
		opts = append(opts, yardwatch.WithLabels(mapToKeyValuePairs(vc.Labels)...))
	}
	opts = append(opts, contentOptions(vc.Regions, vc.Items, vc.Selection)...)

	return yardwatch.NewView(vc.Name, vc.URL, opts...)
}

func buildGridViews(gc GridConfig) ([]yardwatch.View, error) {
	opts := []yardwatch.GridOption{
		yardwatch.WithURLTemplate(gc.URLTemplate),
		yardwatch.WithDimensions(gc.Dimensions),
	}
	if gc.BodyTemplate != "" {
		opts = append(opts, yardwatch.WithBodyTemplate(gc.BodyTemplate))
	}
	if gc.Method != "" {
		opts = append(opts, yardwatch.WithGridMethod(gc.Method))
	}
	if gc.Kind != "" {
		opts = append(opts, yardwatch.WithGridKind(yardwatch.Kind(gc.Kind)))
	}
	if gc.Timeout != 0 {
		opts = append(opts, yardwatch.WithGridTimeout(gc.Timeout.Duration()))
	}
	if gc.Interval != 0 {
		opts = append(opts, yardwatch.WithGridInterval(gc.Interval.Duration()))
	}
	if len(gc.Headers) > 0 {
		opts = append(opts, yardwatch.WithGridHeaders(mapToKeyValuePairs(gc.Headers)...))
	}
	if len(gc.Labels) > 0 {
		opts = append(opts, yardwatch.WithGridLabels(mapToKeyValuePairs(gc.Labels)...))
	}
	if content := contentOptions(gc.Regions, gc.Items, gc.Selection); len(content) > 0 {
		opts = append(opts, yardwatch.WithGridViewOptions(content...))
	}

	return yardwatch.NewViewGrid(gc.Name, opts...)
}

// contentOptions converts region, item and selection settings.
func contentOptions(regions []RegionConfig, items *ItemsConfig, sel *SelectionConfig) []yardwatch.ViewOption {
	var opts []yardwatch.ViewOption
	for _, r := range regions {
		if r.ElementID != "" {
			opts = append(opts, yardwatch.WithHTMLRegion(r.Name, r.ElementID))
			continue
		}
		opts = append(opts, yardwatch.WithRegion(r.Name, r.Paths...))
	}
	if items != nil {
		opts = append(opts, yardwatch.WithItems(items.Path, items.ID, items.Category))
	}
	if sel != nil {
		opts = append(opts, yardwatch.WithSelection(sel.Max, sel.SubmitURL))
	}
	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
