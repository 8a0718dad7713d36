package yardwatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/jpalmerr/yardwatch/internal/digest"
	"github.com/jpalmerr/yardwatch/internal/filter"
	"github.com/jpalmerr/yardwatch/internal/store"
)

// wholeRegion names the single region of a view declared without regions.
const wholeRegion = "body"

// extraction is what one poll of a view yields: its regions, its items and
// the fingerprint the cycle hashes to detect change.
type extraction struct {
	regions     map[string]store.Region
	items       []filter.Item
	fingerprint string
}

// extractJSON cuts a decoded JSON payload into regions and items.
func extractJSON(raw []byte, specs []RegionSpec, items *ItemSpec) (extraction, error) {
	doc, err := digest.DecodeJSON(raw)
	if err != nil {
		return extraction{}, err
	}

	if len(specs) == 0 {
		specs = []RegionSpec{{Name: wholeRegion, Paths: []string{""}}}
	}

	var fp strings.Builder
	out := extraction{regions: make(map[string]store.Region, len(specs))}

	for _, spec := range specs {
		value, _ := lookupFirst(doc, spec.Paths)
		canon := digest.Canonical(value)
		out.regions[spec.Name] = store.Region{
			Name:    spec.Name,
			Hash:    digest.Hash(canon),
			Content: json.RawMessage(canon),
		}
		fmt.Fprintf(&fp, "%s=%s\n", spec.Name, canon)
	}

	if items != nil {
		out.items = extractItems(doc, *items)
		fmt.Fprintf(&fp, "items=%s\n", digest.Canonical(out.items))
	}

	out.fingerprint = fp.String()
	return out, nil
}

// extractHTML cuts an HTML partial into regions selected by element id.
// A region whose element is absent has empty content.
func extractHTML(body []byte, specs []RegionSpec) (extraction, error) {
	out := extraction{regions: make(map[string]store.Region, max(len(specs), 1))}
	var fp strings.Builder

	if len(specs) == 0 {
		text, err := digest.VisibleText(body)
		if err != nil {
			return extraction{}, err
		}
		out.regions[wholeRegion] = htmlRegion(wholeRegion, string(body), text)
		out.fingerprint = wholeRegion + "=" + text + "\n"
		return out, nil
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return extraction{}, fmt.Errorf("parse html: %w", err)
	}

	for _, spec := range specs {
		markup := ""
		if n := findByID(root, spec.ElementID); n != nil {
			var buf bytes.Buffer
			if err := html.Render(&buf, n); err != nil {
				return extraction{}, fmt.Errorf("render region %q: %w", spec.Name, err)
			}
			markup = buf.String()
		}

		text, err := digest.VisibleText([]byte(markup))
		if err != nil {
			return extraction{}, err
		}
		out.regions[spec.Name] = htmlRegion(spec.Name, markup, text)
		fmt.Fprintf(&fp, "%s=%s\n", spec.Name, text)
	}

	out.fingerprint = fp.String()
	return out, nil
}

func htmlRegion(name, markup, text string) store.Region {
	content, _ := json.Marshal(markup)
	return store.Region{Name: name, Hash: digest.Hash(text), Content: content}
}

// findByID returns the first element in document order with the given id.
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// extractItems builds filterable items from the array at spec.Path.
// Elements that are not objects or lack an id are skipped.
func extractItems(doc any, spec ItemSpec) []filter.Item {
	list, _ := lookupFirst(doc, splitAlternates(spec.Path))
	elems, ok := list.([]any)
	if !ok {
		return []filter.Item{}
	}

	idFields := splitAlternates(spec.IDField)
	categoryFields := splitAlternates(spec.CategoryField)

	items := make([]filter.Item, 0, len(elems))
	for _, elem := range elems {
		obj, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		idVal, found := lookupFirst(obj, idFields)
		id := scalarString(idVal)
		if !found || id == "" {
			continue
		}

		item := filter.Item{ID: id, Text: itemText(obj)}
		if spec.CategoryField != "" {
			if cat, ok := lookupFirst(obj, categoryFields); ok {
				item.Category = scalarString(cat)
			}
		}
		items = append(items, item)
	}
	return items
}

// itemText joins every scalar value of obj in sorted key order, descending
// into nested objects and arrays.
func itemText(v any) string {
	var parts []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				walk(t[k])
			}
		case []any:
			for _, e := range t {
				walk(e)
			}
		default:
			if s := scalarString(t); s != "" {
				parts = append(parts, s)
			}
		}
	}
	walk(v)
	return strings.Join(parts, " ")
}

// scalarString renders a JSON scalar as plain text. Objects, arrays and
// null yield "".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// splitAlternates splits a "a|b|c" field list, trimming blanks.
func splitAlternates(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "|") {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// lookupFirst returns the value at the first path present in doc.
func lookupFirst(doc any, paths []string) (any, bool) {
	for _, p := range paths {
		if v, ok := lookupPath(doc, p); ok {
			return v, true
		}
	}
	return nil, false
}

// lookupPath walks doc by dot notation. Numeric segments index arrays.
// "" and "." select doc itself. A present null counts as found.
func lookupPath(doc any, path string) (any, bool) {
	path = strings.Trim(path, ".")
	if path == "" {
		return doc, true
	}

	current := doc
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}
