// Package filter holds per-view filter state and its persistence.
//
// A [State] combines free-text search with a single category toggle.
// Applying a state to a list of items partitions them into visible and
// hidden IDs. Application is a pure function of the state and the items,
// so re-applying a restored state yields exactly the same partition.
package filter

import (
	"strings"
)

// allCategories are category values that disable category filtering.
var allCategories = map[string]struct{}{
	"":      {},
	"all":   {},
	"todos": {},
	"*":     {},
}

// Item is one filterable row of a view.
type Item struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

// State is the filter applied to a view.
type State struct {
	Search   string `json:"search"`
	Category string `json:"category"`
}

// Visibility is the result of applying a [State].
type Visibility struct {
	Visible []string `json:"visible"`
	Hidden  []string `json:"hidden"`
}

// Normalize trims surrounding whitespace from both fields.
func (s State) Normalize() State {
	return State{
		Search:   strings.TrimSpace(s.Search),
		Category: strings.TrimSpace(s.Category),
	}
}

// IsZero reports whether the state filters nothing out.
func (s State) IsZero() bool {
	n := s.Normalize()
	_, all := allCategories[strings.ToLower(n.Category)]
	return n.Search == "" && all
}

// Matches reports whether item is visible under s.
//
// Search is a case-insensitive substring match on the item text. Category
// is an exact string comparison unless it is one of the "all" values.
func (s State) Matches(item Item) bool {
	n := s.Normalize()

	if _, all := allCategories[strings.ToLower(n.Category)]; !all && item.Category != n.Category {
		return false
	}
	if n.Search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.Text), strings.ToLower(n.Search))
}

// Apply partitions items into visible and hidden IDs, preserving order.
func (s State) Apply(items []Item) Visibility {
	v := Visibility{
		Visible: make([]string, 0, len(items)),
		Hidden:  make([]string, 0),
	}
	for _, item := range items {
		if s.Matches(item) {
			v.Visible = append(v.Visible, item.ID)
		} else {
			v.Hidden = append(v.Hidden, item.ID)
		}
	}
	return v
}

// Select returns the visible items, preserving order.
func (s State) Select(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if s.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}
