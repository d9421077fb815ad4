package models

import "fmt"

// FilterMode selects which items a view shows.
type FilterMode int

const (
	FilterAll FilterMode = iota
	FilterActive
	FilterCompleted
)

// FilterModes lists every mode in display order.
var FilterModes = []FilterMode{FilterAll, FilterActive, FilterCompleted}

func (m FilterMode) String() string {
	switch m {
	case FilterActive:
		return "active"
	case FilterCompleted:
		return "completed"
	default:
		return "all"
	}
}

// Next returns the mode after m, wrapping around.
func (m FilterMode) Next() FilterMode {
	return FilterModes[(int(m)+1)%len(FilterModes)]
}

// ParseFilterMode parses "all", "active" or "completed".
func ParseFilterMode(s string) (FilterMode, error) {
	switch s {
	case "all", "":
		return FilterAll, nil
	case "active":
		return FilterActive, nil
	case "completed":
		return FilterCompleted, nil
	default:
		return FilterAll, fmt.Errorf("filter must be 'all', 'active', or 'completed', got %q", s)
	}
}

// Matches reports whether item belongs in a view filtered by m.
func (m FilterMode) Matches(item Item) bool {
	switch m {
	case FilterActive:
		return !item.Completed
	case FilterCompleted:
		return item.Completed
	default:
		return true
	}
}

// Filter returns the items matching mode, preserving order. The input is
// never modified.
func Filter(items []Item, mode FilterMode) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if mode.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}
