package note

import (
	"sort"
	"strings"
)

// Filter selects notes for the dashboard list.
type Filter struct {
	// Query matches case-insensitively against title and content. Blank matches all.
	Query string
	// Tag requires exact membership. Empty matches all.
	Tag string
}

// Active reports whether the filter narrows the list at all.
func (f Filter) Active() bool {
	return strings.TrimSpace(f.Query) != "" || f.Tag != ""
}

// Match reports whether n passes the filter.
func (f Filter) Match(n *Note) bool {
	if f.Tag != "" && !HasTag(n.Tags, f.Tag) {
		return false
	}
	q := strings.TrimSpace(f.Query)
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(n.Content), q)
}

// Apply returns the notes that pass the filter, preserving order.
func (f Filter) Apply(notes []*Note) []*Note {
	out := make([]*Note, 0, len(notes))
	for _, n := range notes {
		if f.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

// Sort orders notes pinned first, then most recently updated. Ties break on ID
// so the order is stable across calls.
func Sort(notes []*Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	})
}

// AllTags returns every distinct tag across notes, sorted.
func AllTags(notes []*Note) []string {
	seen := make(map[string]bool)
	for _, n := range notes {
		for _, t := range n.Tags {
			seen[t] = true
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
