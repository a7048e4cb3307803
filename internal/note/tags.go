package note

import "strings"

// NormalizeTag trims surrounding whitespace. Case is preserved: "Go" and "go"
// are different tags.
func NormalizeTag(tag string) string {
	return strings.TrimSpace(tag)
}

// CleanTags normalizes tags, drops empty labels and removes duplicates,
// keeping the first occurrence of each.
func CleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		result = append(result, t)
	}
	return result
}

// AddTag appends tag if it is non-empty and not already present.
// Returns the (possibly new) slice and whether anything changed.
func AddTag(tags []string, tag string) ([]string, bool) {
	tag = NormalizeTag(tag)
	if tag == "" || HasTag(tags, tag) {
		return tags, false
	}
	out := make([]string, len(tags), len(tags)+1)
	copy(out, tags)
	return append(out, tag), true
}

// RemoveTag removes tag if present.
func RemoveTag(tags []string, tag string) ([]string, bool) {
	tag = NormalizeTag(tag)
	out := make([]string, 0, len(tags))
	removed := false
	for _, t := range tags {
		if t == tag {
			removed = true
			continue
		}
		out = append(out, t)
	}
	if !removed {
		return tags, false
	}
	return out, true
}

// HasTag reports whether tags contains tag exactly.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SameTags reports whether a and b hold the same set of labels, ignoring order.
func SameTags(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, t := range a {
		as[t] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, t := range b {
		bs[t] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for t := range as {
		if _, ok := bs[t]; !ok {
			return false
		}
	}
	return true
}
