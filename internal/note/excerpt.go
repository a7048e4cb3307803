package note

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// PlainText strips markup from serialized content and collapses whitespace.
func PlainText(content string) string {
	s := tagPattern.ReplaceAllString(content, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// Excerpt returns at most max runes of the note's plain text, ending in an
// ellipsis when truncated.
func Excerpt(content string, max int) string {
	s := PlainText(content)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max])) + "…"
}

// DisplayTitle is the title shown in lists; untitled notes get a placeholder.
func DisplayTitle(n *Note) string {
	if IsBlank(n.Title) {
		return "Untitled"
	}
	return strings.TrimSpace(n.Title)
}
