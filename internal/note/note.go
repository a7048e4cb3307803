package note

import (
	"strings"
	"time"
)

// Note is a single user note as held by the editor and the document store.
type Note struct {
	// ID is assigned by the store on first create; empty for an unsaved draft.
	ID string `json:"id,omitempty"`

	// Title is plain text.
	Title string `json:"title"`

	// Content is the serialized body produced by the editing surface.
	// Scribe never parses it.
	Content string `json:"content"`

	// Tags are unique, case-sensitive labels in insertion order.
	Tags []string `json:"tags"`

	// Pinned notes sort ahead of the rest.
	Pinned bool `json:"pinned"`

	// CreatedAt and UpdatedAt are set by the store, never by the client.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of n.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	c.Tags = append(make([]string, 0, len(n.Tags)), n.Tags...)
	return &c
}

// Persisted reports whether the note has been written to the store.
func (n *Note) Persisted() bool {
	return n.ID != ""
}

// IsBlank reports whether s has no non-whitespace characters.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
