package autosave

import (
	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/note"
)

// worthWriting decides whether local differs enough from what the store last
// acknowledged. A draft with blank title and content is never created, even
// if it carries tags. A persisted note equal to its remote snapshot, with tags
// compared as a set, is not rewritten.
func worthWriting(local, remote *note.Note) bool {
	if !local.Persisted() {
		return !(note.IsBlank(local.Title) && note.IsBlank(local.Content))
	}
	if remote == nil {
		return true
	}
	return local.Title != remote.Title ||
		local.Content != remote.Content ||
		!note.SameTags(local.Tags, remote.Tags)
}

func createFields(n *note.Note) docstore.Fields {
	return docstore.Fields{
		docstore.FieldTitle:     n.Title,
		docstore.FieldContent:   n.Content,
		docstore.FieldTags:      note.CleanTags(n.Tags),
		docstore.FieldPinned:    false,
		docstore.FieldCreatedAt: docstore.ServerTimestamp,
		docstore.FieldUpdatedAt: docstore.ServerTimestamp,
	}
}

// updateFields leaves pinned and createdAt untouched.
func updateFields(n *note.Note) docstore.Fields {
	return docstore.Fields{
		docstore.FieldTitle:     n.Title,
		docstore.FieldContent:   n.Content,
		docstore.FieldTags:      note.CleanTags(n.Tags),
		docstore.FieldUpdatedAt: docstore.ServerTimestamp,
	}
}
