// Package docstore defines the document store the editor writes through.
//
// Writes carry a Fields map rather than a whole note so that updates can be
// partial: a merge update touches only the keys it names and leaves every
// other stored field alone. Timestamps are never sent as values; a write asks
// the store to stamp them by passing ServerTimestamp.
package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/note"
)

// Field names accepted in Fields.
const (
	FieldTitle     = "title"
	FieldContent   = "content"
	FieldTags      = "tags"
	FieldPinned    = "pinned"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

type serverTimestamp struct{}

func (serverTimestamp) String() string { return "ServerTimestamp" }

// ServerTimestamp asks the store to set a timestamp field to its own clock at
// write time.
var ServerTimestamp = serverTimestamp{}

// Fields is a partial document keyed by field name.
type Fields map[string]any

// Store is a per-collection document store.
//
// Implementations assign ids on Create, resolve ServerTimestamp, keep
// UpdatedAt non-decreasing per document, and apply MergeUpdate as a partial
// write. Concurrent writers are not reconciled: the last write wins.
type Store interface {
	// FetchByID returns NOT_FOUND if the document does not exist.
	FetchByID(ctx context.Context, collection, id string) (*note.Note, error)
	// Create inserts a new document and returns its assigned id.
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	// MergeUpdate writes only the given fields. Returns NOT_FOUND if absent.
	MergeUpdate(ctx context.Context, collection, id string, fields Fields) error
	// Delete removes a document. Returns NOT_FOUND if absent.
	Delete(ctx context.Context, collection, id string) error
	// List returns every document in the collection, most recently updated first.
	List(ctx context.Context, collection string) ([]*note.Note, error)
}

// UserCollection returns the collection path holding uid's notes.
func UserCollection(uid string) string {
	return "users/" + uid + "/notes"
}

// Validate checks that every key is known and carries the right type.
// Timestamp fields only accept ServerTimestamp.
func (f Fields) Validate() error {
	if len(f) == 0 {
		return errors.NewInvalidRequest("no fields to write")
	}
	for _, key := range f.Keys() {
		v := f[key]
		switch key {
		case FieldTitle, FieldContent:
			if _, ok := v.(string); !ok {
				return errors.NewInvalidRequest(fmt.Sprintf("field %q must be a string", key))
			}
		case FieldTags:
			if _, ok := v.([]string); !ok {
				return errors.NewInvalidRequest(fmt.Sprintf("field %q must be a list of strings", key))
			}
		case FieldPinned:
			if _, ok := v.(bool); !ok {
				return errors.NewInvalidRequest(fmt.Sprintf("field %q must be a boolean", key))
			}
		case FieldCreatedAt, FieldUpdatedAt:
			if v != ServerTimestamp {
				return errors.NewInvalidRequest(fmt.Sprintf("field %q only accepts ServerTimestamp", key))
			}
		default:
			return errors.NewInvalidRequest(fmt.Sprintf("unknown field %q", key))
		}
	}
	return nil
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply writes validated fields onto n, resolving ServerTimestamp to now.
// UpdatedAt never moves backwards.
func Apply(n *note.Note, f Fields, now time.Time) {
	for key, v := range f {
		switch key {
		case FieldTitle:
			n.Title = v.(string)
		case FieldContent:
			n.Content = v.(string)
		case FieldTags:
			n.Tags = note.CleanTags(v.([]string))
		case FieldPinned:
			n.Pinned = v.(bool)
		case FieldCreatedAt:
			n.CreatedAt = now
		case FieldUpdatedAt:
			if now.After(n.UpdatedAt) {
				n.UpdatedAt = now
			}
		}
	}
}

// ValidateCollection rejects empty or malformed collection paths.
func ValidateCollection(collection string) error {
	if strings.TrimSpace(collection) == "" {
		return errors.NewInvalidRequest("collection is required")
	}
	if strings.HasPrefix(collection, "/") || strings.HasSuffix(collection, "/") || strings.Contains(collection, "//") {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid collection path %q", collection))
	}
	return nil
}
