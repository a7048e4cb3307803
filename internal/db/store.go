package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/note"
)

var noteColumns = []string{
	"id", "title", "content", "tags_json", "pinned", "created_at", "updated_at",
}

// Store is a docstore.Store backed by the notes table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// NewStore wraps an initialized database.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// FetchByID retrieves a note by id within a collection.
func (s *Store) FetchByID(ctx context.Context, collection, id string) (*note.Note, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}

	query, args, err := sq.Select(noteColumns...).
		From("notes").
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	n, err := scanNote(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return n, nil
}

// Create inserts a new note with a fresh ULID.
func (s *Store) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := fields.Validate(); err != nil {
		return "", err
	}

	now := s.now()
	id, err := generateULID(now)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	n := &note.Note{ID: id}
	docstore.Apply(n, fields, now)

	tagsJSON, err := encodeTags(n.Tags)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	query, args, err := sq.Insert("notes").
		Columns("id", "collection", "title", "content", "tags_json", "pinned", "created_at", "updated_at").
		Values(n.ID, collection, n.Title, n.Content, tagsJSON, n.Pinned, toMillis(n.CreatedAt), toMillis(n.UpdatedAt)).
		ToSql()
	if err != nil {
		return "", errors.NewInternal(err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", errors.NewInternal(err)
	}
	return id, nil
}

// MergeUpdate writes only the given fields. updated_at is clamped so it
// never moves backwards.
func (s *Store) MergeUpdate(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	nowMs := s.now().UnixMilli()
	set := make(map[string]interface{}, len(fields))
	for key, v := range fields {
		switch key {
		case docstore.FieldTitle:
			set["title"] = v.(string)
		case docstore.FieldContent:
			set["content"] = v.(string)
		case docstore.FieldTags:
			tagsJSON, err := encodeTags(note.CleanTags(v.([]string)))
			if err != nil {
				return errors.NewInternal(err)
			}
			set["tags_json"] = tagsJSON
		case docstore.FieldPinned:
			set["pinned"] = v.(bool)
		case docstore.FieldCreatedAt:
			set["created_at"] = nowMs
		case docstore.FieldUpdatedAt:
			set["updated_at"] = sq.Expr("MAX(updated_at, ?)", nowMs)
		}
	}

	query, args, err := sq.Update("notes").
		SetMap(set).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return errors.NewInternal(err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// Delete permanently removes a note.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}

	query, args, err := sq.Delete("notes").
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return errors.NewInternal(err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// List returns every note in the collection, most recently updated first.
func (s *Store) List(ctx context.Context, collection string) ([]*note.Note, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}

	query, args, err := sq.Select(noteColumns...).
		From("notes").
		Where(sq.Eq{"collection": collection}).
		OrderBy("updated_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	notes := make([]*note.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return notes, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanNote scans a single row into a Note.
func scanNote(row rowScanner) (*note.Note, error) {
	var (
		n         note.Note
		tagsJSON  sql.NullString
		createdAt int64
		updatedAt int64
	)

	if err := row.Scan(&n.ID, &n.Title, &n.Content, &tagsJSON, &n.Pinned, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	n.CreatedAt = fromMillis(createdAt)
	n.UpdatedAt = fromMillis(updatedAt)

	n.Tags = []string{}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &n.Tags); err != nil {
			return nil, err
		}
	}

	return &n, nil
}

// encodeTags stores tags as a JSON array; an empty set is NULL.
func encodeTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// generateULID generates a new ULID for the given time.
func generateULID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
