package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/errors"
)

const testCollection = "users/u1/notes"

// newTestStore opens a fresh database with a controllable clock.
func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(database)
	s.now = func() time.Time { return now }
	return s, &now
}

func createFields(title, content string, tags ...string) docstore.Fields {
	return docstore.Fields{
		docstore.FieldTitle:     title,
		docstore.FieldContent:   content,
		docstore.FieldTags:      tags,
		docstore.FieldPinned:    false,
		docstore.FieldCreatedAt: docstore.ServerTimestamp,
		docstore.FieldUpdatedAt: docstore.ServerTimestamp,
	}
}

func TestStore_CreateAndFetch(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testCollection, createFields("Hello", "<p>World</p>", "a", "b"))
	require.NoError(t, err)
	require.Len(t, id, 26, "ULID")

	n, err := s.FetchByID(ctx, testCollection, id)
	require.NoError(t, err)
	require.Equal(t, id, n.ID)
	require.Equal(t, "Hello", n.Title)
	require.Equal(t, "<p>World</p>", n.Content)
	require.Equal(t, []string{"a", "b"}, n.Tags)
	require.False(t, n.Pinned)
	require.True(t, n.CreatedAt.Equal(*now))
	require.True(t, n.UpdatedAt.Equal(*now))
}

func TestStore_CreateEmptyTags(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testCollection, createFields("t", ""))
	require.NoError(t, err)

	n, err := s.FetchByID(ctx, testCollection, id)
	require.NoError(t, err)
	require.Equal(t, []string{}, n.Tags)
}

func TestStore_CreateRejectsBadFields(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Create(context.Background(), testCollection, docstore.Fields{"color": "red"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.Create(context.Background(), "", createFields("t", ""))
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestStore_FetchNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.FetchByID(context.Background(), testCollection, "missing")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStore_CollectionsAreIsolated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testCollection, createFields("mine", ""))
	require.NoError(t, err)

	_, err = s.FetchByID(ctx, "users/u2/notes", id)
	require.True(t, errors.Is(err, errors.ErrNotFound))

	err = s.MergeUpdate(ctx, "users/u2/notes", id, docstore.Fields{docstore.FieldTitle: "stolen"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	others, err := s.List(ctx, "users/u2/notes")
	require.NoError(t, err)
	require.Empty(t, others)
}

func TestStore_MergeUpdateTouchesOnlyGivenFields(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testCollection, createFields("title", "body", "x"))
	require.NoError(t, err)
	require.NoError(t, s.MergeUpdate(ctx, testCollection, id, docstore.Fields{docstore.FieldPinned: true}))

	created := *now
	*now = now.Add(time.Minute)

	err = s.MergeUpdate(ctx, testCollection, id, docstore.Fields{
		docstore.FieldTitle:     "new title",
		docstore.FieldTags:      []string{"y", "x"},
		docstore.FieldUpdatedAt: docstore.ServerTimestamp,
	})
	require.NoError(t, err)

	n, err := s.FetchByID(ctx, testCollection, id)
	require.NoError(t, err)
	require.Equal(t, "new title", n.Title)
	require.Equal(t, "body", n.Content, "content untouched")
	require.Equal(t, []string{"y", "x"}, n.Tags)
	require.True(t, n.Pinned, "pinned untouched")
	require.True(t, n.CreatedAt.Equal(created), "createdAt untouched")
	require.True(t, n.UpdatedAt.Equal(*now))
}

func TestStore_UpdatedAtNeverMovesBackwards(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testCollection, createFields("t", ""))
	require.NoError(t, err)
	stamped := *now

	*now = now.Add(-time.Hour)
	require.NoError(t, s.MergeUpdate(ctx, testCollection, id, docstore.Fields{
		docstore.FieldContent:   "later edit, earlier clock",
		docstore.FieldUpdatedAt: docstore.ServerTimestamp,
	}))

	n, err := s.FetchByID(ctx, testCollection, id)
	require.NoError(t, err)
	require.True(t, n.UpdatedAt.Equal(stamped))
}

func TestStore_MergeUpdateNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.MergeUpdate(context.Background(), testCollection, "nope", docstore.Fields{docstore.FieldTitle: "x"})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStore_MergeUpdateClearsTags(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testCollection, createFields("t", "", "a"))
	require.NoError(t, err)
	require.NoError(t, s.MergeUpdate(ctx, testCollection, id, docstore.Fields{docstore.FieldTags: []string{}}))

	n, err := s.FetchByID(ctx, testCollection, id)
	require.NoError(t, err)
	require.Equal(t, []string{}, n.Tags)
}

func TestStore_Delete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testCollection, createFields("t", ""))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, testCollection, id))

	_, err = s.FetchByID(ctx, testCollection, id)
	require.True(t, errors.Is(err, errors.ErrNotFound))

	err = s.Delete(ctx, testCollection, id)
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStore_ListOrderedByUpdatedAt(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, testCollection, createFields("first", ""))
	require.NoError(t, err)
	*now = now.Add(time.Second)
	second, err := s.Create(ctx, testCollection, createFields("second", ""))
	require.NoError(t, err)
	*now = now.Add(time.Second)

	// Touch the first note so it becomes the most recent.
	require.NoError(t, s.MergeUpdate(ctx, testCollection, first, docstore.Fields{
		docstore.FieldContent:   "edited",
		docstore.FieldUpdatedAt: docstore.ServerTimestamp,
	}))

	notes, err := s.List(ctx, testCollection)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	require.Equal(t, first, notes[0].ID)
	require.Equal(t, second, notes[1].ID)
}
