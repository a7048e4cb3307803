// Package redisstore implements docstore.Store on Redis.
//
// Each document is a hash under DocKey and every collection keeps a set of
// its ids under IndexKey. Tags are stored as a JSON array and timestamps as
// unix milliseconds.
package redisstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/note"
)

// maxTxRetries bounds optimistic retries when a watched key changes.
const maxTxRetries = 5

// Store is a docstore.Store backed by a Redis client.
type Store struct {
	client redis.UniversalClient
	now    func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// New wraps a connected client.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client, now: time.Now}
}

// FetchByID returns the document or NOT_FOUND.
func (s *Store) FetchByID(ctx context.Context, collection, id string) (*note.Note, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}

	h, err := s.client.HGetAll(ctx, DocKey(collection, id)).Result()
	if err != nil {
		return nil, errors.NewUnavailable(err)
	}
	if len(h) == 0 {
		return nil, errors.NewNotFound(id)
	}
	return decodeNote(id, h)
}

// Create writes the hash and indexes the id in one transaction.
func (s *Store) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := fields.Validate(); err != nil {
		return "", err
	}

	now := s.now()
	uid, err := ulid.New(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	id := uid.String()

	n := &note.Note{ID: id}
	docstore.Apply(n, fields, now)

	values, err := encodeNote(n)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, DocKey(collection, id), values)
		pipe.SAdd(ctx, IndexKey(collection), id)
		return nil
	})
	if err != nil {
		return "", errors.NewUnavailable(err)
	}
	return id, nil
}

// MergeUpdate sets only the named hash fields. The document is watched so a
// concurrent delete turns into NOT_FOUND rather than resurrecting it.
func (s *Store) MergeUpdate(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	key := DocKey(collection, id)
	txf := func(tx *redis.Tx) error {
		prev, err := tx.HGet(ctx, key, hUpdatedAt).Result()
		if err == redis.Nil {
			return errors.NewNotFound(id)
		}
		if err != nil {
			return err
		}
		prevMs, _ := strconv.ParseInt(prev, 10, 64)

		values, err := encodeFields(fields, s.now().UnixMilli(), prevMs)
		if err != nil {
			return errors.NewInternal(err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if _, ok := err.(*errors.ScribeError); ok {
				return err
			}
			return errors.NewUnavailable(err)
		}
		return nil
	}
	return errors.NewConflict("document changed concurrently: " + id)
}

// Delete removes the hash and its index entry.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, DocKey(collection, id))
		pipe.SRem(ctx, IndexKey(collection), id)
		return nil
	})
	if err != nil {
		return errors.NewUnavailable(err)
	}
	if del.Val() == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// List loads every indexed document, most recently updated first. Index
// entries whose hash is gone are skipped.
func (s *Store) List(ctx context.Context, collection string) ([]*note.Note, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}

	ids, err := s.client.SMembers(ctx, IndexKey(collection)).Result()
	if err != nil {
		return nil, errors.NewUnavailable(err)
	}
	notes := make([]*note.Note, 0, len(ids))
	if len(ids) == 0 {
		return notes, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, DocKey(collection, id))
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewUnavailable(err)
	}

	for i, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		n, err := decodeNote(ids[i], h)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}

	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
	return notes, nil
}

func encodeNote(n *note.Note) (map[string]interface{}, error) {
	tags, err := json.Marshal(note.CleanTags(n.Tags))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		hTitle:     n.Title,
		hContent:   n.Content,
		hTags:      string(tags),
		hPinned:    boolString(n.Pinned),
		hCreatedAt: strconv.FormatInt(toMillis(n.CreatedAt), 10),
		hUpdatedAt: strconv.FormatInt(toMillis(n.UpdatedAt), 10),
	}, nil
}

// encodeFields converts a validated partial write into hash values.
func encodeFields(fields docstore.Fields, nowMs, prevUpdatedMs int64) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(fields))
	for key, v := range fields {
		switch key {
		case docstore.FieldTitle:
			values[hTitle] = v.(string)
		case docstore.FieldContent:
			values[hContent] = v.(string)
		case docstore.FieldTags:
			tags, err := json.Marshal(note.CleanTags(v.([]string)))
			if err != nil {
				return nil, err
			}
			values[hTags] = string(tags)
		case docstore.FieldPinned:
			values[hPinned] = boolString(v.(bool))
		case docstore.FieldCreatedAt:
			values[hCreatedAt] = strconv.FormatInt(nowMs, 10)
		case docstore.FieldUpdatedAt:
			if prevUpdatedMs > nowMs {
				nowMs = prevUpdatedMs
			}
			values[hUpdatedAt] = strconv.FormatInt(nowMs, 10)
		}
	}
	return values, nil
}

func decodeNote(id string, h map[string]string) (*note.Note, error) {
	n := &note.Note{
		ID:      id,
		Title:   h[hTitle],
		Content: h[hContent],
		Pinned:  h[hPinned] == "1",
		Tags:    []string{},
	}
	if raw := h[hTags]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &n.Tags); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	created, _ := strconv.ParseInt(h[hCreatedAt], 10, 64)
	updated, _ := strconv.ParseInt(h[hUpdatedAt], 10, 64)
	n.CreatedAt = fromMillis(created)
	n.UpdatedAt = fromMillis(updated)
	return n, nil
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
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
