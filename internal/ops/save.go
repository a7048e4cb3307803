package ops

import (
	"context"
	"sync"

	"github.com/hpungsan/scribe/internal/autosave"
	"github.com/hpungsan/scribe/internal/identity"
	"github.com/hpungsan/scribe/internal/note"
)

// SaveInput contains parameters for the Save operation.
// Nil fields are left as they are.
type SaveInput struct {
	ID      string // empty starts a new draft
	Title   *string
	Content *string
	Tags    *[]string

	AddTags    []string
	RemoveTags []string
}

// SaveOutput contains the result of the Save operation.
type SaveOutput struct {
	ID      string `json:"id,omitempty"`
	Written bool   `json:"written"`
	Created bool   `json:"created"`

	// Note is the local state after the save, written or not.
	Note *note.Note `json:"note"`
}

// Save applies edits through an autosave controller and flushes it
// immediately. A blank draft or an edit that leaves the note unchanged
// writes nothing.
func Save(ctx context.Context, deps Deps, input SaveInput) (*SaveOutput, error) {
	uid, _, err := deps.user(ctx)
	if err != nil {
		return nil, err
	}
	cfg := deps.config()

	var (
		mu      sync.Mutex
		written bool
		created bool
	)
	c, err := autosave.Open(ctx, autosave.Options{
		Store:        deps.Store,
		Identity:     identity.Static(uid),
		Clock:        deps.Clock,
		Logger:       deps.log(),
		Debounce:     cfg.Debounce(),
		SavedDisplay: cfg.SavedDisplay(),
		WriteTimeout: cfg.WriteTimeout(),
		Navigator: autosave.NavigatorFunc(func(string) {
			mu.Lock()
			created = true
			mu.Unlock()
		}),
		OnStatus: func(s autosave.Status) {
			if s == autosave.StatusSaving {
				mu.Lock()
				written = true
				mu.Unlock()
			}
		},
	}, input.ID)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if input.Title != nil {
		c.SetTitle(*input.Title)
	}
	if input.Content != nil {
		c.SetContent(*input.Content)
	}
	if input.Tags != nil {
		c.SetTags(*input.Tags)
	}
	for _, t := range input.AddTags {
		c.AddTag(t)
	}
	for _, t := range input.RemoveTags {
		c.RemoveTag(t)
	}

	if err := c.Flush(ctx); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return &SaveOutput{
		ID:      c.ID(),
		Written: written,
		Created: created,
		Note:    c.Snapshot(),
	}, nil
}
