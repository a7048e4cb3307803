package ops

import (
	"context"
	"time"

	"github.com/hpungsan/scribe/internal/note"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID string
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	note.Note
}

// Fetch retrieves one of the user's notes by id.
func Fetch(ctx context.Context, deps Deps, input FetchInput) (*FetchOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	_, collection, err := deps.user(ctx)
	if err != nil {
		return nil, err
	}

	n, err := deps.Store.FetchByID(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return &FetchOutput{Note: *n}, nil
}

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
