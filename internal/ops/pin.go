package ops

import (
	"context"

	"github.com/hpungsan/scribe/internal/docstore"
)

// PinInput contains parameters for the Pin operation.
type PinInput struct {
	ID     string
	Pinned bool
}

// PinOutput contains the result of the Pin operation.
type PinOutput struct {
	ID     string `json:"id"`
	Pinned bool   `json:"pinned"`
}

// Pin sets or clears the pinned flag. Nothing else on the note changes,
// including updatedAt.
func Pin(ctx context.Context, deps Deps, input PinInput) (*PinOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	_, collection, err := deps.user(ctx)
	if err != nil {
		return nil, err
	}

	fields := docstore.Fields{docstore.FieldPinned: input.Pinned}
	if err := deps.Store.MergeUpdate(ctx, collection, id, fields); err != nil {
		return nil, err
	}

	return &PinOutput{ID: id, Pinned: input.Pinned}, nil
}
