package ops

import (
	"context"

	"github.com/hpungsan/scribe/internal/logger"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Delete permanently removes a note.
func Delete(ctx context.Context, deps Deps, input DeleteInput) (*DeleteOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	_, collection, err := deps.user(ctx)
	if err != nil {
		return nil, err
	}

	if err := deps.Store.Delete(ctx, collection, id); err != nil {
		return nil, err
	}
	deps.log().Info("note deleted", logger.String("id", id))

	return &DeleteOutput{Deleted: true, ID: id}, nil
}
