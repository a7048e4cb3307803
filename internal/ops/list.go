package ops

import (
	"context"

	"github.com/hpungsan/scribe/internal/note"
)

// ExcerptLength is the number of plain-text runes in a list item excerpt.
const ExcerptLength = 160

// ListInput contains parameters for the List operation.
type ListInput struct {
	Query  string // case-insensitive match on title and content
	Tag    string // exact tag membership
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// NoteSummary is a note without its full content.
type NoteSummary struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Excerpt   string   `json:"excerpt"`
	Tags      []string `json:"tags"`
	Pinned    bool     `json:"pinned"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []NoteSummary `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`

	// AllTags lists every tag in the user's notes, before filtering.
	AllTags []string `json:"all_tags"`
}

// List returns the user's notes, pinned first then most recently updated,
// filtered and paginated.
func List(ctx context.Context, deps Deps, input ListInput) (*ListOutput, error) {
	_, collection, err := deps.user(ctx)
	if err != nil {
		return nil, err
	}

	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	notes, err := deps.Store.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	filtered := note.Filter{Query: input.Query, Tag: input.Tag}.Apply(notes)
	note.Sort(filtered)

	total := len(filtered)
	start := min(offset, total)
	end := min(start+limit, total)

	items := make([]NoteSummary, 0, end-start)
	for _, n := range filtered[start:end] {
		items = append(items, Summarize(n))
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: end < total,
			Total:   total,
		},
		Sort:    "pinned_then_updated_at_desc",
		AllTags: note.AllTags(notes),
	}, nil
}

// Summarize builds a list item for n.
func Summarize(n *note.Note) NoteSummary {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return NoteSummary{
		ID:        n.ID,
		Title:     n.Title,
		Excerpt:   note.Excerpt(n.Content, ExcerptLength),
		Tags:      tags,
		Pinned:    n.Pinned,
		CreatedAt: unixMillis(n.CreatedAt),
		UpdatedAt: unixMillis(n.UpdatedAt),
	}
}
