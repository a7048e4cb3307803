package ops

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/logger"
	"github.com/hpungsan/scribe/internal/note"
)

// MaxImportFileBytes caps a single imported file.
const MaxImportFileBytes = 4 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Dir string // required; every *.md file directly inside is imported
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	IDs      []string      `json:"ids"`
	Errors   []ImportError `json:"errors"`
}

// ImportError reports a file that could not be imported.
type ImportError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import creates a note for every markdown file in a directory. The store
// assigns fresh ids and timestamps; title, content, tags and pinned are
// kept. Files whose title and content are both blank are skipped.
func Import(ctx context.Context, deps Deps, input ImportInput) (*ImportOutput, error) {
	_, collection, err := deps.user(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := ValidateDir(input.Dir, DirRead)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import directory: %w", err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := &ImportOutput{IDs: []string{}, Errors: []ImportError{}}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewUnavailable(fmt.Errorf("import cancelled: %w", err))
		}

		n, err := readNoteFile(filepath.Join(dir, name))
		if err != nil {
			out.Errors = append(out.Errors, ImportError{File: name, Code: "PARSE_ERROR", Message: err.Error()})
			continue
		}
		if note.IsBlank(n.Title) && note.IsBlank(n.Content) {
			out.Skipped++
			continue
		}

		id, err := deps.Store.Create(ctx, collection, docstore.Fields{
			docstore.FieldTitle:     n.Title,
			docstore.FieldContent:   n.Content,
			docstore.FieldTags:      n.Tags,
			docstore.FieldPinned:    n.Pinned,
			docstore.FieldCreatedAt: docstore.ServerTimestamp,
			docstore.FieldUpdatedAt: docstore.ServerTimestamp,
		})
		if err != nil {
			se := errors.As(err)
			out.Errors = append(out.Errors, ImportError{File: name, Code: string(se.Code), Message: se.Message})
			continue
		}
		out.IDs = append(out.IDs, id)
		out.Imported++
	}

	deps.log().Info("notes imported",
		logger.String("dir", dir),
		logger.Int("imported", out.Imported),
		logger.Int("skipped", out.Skipped),
		logger.Int("errors", len(out.Errors)))
	return out, nil
}

func readNoteFile(path string) (*note.Note, error) {
	f, err := openFileNoFollowRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImportFileBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImportFileBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", MaxImportFileBytes)
	}
	return UnmarshalNote(data)
}
