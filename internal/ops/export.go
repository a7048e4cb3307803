package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/logger"
	"github.com/hpungsan/scribe/internal/note"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Dir string // optional, default: ~/.scribe/exports
	Tag string // optional, export only notes carrying this tag
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Dir        string   `json:"dir"`
	Count      int      `json:"count"`
	Files      []string `json:"files"`
	ExportedAt int64    `json:"exported_at"`
}

// Export writes each of the user's notes to <dir>/<id>.md as YAML front
// matter followed by the content. Existing files for the same id are
// replaced.
func Export(ctx context.Context, deps Deps, input ExportInput) (*ExportOutput, error) {
	_, collection, err := deps.user(ctx)
	if err != nil {
		return nil, err
	}

	dir := input.Dir
	if dir == "" {
		if dir, err = DefaultExportsDir(); err != nil {
			return nil, err
		}
	}
	dir, err = ValidateDir(dir, DirWrite)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	notes, err := deps.Store.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	notes = note.Filter{Tag: input.Tag}.Apply(notes)

	out := &ExportOutput{Dir: dir, Files: []string{}, ExportedAt: time.Now().Unix()}
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewUnavailable(fmt.Errorf("export cancelled: %w", err))
		}

		path := filepath.Join(dir, SanitizeForFilename(n.ID)+".md")
		if err := writeNoteFile(path, n); err != nil {
			return nil, err
		}
		out.Files = append(out.Files, path)
		out.Count++
	}

	deps.log().Info("notes exported", logger.String("dir", dir), logger.Int("count", out.Count))
	return out, nil
}

// writeNoteFile writes to a temp file first and renames it into place, so a
// failed export never truncates an earlier one.
func writeNoteFile(path string, n *note.Note) error {
	data, err := MarshalNote(n)
	if err != nil {
		return errors.NewInternal(err)
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}
	if err := os.Rename(tempPath, path); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}
