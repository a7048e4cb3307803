package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/scribe/internal/errors"
)

// DirMode says whether a directory is about to be read or written.
type DirMode int

const (
	DirRead  DirMode = iota // import
	DirWrite                // export
)

// ValidateDir checks an import or export directory. Traversal sequences are
// rejected and the directory itself must not be a symlink, since files are
// opened directly inside it with O_NOFOLLOW. For DirRead it must exist.
func ValidateDir(path string, mode DirMode) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.NewInvalidRequest("directory is required")
	}
	if containsTraversal(path) {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	info, err := os.Lstat(abs)
	switch {
	case os.IsNotExist(err):
		if mode == DirRead {
			return "", errors.NewNotFound(path)
		}
		return abs, nil
	case err != nil:
		return "", errors.NewInternal(err)
	case info.Mode()&os.ModeSymlink != 0:
		return "", errors.NewInvalidRequest("directory must not be a symlink")
	case !info.IsDir():
		return "", errors.NewInvalidRequest(fmt.Sprintf("%s is not a directory", path))
	}
	return abs, nil
}

// DefaultExportsDir returns ~/.scribe/exports.
func DefaultExportsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, ".scribe", "exports"), nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

// SanitizeForFilename makes s safe to use as a single path component.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}
	s = b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "unnamed"
	}
	return s
}
