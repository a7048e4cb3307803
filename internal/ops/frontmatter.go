package ops

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/scribe/internal/note"
)

const frontMatterFence = "---"

// FrontMatter is the YAML header of an exported note file.
type FrontMatter struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	Tags      []string  `yaml:"tags"`
	Pinned    bool      `yaml:"pinned,omitempty"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// MarshalNote renders n as a front-matter document followed by its content.
func MarshalNote(n *note.Note) ([]byte, error) {
	fm := FrontMatter{
		ID:        n.ID,
		Title:     n.Title,
		Tags:      note.CleanTags(n.Tags),
		Pinned:    n.Pinned,
		CreatedAt: n.CreatedAt.UTC(),
		UpdatedAt: n.UpdatedAt.UTC(),
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterFence + "\n")
	buf.Write(header)
	buf.WriteString(frontMatterFence + "\n")
	if n.Content != "" {
		buf.WriteString(n.Content)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// UnmarshalNote parses a document written by MarshalNote. A file without a
// front-matter header is taken as content only.
func UnmarshalNote(data []byte) (*note.Note, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	fence := []byte(frontMatterFence + "\n")
	if !bytes.HasPrefix(data, fence) {
		return &note.Note{Content: string(data), Tags: []string{}}, nil
	}

	rest := data[len(fence):]
	end := bytes.Index(rest, []byte("\n"+frontMatterFence+"\n"))
	var header, body []byte
	switch {
	case end >= 0:
		header, body = rest[:end+1], rest[end+len(fence)+1:]
	case bytes.HasPrefix(rest, fence):
		header, body = nil, rest[len(fence):]
	case bytes.HasSuffix(rest, []byte("\n"+frontMatterFence)):
		header = rest[:len(rest)-len(frontMatterFence)]
	default:
		return nil, fmt.Errorf("unterminated front matter")
	}

	var fm FrontMatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return nil, fmt.Errorf("invalid front matter: %w", err)
	}

	content := string(body)
	if len(content) > 0 && content[len(content)-1] == '\n' {
		content = content[:len(content)-1]
	}

	return &note.Note{
		ID:        fm.ID,
		Title:     fm.Title,
		Content:   content,
		Tags:      note.CleanTags(fm.Tags),
		Pinned:    fm.Pinned,
		CreatedAt: fm.CreatedAt,
		UpdatedAt: fm.UpdatedAt,
	}, nil
}
