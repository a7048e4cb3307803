package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hpungsan/scribe/internal/autosave"
	"github.com/hpungsan/scribe/internal/note"
)

// lockedWriter serialises writes from the controller's goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

// editResult is printed when an edit session ends.
type editResult struct {
	ID   string     `json:"id,omitempty"`
	Note *note.Note `json:"note"`
}

// runEditor drives an autosave controller from line input until EOF or
// :quit. Commands:
//
//	:title TEXT   set the title
//	:tag NAME     add a tag
//	:untag NAME   remove a tag
//	:save         write pending edits now
//	:quit         save and stop
//
// Any other line is appended to the body. A leading backslash escapes a
// line that would otherwise read as a command.
func runEditor(ctx context.Context, in io.Reader, status io.Writer, opts autosave.Options, id string) (*editResult, error) {
	log := &lockedWriter{w: status}
	opts.OnStatus = func(s autosave.Status) {
		log.Printf("[%s]\n", s)
	}
	opts.OnError = func(err error) {
		log.Printf("save failed: %v\n", err)
	}
	opts.Navigator = autosave.NavigatorFunc(func(id string) {
		log.Printf("created %s\n", id)
	})

	c, err := autosave.Open(ctx, opts, id)
	if err != nil {
		if c != nil {
			c.Close()
		}
		return nil, err
	}
	defer c.Close()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

loop:
	for scanner.Scan() {
		line := scanner.Text()
		cmd, arg := parseEditorLine(line)
		switch cmd {
		case "title":
			c.SetTitle(arg)
		case "tag":
			c.AddTag(arg)
		case "untag":
			c.RemoveTag(arg)
		case "save":
			if err := c.Flush(ctx); err != nil {
				log.Printf("save failed: %v\n", err)
			}
		case "quit":
			break loop
		case "":
			c.SetContent(c.Snapshot().Content + arg + "\n")
		default:
			log.Printf("unknown command :%s\n", cmd)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if err := c.Flush(ctx); err != nil {
		return nil, err
	}
	snap := c.Snapshot()
	return &editResult{ID: snap.ID, Note: snap}, nil
}

// parseEditorLine splits a line into a command and its argument. Body lines
// return an empty command and the text to append.
func parseEditorLine(line string) (string, string) {
	if strings.HasPrefix(line, `\`) {
		return "", line[1:]
	}
	if !strings.HasPrefix(line, ":") {
		return "", line
	}
	cmd, arg, _ := strings.Cut(line[1:], " ")
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return "", line
	}
	return cmd, strings.TrimSpace(arg)
}
