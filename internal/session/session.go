// Package session holds the live editing sessions behind the web editor.
// Each session owns one autosave controller and the location the editor
// should show: /notes/new for a draft, /notes/<id> once the note exists.
package session

import (
	"sync"
	"time"

	"github.com/hpungsan/scribe/internal/autosave"
	"github.com/hpungsan/scribe/internal/note"
)

// NewNoteLocation is the location of an unsaved draft.
const NewNoteLocation = "/notes/new"

// NoteLocation returns the location of a persisted note.
func NoteLocation(id string) string {
	return "/notes/" + id
}

// Session is one open editor.
type Session struct {
	ID     string
	UserID string

	ctrl *autosave.Controller

	mu       sync.Mutex
	location string
	lastSeen time.Time
}

// View is the JSON shape of a session.
type View struct {
	SessionID string     `json:"session_id"`
	NoteID    string     `json:"note_id,omitempty"`
	Location  string     `json:"location"`
	State     string     `json:"state"`
	Status    string     `json:"status"`
	Note      *note.Note `json:"note"`
}

// Edit is a batch of editor changes. Nil fields are left alone.
type Edit struct {
	Title      *string   `json:"title,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	AddTags    []string  `json:"add_tags,omitempty"`
	RemoveTags []string  `json:"remove_tags,omitempty"`
}

// Empty reports whether e changes nothing.
func (e Edit) Empty() bool {
	return e.Title == nil && e.Content == nil && e.Tags == nil && len(e.AddTags) == 0 && len(e.RemoveTags) == 0
}

// apply routes e through the controller's setters.
func (s *Session) apply(e Edit) {
	if e.Title != nil {
		s.ctrl.SetTitle(*e.Title)
	}
	if e.Content != nil {
		s.ctrl.SetContent(*e.Content)
	}
	if e.Tags != nil {
		s.ctrl.SetTags(*e.Tags)
	}
	for _, t := range e.AddTags {
		s.ctrl.AddTag(t)
	}
	for _, t := range e.RemoveTags {
		s.ctrl.RemoveTag(t)
	}
}

// Location is where the editor should be.
func (s *Session) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

func (s *Session) navigate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = NoteLocation(id)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// View snapshots the session.
func (s *Session) View() View {
	snap := s.ctrl.Snapshot()
	return View{
		SessionID: s.ID,
		NoteID:    snap.ID,
		Location:  s.Location(),
		State:     s.ctrl.State().String(),
		Status:    string(s.ctrl.Status()),
		Note:      snap,
	}
}
