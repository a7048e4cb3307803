package autosave

// State is the controller's position in its write cycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePendingWrite
	StateWriting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePendingWrite:
		return "pending_write"
	case StateWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// Status is the save indicator shown to the user.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
)

// Navigator is told when a draft gets its first id, so the surface can move
// from the new-note location to the note's own location.
type Navigator interface {
	NoteCreated(id string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(id string)

// NoteCreated implements Navigator.
func (f NavigatorFunc) NoteCreated(id string) { f(id) }
