package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/hpungsan/scribe/internal/autosave"
	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/identity"
	"github.com/hpungsan/scribe/internal/logger"
)

const (
	DefaultIdleTimeout  = 30 * time.Minute
	DefaultReapInterval = time.Minute
)

// Options configures a Manager. Store is required.
type Options struct {
	Store  docstore.Store
	Clock  clockwork.Clock
	Logger logger.Logger

	IdleTimeout  time.Duration
	ReapInterval time.Duration

	// Autosave timings, passed to every controller.
	Debounce     time.Duration
	SavedDisplay time.Duration
	WriteTimeout time.Duration
}

// Manager tracks open sessions and closes the ones left idle.
type Manager struct {
	opts   Options
	clock  clockwork.Clock
	logger logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager with no sessions.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.NewInvalidRequest("session: store is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = DefaultReapInterval
	}

	return &Manager{
		opts:     opts,
		clock:    opts.Clock,
		logger:   opts.Logger,
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
	}, nil
}

// Open starts an editor for uid. An empty noteID opens a new draft. A note
// that cannot be loaded yields an error and no session.
func (m *Manager) Open(ctx context.Context, uid, noteID string) (*Session, error) {
	if uid == "" {
		return nil, errors.NewUnauthenticated("")
	}

	s := &Session{
		ID:       uuid.NewString(),
		UserID:   uid,
		location: NewNoteLocation,
		lastSeen: m.clock.Now(),
	}
	if noteID != "" {
		s.location = NoteLocation(noteID)
	}

	log := m.logger.With(logger.String("session_id", s.ID))
	ctrl, err := autosave.Open(ctx, autosave.Options{
		Store:        m.opts.Store,
		Identity:     identity.Static(uid),
		Navigator:    autosave.NavigatorFunc(s.navigate),
		Clock:        m.clock,
		Logger:       log,
		Debounce:     m.opts.Debounce,
		SavedDisplay: m.opts.SavedDisplay,
		WriteTimeout: m.opts.WriteTimeout,
		OnStatus: func(st autosave.Status) {
			log.Debug("save status", logger.String("status", string(st)))
		},
	}, noteID)
	if err != nil {
		if ctrl != nil {
			ctrl.Close()
		}
		return nil, err
	}
	s.ctrl = ctrl

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.Info("session opened", logger.String("note_id", noteID))
	return s, nil
}

// Get returns uid's session. Sessions of other users are NOT_FOUND.
func (m *Manager) Get(uid, sid string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sid]
	m.mu.Unlock()
	if !ok || s.UserID != uid {
		return nil, errors.NewNotFound(sid)
	}
	s.touch(m.clock.Now())
	return s, nil
}

// Edit applies e to the session and returns its new view.
func (m *Manager) Edit(uid, sid string, e Edit) (View, error) {
	s, err := m.Get(uid, sid)
	if err != nil {
		return View{}, err
	}
	if err := s.ctrl.LoadErr(); err != nil {
		return View{}, err
	}
	s.apply(e)
	return s.View(), nil
}

// Flush writes the session's pending edits now.
func (m *Manager) Flush(ctx context.Context, uid, sid string) (View, error) {
	s, err := m.Get(uid, sid)
	if err != nil {
		return View{}, err
	}
	if err := s.ctrl.Flush(ctx); err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// Close ends the session. Pending edits that have not reached their
// debounce are dropped; a write already in flight completes.
func (m *Manager) Close(uid, sid string) error {
	m.mu.Lock()
	s, ok := m.sessions[sid]
	if !ok || s.UserID != uid {
		m.mu.Unlock()
		return errors.NewNotFound(sid)
	}
	delete(m.sessions, sid)
	m.mu.Unlock()

	s.ctrl.Close()
	m.logger.Info("session closed", logger.String("session_id", sid))
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start runs the idle reaper until Stop is called or ctx ends.
func (m *Manager) Start(ctx context.Context) {
	ticker := m.clock.NewTicker(m.opts.ReapInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				m.Reap()
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the reaper.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Reap closes sessions idle for longer than the idle timeout and returns how
// many it closed.
func (m *Manager) Reap() int {
	now := m.clock.Now()

	m.mu.Lock()
	var stale []*Session
	for sid, s := range m.sessions {
		if now.Sub(s.idleSince()) >= m.opts.IdleTimeout {
			stale = append(stale, s)
			delete(m.sessions, sid)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.ctrl.Close()
		m.logger.Info("idle session closed",
			logger.String("session_id", s.ID),
			logger.Duration("idle", now.Sub(s.idleSince())))
	}
	if len(stale) == 0 {
		m.logger.Debug("no idle sessions")
	}
	return len(stale)
}

// Shutdown flushes and closes every session. Flush errors are logged; the
// first one is returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Stop()

	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for sid, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, sid)
	}
	m.mu.Unlock()

	var first error
	for _, s := range all {
		if s.ctrl.LoadErr() == nil {
			if err := s.ctrl.Flush(ctx); err != nil {
				m.logger.Warn("flush on shutdown failed",
					logger.String("session_id", s.ID),
					logger.Error(err))
				if first == nil {
					first = err
				}
			}
		}
		s.ctrl.Close()
	}
	return first
}
