// Package autosave keeps one note's in-memory edits in sync with the document
// store.
//
// Edits arm a debounce timer. When it elapses the controller decides whether
// the note is worth writing, then creates it (first save of a draft) or merges
// the changed fields into the stored document. At most one write per
// controller is in flight; a timer that elapses during a write is deferred
// until that write resolves. Failed writes re-arm the debounce.
package autosave

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/identity"
	"github.com/hpungsan/scribe/internal/logger"
	"github.com/hpungsan/scribe/internal/note"
)

const (
	DefaultDebounce     = 1500 * time.Millisecond
	DefaultSavedDisplay = 2 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Options configures a Controller. Store and Identity are required.
type Options struct {
	Store     docstore.Store
	Identity  identity.Provider
	Navigator Navigator
	Clock     clockwork.Clock
	Logger    logger.Logger

	Debounce     time.Duration
	SavedDisplay time.Duration
	WriteTimeout time.Duration

	// OnStatus observes every status change. OnError observes failed writes.
	// Both run without the controller lock held.
	OnStatus func(Status)
	OnError  func(error)
}

// Controller owns the editable state of a single note.
type Controller struct {
	store        docstore.Store
	ident        identity.Provider
	nav          Navigator
	clock        clockwork.Clock
	log          logger.Logger
	debounce     time.Duration
	savedDisplay time.Duration
	writeTimeout time.Duration
	onStatus     func(Status)
	onError      func(error)

	mu      sync.Mutex
	local   *note.Note
	remote  *note.Note // last values the store acknowledged; nil for a draft
	loading bool
	loadErr error
	closed  bool

	timer    clockwork.Timer
	gen      uint64 // invalidates timers that were stopped too late
	writing  bool
	done     chan struct{}
	deferred bool

	status      Status
	statusGen   uint64
	statusTimer clockwork.Timer
}

// writeReq is one store call, captured under the lock.
type writeReq struct {
	uid  string
	sent *note.Note
	done chan struct{}
}

func (r *writeReq) create() bool { return r.sent.ID == "" }

// New returns a controller holding an empty draft.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.NewInvalidRequest("autosave: store is required")
	}
	if opts.Identity == nil {
		return nil, errors.NewInvalidRequest("autosave: identity provider is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SavedDisplay <= 0 {
		opts.SavedDisplay = DefaultSavedDisplay
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	return &Controller{
		store:        opts.Store,
		ident:        opts.Identity,
		nav:          opts.Navigator,
		clock:        opts.Clock,
		log:          opts.Logger,
		debounce:     opts.Debounce,
		savedDisplay: opts.SavedDisplay,
		writeTimeout: opts.WriteTimeout,
		onStatus:     opts.OnStatus,
		onError:      opts.OnError,
		local:        &note.Note{Tags: []string{}},
		status:       StatusIdle,
	}, nil
}

// Open builds a controller and loads id into it. An empty id opens a draft.
// On a load error the controller is still returned, disabled, alongside the
// error.
func Open(ctx context.Context, opts Options, id string) (*Controller, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return c, nil
	}
	return c, c.Load(ctx, id)
}

// Load replaces the local note with the stored document. A missing document
// is an error: the controller stays disabled rather than inventing a draft.
func (c *Controller) Load(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.NewConflict("autosave: controller is closed")
	}
	c.stopTimerLocked()
	c.loading = true
	c.mu.Unlock()

	n, err := c.fetch(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.loadErr = err
		c.log.Debug("load failed", logger.String("id", id), logger.Error(err))
		return err
	}
	n.Tags = note.CleanTags(n.Tags)
	c.local = n.Clone()
	c.remote = n.Clone()
	c.loadErr = nil
	return nil
}

func (c *Controller) fetch(ctx context.Context, id string) (*note.Note, error) {
	uid, err := c.ident.UserID(ctx)
	if err != nil {
		return nil, err
	}
	return c.store.FetchByID(ctx, docstore.UserCollection(uid), id)
}

// SetTitle replaces the title. Returns false if nothing changed.
func (c *Controller) SetTitle(title string) bool {
	return c.edit(func(n *note.Note) bool {
		if n.Title == title {
			return false
		}
		n.Title = title
		return true
	})
}

// SetContent replaces the serialized body.
func (c *Controller) SetContent(content string) bool {
	return c.edit(func(n *note.Note) bool {
		if n.Content == content {
			return false
		}
		n.Content = content
		return true
	})
}

// SetTags replaces the tag list after trimming and de-duplicating it.
func (c *Controller) SetTags(tags []string) bool {
	cleaned := note.CleanTags(tags)
	return c.edit(func(n *note.Note) bool {
		if equalOrdered(n.Tags, cleaned) {
			return false
		}
		n.Tags = cleaned
		return true
	})
}

// AddTag appends tag unless it is blank or already present.
func (c *Controller) AddTag(tag string) bool {
	return c.edit(func(n *note.Note) bool {
		tags, changed := note.AddTag(n.Tags, tag)
		n.Tags = tags
		return changed
	})
}

// RemoveTag removes tag if present.
func (c *Controller) RemoveTag(tag string) bool {
	return c.edit(func(n *note.Note) bool {
		tags, changed := note.RemoveTag(n.Tags, tag)
		n.Tags = tags
		return changed
	})
}

func (c *Controller) edit(apply func(*note.Note) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading || c.loadErr != nil || c.closed {
		return false
	}
	if !apply(c.local) {
		return false
	}
	c.armLocked()
	return true
}

// armLocked (re)starts the debounce.
func (c *Controller) armLocked() {
	c.stopTimerLocked()
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.debounce, func() { go c.fire(gen) })
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

// fire runs when the debounce elapses.
func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.writing {
		c.deferred = true
		c.mu.Unlock()
		return
	}
	req, notify, err := c.startWriteLocked(context.Background())
	c.mu.Unlock()

	notify()
	if err != nil {
		c.log.Debug("write skipped", logger.Error(err))
		return
	}
	if req != nil {
		c.run(req)
	}
}

// startWriteLocked applies the gate and, if the note is worth writing, marks
// a write in flight. A nil request with a nil error means nothing to write.
func (c *Controller) startWriteLocked(ctx context.Context) (*writeReq, func(), error) {
	if !worthWriting(c.local, c.remote) {
		return nil, noop, nil
	}
	uid, err := c.ident.UserID(ctx)
	if err != nil {
		return nil, noop, err
	}

	c.writing = true
	c.done = make(chan struct{})
	req := &writeReq{uid: uid, sent: c.local.Clone(), done: c.done}
	return req, c.setStatusLocked(StatusSaving), nil
}

// run executes req and any write deferred behind it.
func (c *Controller) run(req *writeReq) {
	for req != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
		id, err := c.execute(ctx, req)
		cancel()
		req = c.complete(req, id, err)
	}
}

// execute performs the store call without holding the lock.
func (c *Controller) execute(ctx context.Context, req *writeReq) (string, error) {
	collection := docstore.UserCollection(req.uid)
	if req.create() {
		return c.store.Create(ctx, collection, createFields(req.sent))
	}
	err := c.store.MergeUpdate(ctx, collection, req.sent.ID, updateFields(req.sent))
	return req.sent.ID, err
}

// complete records the outcome of req and returns the deferred follow-up
// write, if one is due.
func (c *Controller) complete(req *writeReq, id string, err error) *writeReq {
	var calls []func()

	c.mu.Lock()
	c.writing = false
	close(req.done)

	if err != nil {
		c.deferred = false
		calls = append(calls, c.setStatusLocked(StatusIdle))
		if !c.closed {
			c.armLocked()
		}
		c.mu.Unlock()

		c.log.Warn("write failed",
			logger.String("id", req.sent.ID),
			logger.Bool("create", req.create()),
			logger.Error(err))
		if c.onError != nil {
			c.onError(err)
		}
		runAll(calls)
		return nil
	}

	if req.create() {
		req.sent.ID = id
		if c.local.ID == "" {
			c.local.ID = id
		}
		if c.nav != nil {
			calls = append(calls, func() { c.nav.NoteCreated(id) })
		}
	}
	c.remote = req.sent
	calls = append(calls, c.setStatusLocked(StatusSaved))
	c.scheduleRevertLocked()

	var next *writeReq
	if c.deferred && !c.closed {
		c.deferred = false
		var notify func()
		var gateErr error
		next, notify, gateErr = c.startWriteLocked(context.Background())
		calls = append(calls, notify)
		if gateErr != nil {
			c.log.Debug("deferred write skipped", logger.Error(gateErr))
		}
	}
	c.mu.Unlock()

	runAll(calls)
	return next
}

// setStatusLocked updates the status and returns the notification to run
// once the lock is released.
func (c *Controller) setStatusLocked(s Status) func() {
	if c.status == s {
		return noop
	}
	c.status = s
	c.statusGen++
	if c.statusTimer != nil {
		c.statusTimer.Stop()
		c.statusTimer = nil
	}
	if c.onStatus == nil {
		return noop
	}
	fn := c.onStatus
	return func() { fn(s) }
}

// scheduleRevertLocked returns "saved" to "idle" after SavedDisplay unless
// the status changes first.
func (c *Controller) scheduleRevertLocked() {
	gen := c.statusGen
	c.statusTimer = c.clock.AfterFunc(c.savedDisplay, func() {
		go func() {
			c.mu.Lock()
			if c.statusGen != gen || c.status != StatusSaved {
				c.mu.Unlock()
				return
			}
			notify := c.setStatusLocked(StatusIdle)
			c.mu.Unlock()
			notify()
		}()
	})
}

// Flush cancels the debounce, waits for any in-flight write and then writes
// synchronously if the gate allows it. It returns the write error, or the
// identity error if nobody is signed in.
func (c *Controller) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.loadErr != nil {
			err := c.loadErr
			c.mu.Unlock()
			return err
		}
		if c.loading {
			c.mu.Unlock()
			return errors.NewConflict("autosave: note is still loading")
		}
		c.stopTimerLocked()
		c.deferred = false

		if c.writing {
			done := c.done
			c.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, notify, err := c.startWriteLocked(ctx)
		c.mu.Unlock()
		notify()
		if err != nil || req == nil {
			return err
		}

		wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
		id, werr := c.execute(wctx, req)
		cancel()
		if next := c.complete(req, id, werr); next != nil {
			c.run(next)
		}
		return werr
	}
}

// Close stops the pending debounce and drops any deferred write. A write
// already in flight runs to completion.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.deferred = false
}

// Wait blocks until no write is in flight or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.writing {
			c.mu.Unlock()
			return nil
		}
		done := c.done
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns a copy of the local note.
func (c *Controller) Snapshot() *note.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local.Clone()
}

// ID returns the note id, empty until the first create succeeds.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local.ID
}

// State reports where the controller is in its write cycle.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.loading:
		return StateLoading
	case c.writing:
		return StateWriting
	case c.timer != nil || c.deferred:
		return StatePendingWrite
	default:
		return StateIdle
	}
}

// Status returns the current save indicator.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LoadErr returns the error from the last Load, if it failed.
func (c *Controller) LoadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) String() string {
	return fmt.Sprintf("autosave.Controller{id=%q state=%s status=%s}", c.ID(), c.State(), c.Status())
}

func equalOrdered(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func noop() {}

func runAll(calls []func()) {
	for _, fn := range calls {
		fn()
	}
}
