// Package session owns one open document: it serializes edits and saves,
// records undo history and drives autosave.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"noteline/internal/autosave"
	"noteline/internal/history"
	"noteline/internal/outline"
	"noteline/internal/persist"
)

var (
	ErrClosed   = errors.New("session closed")
	ErrReadOnly = errors.New("session is read-only")
)

type Options struct {
	Autosave  autosave.Options
	UndoDepth int
	Logger    zerolog.Logger
	// Notify receives save failures. Editing continues after a failure.
	Notify func(error)
	// ReadOnly sessions reject edits and never write; Close does not save.
	ReadOnly bool
}

// Session is safe for concurrent use. Subscribers run while the session lock
// is held and must not call back into the session.
type Session struct {
	mu       sync.Mutex
	doc      *outline.Document
	syncer   *persist.Syncer
	history  *history.Stack[outline.Snapshot]
	sched    *autosave.Scheduler
	log      zerolog.Logger
	notify   func(error)
	closed   bool
	readOnly bool
}

// Open loads subjectID and records the undo baseline.
func Open(ctx context.Context, repo persist.Repository, subjectID int64, opts Options) (*Session, error) {
	log := opts.Logger.With().Int64("subject", subjectID).Logger()
	syncer := persist.New(repo, log)
	doc, err := syncer.Load(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	s := &Session{
		doc:      doc,
		syncer:   syncer,
		history:  history.New(doc.Snapshot(), opts.UndoDepth),
		log:      log,
		notify:   opts.Notify,
		readOnly: opts.ReadOnly,
	}
	ao := opts.Autosave
	if ao.OnError == nil {
		// failures are already reported by save
		ao.OnError = func(error) {}
	}
	ao.Logger = log
	s.sched = autosave.New(autosaver{s}, ao)
	log.Debug().Int("lines", doc.Len()).Msg("session opened")
	return s, nil
}

// Start runs the autosave loop in the background until ctx is done or the
// session is closed.
func (s *Session) Start(ctx context.Context) {
	if s.readOnly {
		return
	}
	go s.sched.Run(ctx)
}

// Line is a read-only copy of one line.
type Line struct {
	ID           outline.LineID `json:"id"`
	Index        int            `json:"index"`
	Content      string         `json:"content"`
	Kind         outline.Kind   `json:"kind"`
	Level        int            `json:"level,omitempty"`
	ImageURL     string         `json:"imageUrl,omitempty"`
	DisplayOrder int            `json:"displayOrder"`
	Category     outline.LineID `json:"category,omitempty"`
	CategoryID   int64          `json:"categoryId,omitempty"`
	ContentID    int64          `json:"contentId,omitempty"`
	Dirty        bool           `json:"dirty,omitempty"`
}

func lineView(index int, l *outline.Line) Line {
	v := Line{
		ID:           l.ID(),
		Index:        index,
		Content:      l.Content(),
		Kind:         l.Kind(),
		Level:        l.Level(),
		ImageURL:     l.ImageURL(),
		DisplayOrder: l.DisplayOrder(),
		CategoryID:   l.PersistedCategoryID(),
		ContentID:    l.PersistedContentID(),
		Dirty:        l.Dirty(),
	}
	if !l.IsHeading() {
		v.Category = l.CategoryRef()
	}
	return v
}

func (s *Session) SubjectID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.SubjectID()
}

func (s *Session) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, s.doc.Len())
	for i := range out {
		out[i] = lineView(i, s.doc.Line(i))
	}
	return out
}

func (s *Session) Markdown() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Markdown()
}

func (s *Session) Headings() []outline.HeadingNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Headings()
}

// Validate checks the document's structural invariants.
func (s *Session) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Validate()
}

// Subscribe registers fn for document events and returns a cancel func.
func (s *Session) Subscribe(fn func(outline.Event)) func() {
	s.mu.Lock()
	cancel := s.doc.Subscribe(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		cancel()
		s.mu.Unlock()
	}
}

// edit runs fn under the lock and records the result as one undo step.
func (s *Session) edit(fn func(d *outline.Document) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}
	changed, err := fn(s.doc)
	if err != nil || !changed {
		return err
	}
	s.history.Push(s.doc.Snapshot())
	s.sched.Activity()
	return nil
}

func (s *Session) Insert(index int, text string) (Line, error) {
	var out Line
	err := s.edit(func(d *outline.Document) (bool, error) {
		l, err := d.InsertAt(index, text)
		if err != nil {
			return false, err
		}
		out = lineView(index, l)
		return true, nil
	})
	return out, err
}

func (s *Session) InsertImage(index int, url, caption string) (Line, error) {
	var out Line
	err := s.edit(func(d *outline.Document) (bool, error) {
		l, err := d.InsertImage(index, url, caption)
		if err != nil {
			return false, err
		}
		out = lineView(index, l)
		return true, nil
	})
	return out, err
}

// Remove deletes the line at index and returns its last state.
func (s *Session) Remove(index int) (Line, error) {
	var out Line
	err := s.edit(func(d *outline.Document) (bool, error) {
		l, err := d.RemoveAt(index)
		if err != nil {
			return false, err
		}
		out = lineView(index, l)
		return true, nil
	})
	return out, err
}

func (s *Session) Move(from, to int, insertBefore bool) error {
	return s.edit(func(d *outline.Document) (bool, error) {
		if from == to {
			return false, d.MoveLine(from, to, insertBefore)
		}
		return true, d.MoveLine(from, to, insertBefore)
	})
}

func (s *Session) SetContent(index int, text string) (outline.Transition, error) {
	var tr outline.Transition
	err := s.edit(func(d *outline.Document) (bool, error) {
		var before string
		if index >= 0 && index < d.Len() {
			before = d.Line(index).Content()
		}
		var err error
		tr, err = d.SetContent(index, text)
		if err != nil {
			return false, err
		}
		return d.Line(index).Content() != before, nil
	})
	return tr, err
}

// Activity restarts the autosave idle window without changing the document.
func (s *Session) Activity() { s.sched.Activity() }

// Save writes pending changes. Failures are logged and passed to Notify; the
// document keeps its dirty state so the next save retries.
func (s *Session) Save(ctx context.Context) (persist.Result, error) {
	return s.save(ctx, false)
}

// ForceSave rewrites every line.
func (s *Session) ForceSave(ctx context.Context) (persist.Result, error) {
	return s.save(ctx, true)
}

func (s *Session) save(ctx context.Context, force bool) (persist.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		return persist.Result{}, ErrReadOnly
	}
	var (
		res persist.Result
		err error
	)
	if force {
		res, err = s.syncer.ForceSave(ctx, s.doc)
	} else {
		res, err = s.syncer.Save(ctx, s.doc)
	}
	if err != nil {
		s.log.Error().Err(err).Bool("force", force).Msg("save failed")
		if s.notify != nil {
			s.notify(err)
		}
	}
	return res, err
}

// Undo restores the previous state. It reports false when only the baseline
// is left.
func (s *Session) Undo() bool {
	return s.travel(s.history.Undo)
}

func (s *Session) Redo() bool {
	return s.travel(s.history.Redo)
}

func (s *Session) travel(step func() (outline.Snapshot, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.readOnly {
		return false
	}
	snap, ok := step()
	if !ok {
		return false
	}
	s.doc.Restore(snap)
	s.sched.Activity()
	return true
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// Pending reports whether edits are waiting for autosave.
func (s *Session) Pending() bool { return s.sched.Pending() }

// Close stops autosave and force-saves the document unless the session is
// read-only. Later edits fail with ErrClosed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	if s.readOnly {
		return nil
	}
	err := s.sched.Close(ctx)
	s.log.Debug().Err(err).Msg("session closed")
	return err
}

// autosaver adapts the session to the scheduler.
type autosaver struct{ s *Session }

func (a autosaver) Save(ctx context.Context) error {
	_, err := a.s.Save(ctx)
	return err
}

func (a autosaver) ForceSave(ctx context.Context) error {
	_, err := a.s.ForceSave(ctx)
	return err
}
