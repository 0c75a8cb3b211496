// Package autosave saves a document once editing has been idle for a while.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTick = time.Second
	DefaultIdle = 2 * time.Second
)

// ErrClosed is returned by Close when the scheduler was already closed.
var ErrClosed = errors.New("autosave: scheduler closed")

// Saver is what the scheduler drives. Save writes pending changes and
// ForceSave rewrites everything.
type Saver interface {
	Save(ctx context.Context) error
	ForceSave(ctx context.Context) error
}

type Options struct {
	Tick time.Duration
	Idle time.Duration
	// Now replaces time.Now in tests.
	Now     func() time.Time
	Logger  zerolog.Logger
	OnError func(error)
}

type Scheduler struct {
	saver   Saver
	tick    time.Duration
	idle    time.Duration
	now     func() time.Time
	log     zerolog.Logger
	onError func(error)

	mu      sync.Mutex
	pending bool
	gen     uint64
	last    time.Time
	closed  bool
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func New(saver Saver, opts Options) *Scheduler {
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	idle := opts.Idle
	if idle <= 0 {
		idle = DefaultIdle
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		saver:   saver,
		tick:    tick,
		idle:    idle,
		now:     now,
		log:     opts.Logger.With().Str("component", "autosave").Logger(),
		onError: opts.OnError,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Activity records an edit and restarts the idle window.
func (s *Scheduler) Activity() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.pending = true
	s.gen++
	s.last = s.now()
	s.mu.Unlock()
}

// Pending reports whether edits are waiting for a save.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Tick saves when edits are pending and the idle window has passed. It
// reports whether a save was attempted. A failed save leaves the edits
// pending for the next window.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.closed || !s.pending || s.now().Sub(s.last) < s.idle {
		s.mu.Unlock()
		return false, nil
	}
	gen := s.gen
	s.mu.Unlock()

	err := s.saver.Save(ctx)

	s.mu.Lock()
	if err != nil {
		s.last = s.now()
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("autosave failed")
		if s.onError != nil {
			s.onError(err)
		}
		return true, err
	}
	// Edits made while saving stay pending.
	if s.gen == gen {
		s.pending = false
		s.last = time.Time{}
	}
	s.mu.Unlock()
	s.log.Debug().Msg("autosaved")
	return true, nil
}

// Run ticks until ctx is done or the scheduler is closed.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	defer close(s.done)

	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-t.C:
			_, _ = s.Tick(ctx)
		}
	}
}

// Close stops the loop, waits for an in-flight tick and force-saves.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	running := s.running
	close(s.stop)
	s.mu.Unlock()

	if running {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := s.saver.ForceSave(ctx); err != nil {
		s.log.Warn().Err(err).Msg("final save failed")
		return err
	}
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
	return nil
}
