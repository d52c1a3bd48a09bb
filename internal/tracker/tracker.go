// Package tracker keeps the client-side progress of one interview session in step
// with the remote session store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-coach/internal/logger"
	"github.com/spigell/cv-coach/internal/session"
	"github.com/spigell/cv-coach/internal/utils"
)

const (
	defaultPositionAttempts = 2
	defaultBackoff          = 500 * time.Millisecond
	maxBackoff              = 5 * time.Second
)

// Store is the part of the remote session store the tracker relies on.
type Store interface {
	Fetch(ctx context.Context, id string) (*session.Session, error)
	SubmitAnswer(ctx context.Context, id, stepID string, choice session.Label) error
	PersistPosition(ctx context.Context, id string, index int) error
}

// Journal remembers exit-time positions until the store has acknowledged them.
type Journal interface {
	Record(ctx context.Context, sessionID string, index int) error
	Forget(ctx context.Context, sessionID string) error
}

type State int

const (
	NotLoaded State = iota
	Loading
	Ready
	LoadFailed
	Completed
)

func (s State) String() string {
	switch s {
	case NotLoaded:
		return "not-loaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case LoadFailed:
		return "load-failed"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Tracker holds the displayed step index and the confirmed answers of a single
// session. It is safe for concurrent use; at most one submission is in flight.
type Tracker struct {
	store   Store
	journal Journal
	logger  *zap.Logger

	positionAttempts int
	backoff          time.Duration

	mu       sync.Mutex
	state    State
	sess     *session.Session
	index    int
	frontier int
	inflight bool
	released bool
}

type Option func(*Tracker)

func WithJournal(j Journal) Option {
	return func(t *Tracker) {
		t.journal = j
	}
}

// WithPositionRetry sets how many times a position write is attempted in total
// and the base delay between attempts.
func WithPositionRetry(attempts int, backoff time.Duration) Option {
	return func(t *Tracker) {
		if attempts > 0 {
			t.positionAttempts = attempts
		}
		if backoff >= 0 {
			t.backoff = backoff
		}
	}
}

func New(store Store, log *zap.Logger, opts ...Option) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}

	t := &Tracker{
		store:            store,
		logger:           log,
		positionAttempts: defaultPositionAttempts,
		backoff:          defaultBackoff,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Load fetches the session and resolves the displayed index. A non-nil hint wins
// over the stored index for this load only.
func (t *Tracker) Load(ctx context.Context, id string, hint *int) (*session.Session, error) {
	t.mu.Lock()
	if err := t.checkLoadable(id); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	prev := t.state
	t.state = Loading
	t.mu.Unlock()

	fetched, err := t.store.Fetch(ctx, id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return nil, discarded(err)
	}

	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			t.state = LoadFailed
			t.sess = nil
		} else {
			t.state = prev
		}
		return nil, err
	}

	if fetched.Len() == 0 {
		t.state = prev
		return nil, fmt.Errorf("%w: session %s has no steps", session.ErrValidation, id)
	}

	stored := fetched.CurrentIndex

	// A finished session ignores the resume hint.
	if fetched.Completed {
		t.sess = fetched
		t.index = stored
		t.frontier = stored
		t.state = Completed
		t.logger.Info("session already completed", logger.SessionFields(id, "")...)
		return fetched.Clone(), nil
	}

	if hint != nil && !fetched.InRange(*hint) {
		t.state = prev
		return nil, fmt.Errorf("%w: resume index %d is outside [0, %d)", session.ErrValidation, *hint, fetched.Len())
	}

	t.sess = fetched
	t.index = stored
	t.frontier = stored

	if hint != nil {
		t.index = *hint
		t.frontier = max(stored, *hint)
	}
	t.sess.CurrentIndex = t.index
	t.state = Ready

	t.logger.Info("session loaded",
		zap.String(logger.FieldSession, id),
		zap.Int(logger.FieldIndex, t.index),
		zap.Int("stored_index", stored),
		zap.Int("steps", fetched.Len()),
	)

	return t.sess.Clone(), nil
}

func (t *Tracker) checkLoadable(id string) error {
	switch {
	case t.released:
		return errReleased
	case t.state == Loading || t.inflight:
		return fmt.Errorf("%w: session %s is busy", session.ErrBusy, id)
	case t.state == Completed:
		return fmt.Errorf("%w: session %s is completed", session.ErrConflict, t.sess.ID)
	case t.state == LoadFailed:
		return fmt.Errorf("%w: tracker failed to load its session", session.ErrConflict)
	case t.state == Ready && t.sess.ID != id:
		return fmt.Errorf("%w: tracker is bound to session %s", session.ErrConflict, t.sess.ID)
	}
	return nil
}

// RecordAnswer submits a choice for the step at the current index. The index
// advances only after the store acknowledged the answer; on the final step the
// answer is recorded and the index stays put until Complete.
func (t *Tracker) RecordAnswer(ctx context.Context, stepID string, choice session.Label) error {
	t.mu.Lock()
	if err := t.checkMutable(); err != nil {
		t.mu.Unlock()
		return err
	}

	idx, step := t.sess.StepByID(stepID)
	if step == nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: step %s in session %s", session.ErrNotFound, stepID, t.sess.ID)
	}
	if idx != t.index {
		t.mu.Unlock()
		return fmt.Errorf("%w: step %s is at index %d, current index is %d", session.ErrValidation, stepID, idx, t.index)
	}
	if !step.HasChoice(choice) {
		t.mu.Unlock()
		return fmt.Errorf("%w: step %s has no choice %q", session.ErrValidation, stepID, choice)
	}

	t.inflight = true
	id := t.sess.ID
	t.mu.Unlock()

	err := t.store.SubmitAnswer(ctx, id, stepID, choice)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.inflight = false
	if t.released {
		return err
	}
	if err != nil {
		t.logger.Warn("answer not accepted",
			append(logger.SessionFields(id, stepID), zap.Int(logger.FieldIndex, t.index), zap.Error(err))...)
		return err
	}

	step.Answer = choice
	if t.index < t.sess.Len()-1 {
		t.index++
		t.frontier = max(t.frontier, t.index)
		t.sess.CurrentIndex = t.index
	}

	t.logger.Debug("answer recorded",
		append(logger.SessionFields(id, stepID), zap.Int(logger.FieldIndex, t.index))...)

	return nil
}

// PersistPosition tells the store the given index without submitting an answer.
// A transient failure is retried up to the configured number of attempts.
func (t *Tracker) PersistPosition(ctx context.Context, index int) error {
	t.mu.Lock()
	if err := t.checkReady(); err != nil {
		t.mu.Unlock()
		return err
	}
	if !t.sess.InRange(index) {
		t.mu.Unlock()
		return fmt.Errorf("%w: index %d is outside [0, %d)", session.ErrValidation, index, t.sess.Len())
	}
	id := t.sess.ID
	t.mu.Unlock()

	for attempt := 1; ; attempt++ {
		err := t.store.PersistPosition(ctx, id, index)
		if err == nil {
			return nil
		}
		if !errors.Is(err, session.ErrTransientIO) || attempt >= t.positionAttempts {
			return err
		}

		t.logger.Warn("position not persisted, retrying",
			zap.String(logger.FieldSession, id),
			zap.Int(logger.FieldIndex, index),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if err := utils.WaitFor(ctx, utils.Backoff(t.backoff, maxBackoff, attempt)); err != nil {
			return err
		}
	}
}

// Complete freezes the session and returns the final snapshot from the store.
func (t *Tracker) Complete(ctx context.Context) (*session.Session, error) {
	t.mu.Lock()
	if err := t.checkMutable(); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.inflight = true
	id := t.sess.ID
	t.mu.Unlock()

	snapshot, err := t.store.Fetch(ctx, id)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.inflight = false
	if t.released {
		return nil, discarded(err)
	}
	if err != nil {
		return nil, err
	}

	snapshot.Completed = true
	snapshot.CurrentIndex = t.index
	t.sess = snapshot
	t.state = Completed

	t.logger.Info("session completed",
		zap.String(logger.FieldSession, id),
		zap.Int("answered", snapshot.Answered()),
		zap.Int("steps", snapshot.Len()),
	)

	return snapshot.Clone(), nil
}

// Back moves the displayed index one step back. The store is not contacted.
func (t *Tracker) Back() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkMutable(); err != nil {
		return err
	}
	if t.index == 0 {
		return fmt.Errorf("%w: already at the first step", session.ErrValidation)
	}

	t.index--
	t.sess.CurrentIndex = t.index
	return nil
}

// PersistOnExit sends the furthest confirmed index in the background and returns
// a channel closed once the attempt is over. Nothing is sent for a completed or
// released tracker, or while a submission is in flight.
func (t *Tracker) PersistOnExit(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	t.mu.Lock()
	if t.released || t.state != Ready || t.inflight {
		t.mu.Unlock()
		close(done)
		return done
	}
	id, index := t.sess.ID, t.frontier
	t.mu.Unlock()

	go func() {
		defer close(done)

		if t.journal != nil {
			if err := t.journal.Record(ctx, id, index); err != nil {
				t.logger.Warn("failed to journal exit position", zap.String(logger.FieldSession, id), zap.Error(err))
			}
		}

		if err := t.store.PersistPosition(ctx, id, index); err != nil {
			t.logger.Warn("exit position not delivered",
				zap.String(logger.FieldSession, id),
				zap.Int(logger.FieldIndex, index),
				zap.Error(err),
			)
			return
		}

		if t.journal != nil {
			if err := t.journal.Forget(ctx, id); err != nil {
				t.logger.Warn("failed to clear journaled position", zap.String(logger.FieldSession, id), zap.Error(err))
			}
		}
	}()

	return done
}

// Release tears the tracker down. Submissions still in flight complete but their
// outcome no longer changes the tracker.
func (t *Tracker) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.released = true
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Index is the displayed step index.
func (t *Tracker) Index() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index
}

// Frontier is the furthest index confirmed by the store.
func (t *Tracker) Frontier() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frontier
}

// Session returns a copy of the cached session, nil before a successful load.
func (t *Tracker) Session() *session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess.Clone()
}

// Current returns a copy of the step at the displayed index.
func (t *Tracker) Current() (*session.Step, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil || !t.sess.InRange(t.index) {
		return nil, false
	}

	cp := *t.sess.Steps[t.index]
	cp.Choices = append([]session.Choice(nil), cp.Choices...)
	return &cp, true
}

// IsLast reports whether the displayed step is the final one.
func (t *Tracker) IsLast() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess != nil && t.index == t.sess.Len()-1
}

var errReleased = fmt.Errorf("%w: tracker released", session.ErrConflict)

func (t *Tracker) checkReady() error {
	switch {
	case t.released:
		return errReleased
	case t.state == Completed:
		return fmt.Errorf("%w: session %s is completed", session.ErrConflict, t.sess.ID)
	case t.state == Loading:
		return fmt.Errorf("%w: session is loading", session.ErrBusy)
	case t.state != Ready:
		return fmt.Errorf("%w: session is %s", session.ErrConflict, t.state)
	}
	return nil
}

func (t *Tracker) checkMutable() error {
	if err := t.checkReady(); err != nil {
		return err
	}
	if t.inflight {
		return fmt.Errorf("%w: session %s", session.ErrBusy, t.sess.ID)
	}
	return nil
}

func discarded(err error) error {
	if err != nil {
		return err
	}
	return errReleased
}
