// Package stepper walks the user through the steps of a tracked session.
package stepper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-coach/internal/logger"
	"github.com/spigell/cv-coach/internal/session"
	"github.com/spigell/cv-coach/internal/utils"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
	maxBackoff      = 5 * time.Second
)

// Tracker is the progress tracker surface the stepper drives.
type Tracker interface {
	Current() (*session.Step, bool)
	Index() int
	Frontier() int
	IsLast() bool
	RecordAnswer(ctx context.Context, stepID string, choice session.Label) error
	PersistPosition(ctx context.Context, index int) error
	Complete(ctx context.Context) (*session.Session, error)
	Back() error
}

type Action int

const (
	ActionAnswer Action = iota
	ActionBack
	ActionQuit
)

type Decision struct {
	Action Action
	Choice session.Label
}

// View is what a Chooser renders for one step.
type View struct {
	Step      *session.Step
	Index     int
	Total     int
	CanGoBack bool
	Last      bool
}

// Chooser asks the user what to do with the displayed step.
type Chooser interface {
	Choose(ctx context.Context, view View) (Decision, error)
}

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeQuit
)

type Result struct {
	Outcome Outcome
	// Final is the completed session snapshot, nil when the user quit.
	Final *session.Session
}

type Stepper struct {
	tracker Tracker
	chooser Chooser
	logger  *zap.Logger
	total   int

	attempts int
	backoff  time.Duration
}

type Option func(*Stepper)

// WithRetry bounds the attempts made for a retryable submission failure.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Stepper) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

func New(t Tracker, c Chooser, total int, log *zap.Logger, opts ...Option) *Stepper {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Stepper{
		tracker:  t,
		chooser:  c,
		logger:   log,
		total:    total,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run renders steps until the session is completed or the user quits.
func (s *Stepper) Run(ctx context.Context) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step, ok := s.tracker.Current()
		if !ok {
			return nil, fmt.Errorf("%w: no step to display", session.ErrConflict)
		}

		index := s.tracker.Index()
		decision, err := s.chooser.Choose(ctx, View{
			Step:      step,
			Index:     index,
			Total:     s.total,
			CanGoBack: index > 0,
			Last:      s.tracker.IsLast(),
		})
		if err != nil {
			return nil, err
		}

		switch decision.Action {
		case ActionQuit:
			s.persist(ctx)
			return &Result{Outcome: OutcomeQuit}, nil

		case ActionBack:
			if err := s.tracker.Back(); err != nil {
				if !errors.Is(err, session.ErrValidation) {
					return nil, err
				}
				s.logger.Debug("cannot go back", zap.Error(err))
			}

		case ActionAnswer:
			if decision.Choice == "" {
				s.logger.Warn("choose an answer first", logger.SessionFields("", step.ID)...)
				continue
			}

			last := s.tracker.IsLast()
			if err := s.submit(ctx, step.ID, decision.Choice); err != nil {
				if errors.Is(err, session.ErrValidation) {
					s.logger.Warn("answer rejected", zap.String(logger.FieldStep, step.ID), zap.Error(err))
					continue
				}
				return nil, err
			}

			if last {
				final, err := s.complete(ctx)
				if err != nil {
					return nil, err
				}
				return &Result{Outcome: OutcomeCompleted, Final: final}, nil
			}

			s.persist(ctx)

		default:
			return nil, fmt.Errorf("%w: unknown action %d", session.ErrValidation, decision.Action)
		}
	}
}

func (s *Stepper) submit(ctx context.Context, stepID string, choice session.Label) error {
	return s.retry(ctx, "answer", func() error {
		return s.tracker.RecordAnswer(ctx, stepID, choice)
	})
}

func (s *Stepper) complete(ctx context.Context) (*session.Session, error) {
	var final *session.Session
	err := s.retry(ctx, "complete", func() error {
		var err error
		final, err = s.tracker.Complete(ctx)
		return err
	})
	return final, err
}

func (s *Stepper) retry(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !session.Retryable(err) || attempt >= s.attempts {
			return err
		}

		s.logger.Warn("retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if err := utils.WaitFor(ctx, utils.Backoff(s.backoff, maxBackoff, attempt)); err != nil {
			return err
		}
	}
}

// persist stores the furthest confirmed position. Failures are logged only.
func (s *Stepper) persist(ctx context.Context) {
	index := s.tracker.Frontier()
	if err := s.tracker.PersistPosition(ctx, index); err != nil {
		s.logger.Warn("position not persisted", zap.Int(logger.FieldIndex, index), zap.Error(err))
	}
}
