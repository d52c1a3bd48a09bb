package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/cv-coach/internal/session"
)

// Filter represents a single filtering step applied to a list of sessions.
type Filter interface {
	Name() string
	IsEnabled() bool

	Apply(ctx context.Context, sessions []*session.Session) ([]*session.Session, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Run executes the supplied filters sequentially and returns the sessions left.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, sessions []*session.Session) ([]*session.Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, sessions)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		sessions = next
	}

	return sessions, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the sessions accepted by pred along with the step summary.
func keep(sessions []*session.Session, pred func(*session.Session) bool) ([]*session.Session, Step) {
	out := make([]*session.Session, 0, len(sessions))
	for _, s := range sessions {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out, Step{Initial: len(sessions), Dropped: len(sessions) - len(out), Left: len(out)}
}
