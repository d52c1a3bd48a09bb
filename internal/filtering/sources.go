package filtering

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/cv-coach/internal/session"
)

type sourcesFilter struct {
	sources map[string]bool
}

// NewSources keeps only the sessions started from one of the given CVs. An empty
// list disables the filter.
func NewSources(ids []string) Filter {
	f := &sourcesFilter{sources: make(map[string]bool)}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			f.sources[id] = true
		}
	}
	return f
}

func (f *sourcesFilter) Name() string { return "sources" }

func (f *sourcesFilter) IsEnabled() bool { return len(f.sources) > 0 }

func (f *sourcesFilter) Apply(_ context.Context, sessions []*session.Session) ([]*session.Session, Step, error) {
	out, step := keep(sessions, func(s *session.Session) bool {
		return f.sources[s.SourceID]
	})
	return out, step, nil
}

func (f *sourcesFilter) Status() Status {
	ids := make([]string, 0, len(f.sources))
	for id := range f.sources {
		ids = append(ids, id)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: map[string]string{"sources": strings.Join(ids, ",")}}
}

const (
	StatusAll        = "all"
	StatusCompleted  = "completed"
	StatusInProgress = "in-progress"
)

type statusFilter struct {
	status string
}

// NewStatus keeps sessions by completion state: all, completed or in-progress.
func NewStatus(status string) (Filter, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "":
		status = StatusAll
	case StatusAll, StatusCompleted, StatusInProgress:
	default:
		return nil, fmt.Errorf("%w: unknown status %q, want all, completed or in-progress", session.ErrValidation, status)
	}
	return &statusFilter{status: status}, nil
}

func (f *statusFilter) Name() string { return "status" }

func (f *statusFilter) IsEnabled() bool { return f.status != StatusAll }

func (f *statusFilter) Apply(_ context.Context, sessions []*session.Session) ([]*session.Session, Step, error) {
	wantCompleted := f.status == StatusCompleted
	out, step := keep(sessions, func(s *session.Session) bool {
		return s.Completed == wantCompleted
	})
	return out, step, nil
}

func (f *statusFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: map[string]string{"status": f.status}}
}
