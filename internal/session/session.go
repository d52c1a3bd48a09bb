package session

import (
	"fmt"
	"strings"
	"time"
)

// Label identifies one of the fixed choices of a step.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
	LabelC Label = "C"
	LabelD Label = "D"
)

// Labels is the label alphabet in display order.
var Labels = []Label{LabelA, LabelB, LabelC, LabelD}

// ParseLabel accepts a label in any case and surrounding whitespace.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Labels {
		if l == known {
			return l, nil
		}
	}

	return "", fmt.Errorf("%w: unknown choice label %q", ErrValidation, s)
}

type Choice struct {
	Label Label
	Text  string
}

// Step is one question of a session.
type Step struct {
	ID      string
	Prompt  string
	Choices []Choice
	// Answer is empty until the user has recorded a choice.
	Answer Label
	// Correct is only known once the store reveals it.
	Correct Label
}

func (s *Step) HasChoice(l Label) bool {
	for _, c := range s.Choices {
		if c.Label == l {
			return true
		}
	}
	return false
}

func (s *Step) ChoiceText(l Label) string {
	for _, c := range s.Choices {
		if c.Label == l {
			return c.Text
		}
	}
	return ""
}

func (s *Step) Answered() bool { return s.Answer != "" }

// IsCorrect reports whether the recorded answer matches the correct choice.
// It is false while either side is unknown.
func (s *Step) IsCorrect() bool {
	return s.Answer != "" && s.Correct != "" && s.Answer == s.Correct
}

// Session is the client-side copy of a remote interview.
type Session struct {
	ID           string
	SourceID     string
	Steps        []*Step
	CurrentIndex int
	Completed    bool
	// Score is nil until the store has scored the session.
	Score          *float64
	CorrectAnswers int
	Feedback       string
	StartedAt      time.Time
}

func (s *Session) Len() int {
	return len(s.Steps)
}

// StepByID returns the step with the given id and its position, or -1 and nil.
func (s *Session) StepByID(id string) (int, *Step) {
	for idx, step := range s.Steps {
		if step.ID == id {
			return idx, step
		}
	}
	return -1, nil
}

// Answered counts the steps with a recorded answer.
func (s *Session) Answered() int {
	n := 0
	for _, step := range s.Steps {
		if step.Answered() {
			n++
		}
	}
	return n
}

// InRange reports whether idx addresses a step of the session.
func (s *Session) InRange(idx int) bool {
	return idx >= 0 && idx < len(s.Steps)
}

// Clone returns a deep copy so callers cannot mutate tracker-owned state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	out := *s
	if s.Score != nil {
		score := *s.Score
		out.Score = &score
	}

	out.Steps = make([]*Step, 0, len(s.Steps))
	for _, step := range s.Steps {
		cp := *step
		cp.Choices = append([]Choice(nil), step.Choices...)
		out.Steps = append(out.Steps, &cp)
	}

	return &out
}
