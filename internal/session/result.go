package session

import "math"

// Result is the read-only view of a finished session.
type Result struct {
	SessionID string       `json:"session_id" yaml:"session_id"`
	SourceID  string       `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	Total     int          `json:"total" yaml:"total"`
	Answered  int          `json:"answered" yaml:"answered"`
	Correct   int          `json:"correct" yaml:"correct"`
	Score     float64      `json:"score" yaml:"score"`
	Feedback  string       `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Items     []ResultItem `json:"items" yaml:"items"`
}

type ResultItem struct {
	Number      int    `json:"number" yaml:"number"`
	Prompt      string `json:"prompt" yaml:"prompt"`
	Answer      Label  `json:"answer,omitempty" yaml:"answer,omitempty"`
	AnswerText  string `json:"answer_text,omitempty" yaml:"answer_text,omitempty"`
	Correct     Label  `json:"correct,omitempty" yaml:"correct,omitempty"`
	CorrectText string `json:"correct_text,omitempty" yaml:"correct_text,omitempty"`
	IsCorrect   bool   `json:"is_correct" yaml:"is_correct"`
}

// Summarize builds the results view from a session snapshot. The store's score
// and correct count win when present; otherwise both are derived from the steps.
func Summarize(s *Session) *Result {
	r := &Result{
		SessionID: s.ID,
		SourceID:  s.SourceID,
		Total:     s.Len(),
		Feedback:  s.Feedback,
		Items:     make([]ResultItem, 0, s.Len()),
	}

	derived := 0
	for idx, step := range s.Steps {
		if step.Answered() {
			r.Answered++
		}
		if step.IsCorrect() {
			derived++
		}
		r.Items = append(r.Items, ResultItem{
			Number:      idx + 1,
			Prompt:      step.Prompt,
			Answer:      step.Answer,
			AnswerText:  step.ChoiceText(step.Answer),
			Correct:     step.Correct,
			CorrectText: step.ChoiceText(step.Correct),
			IsCorrect:   step.IsCorrect(),
		})
	}

	r.Correct = derived
	if s.CorrectAnswers > 0 {
		r.Correct = s.CorrectAnswers
	}

	switch {
	case s.Score != nil:
		r.Score = *s.Score
	case r.Total > 0:
		r.Score = math.Round(float64(r.Correct)/float64(r.Total)*10000) / 100
	}

	return r
}

// Grade buckets a percentage score the way the results page colours it.
func Grade(score float64) string {
	switch {
	case score >= 70:
		return "good"
	case score >= 50:
		return "fair"
	default:
		return "poor"
	}
}
