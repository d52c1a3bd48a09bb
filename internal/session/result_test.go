package session

import "testing"

func newStep(id string, answer, correct Label) *Step {
	return &Step{
		ID:     id,
		Prompt: "question " + id,
		Choices: []Choice{
			{Label: LabelA, Text: "alpha"},
			{Label: LabelB, Text: "beta"},
		},
		Answer:  answer,
		Correct: correct,
	}
}

func TestSummarizeDerivesScore(t *testing.T) {
	s := &Session{
		ID: "1",
		Steps: []*Step{
			newStep("1", LabelA, LabelA),
			newStep("2", LabelB, LabelA),
			newStep("3", "", LabelB),
		},
	}

	r := Summarize(s)

	if r.Total != 3 || r.Answered != 2 || r.Correct != 1 {
		t.Fatalf("unexpected counters: %+v", r)
	}
	if r.Score != 33.33 {
		t.Fatalf("expected score 33.33, got %v", r.Score)
	}
	if !r.Items[0].IsCorrect || r.Items[1].IsCorrect {
		t.Fatalf("unexpected correctness: %+v", r.Items)
	}
	if r.Items[1].CorrectText != "alpha" || r.Items[1].AnswerText != "beta" {
		t.Fatalf("unexpected texts: %+v", r.Items[1])
	}
}

func TestSummarizePrefersStoreScore(t *testing.T) {
	score := 90.0
	s := &Session{
		ID:             "1",
		Score:          &score,
		CorrectAnswers: 9,
		Steps:          []*Step{newStep("1", LabelA, LabelB)},
	}

	r := Summarize(s)
	if r.Score != 90 || r.Correct != 9 {
		t.Fatalf("expected store values, got %+v", r)
	}
}

func TestGrade(t *testing.T) {
	tests := map[float64]string{95: "good", 70: "good", 55: "fair", 10: "poor"}
	for score, want := range tests {
		if got := Grade(score); got != want {
			t.Fatalf("Grade(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	score := 1.0
	s := &Session{ID: "1", Score: &score, Steps: []*Step{newStep("1", "", "")}}

	cp := s.Clone()
	cp.Steps[0].Answer = LabelA
	*cp.Score = 2

	if s.Steps[0].Answered() || *s.Score != 1 {
		t.Fatalf("clone shares state with the original")
	}
}
