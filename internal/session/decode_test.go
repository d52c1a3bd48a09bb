package session

import (
	"encoding/json"
	"errors"
	"testing"
)

func mustJSON(t *testing.T, s string) any {
	t.Helper()

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return v
}

const interviewFixture = `{
  "id": 42,
  "cv": 7,
  "started_at": "2024-05-01T10:00:00.123456Z",
  "completed": false,
  "score": 0.0,
  "current_question_index": 1,
  "questions": [
    {"id": 100, "question_text": "What is a goroutine?", "choice_1": "A thread", "choice_2": "A lightweight thread", "choice_3": "A process", "choice_4": "A fiber", "user_answer": "B", "correct_answer": "B"},
    {"id": 101, "question_text": "What does defer do?", "choice_1": "Delays", "choice_2": "Schedules a call", "choice_3": "Panics", "choice_4": "Nothing", "user_answer": null, "correct_answer": "Schedules a call"}
  ]
}`

func TestDecodeInterviewShape(t *testing.T) {
	s, err := Decode(mustJSON(t, interviewFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.ID != "42" || s.SourceID != "7" {
		t.Fatalf("unexpected ids: %q %q", s.ID, s.SourceID)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 steps, got %d", s.Len())
	}
	if s.CurrentIndex != 1 {
		t.Fatalf("expected index 1, got %d", s.CurrentIndex)
	}
	if s.Score != nil {
		t.Fatalf("expected nil score for incomplete session, got %v", *s.Score)
	}
	if s.StartedAt.IsZero() {
		t.Fatalf("expected started_at to be parsed")
	}

	first := s.Steps[0]
	if first.ID != "100" || first.Prompt != "What is a goroutine?" {
		t.Fatalf("unexpected first step: %+v", first)
	}
	if len(first.Choices) != 4 || first.Choices[1].Label != LabelB || first.Choices[1].Text != "A lightweight thread" {
		t.Fatalf("unexpected choices: %+v", first.Choices)
	}
	if first.Answer != LabelB {
		t.Fatalf("expected answer B, got %q", first.Answer)
	}

	second := s.Steps[1]
	if second.Answered() {
		t.Fatalf("expected second step to be unanswered")
	}
	if second.Correct != LabelB {
		t.Fatalf("expected correct answer resolved from text to B, got %q", second.Correct)
	}
}

func TestDecodeChoicesMapAndEnvelope(t *testing.T) {
	raw := mustJSON(t, `{"session": {"id": "s-1", "source_id": "cv-9", "completed": true, "score": "66.5",
		"steps": [{"id": "a", "prompt": "Pick", "choices": {"a": "one", "b": "two", "x": "ignored"}, "user_answer": "a"}]}}`)

	s, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.ID != "s-1" || s.SourceID != "cv-9" {
		t.Fatalf("unexpected ids: %+v", s)
	}
	if s.Score == nil || *s.Score != 66.5 {
		t.Fatalf("expected score 66.5, got %v", s.Score)
	}
	step := s.Steps[0]
	if len(step.Choices) != 2 || step.Choices[0].Label != LabelA {
		t.Fatalf("unexpected choices: %+v", step.Choices)
	}
	if step.Answer != LabelA {
		t.Fatalf("expected answer A, got %q", step.Answer)
	}
}

func TestDecodeClampsStoredIndex(t *testing.T) {
	tests := []struct {
		name   string
		index  string
		expect int
	}{
		{name: "negative", index: "-3", expect: 0},
		{name: "past the end", index: "9", expect: 1},
		{name: "in range", index: "1", expect: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := mustJSON(t, `{"id": 1, "current_question_index": `+tt.index+`, "questions": [
				{"id": 1, "question_text": "q1", "choice_1": "x", "choice_2": "y"},
				{"id": 2, "question_text": "q2", "choice_1": "x", "choice_2": "y"}]}`)

			s, err := Decode(raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.CurrentIndex != tt.expect {
				t.Fatalf("expected %d, got %d", tt.expect, s.CurrentIndex)
			}
		})
	}
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not an object", raw: `[1, 2]`},
		{name: "missing id", raw: `{"questions": []}`},
		{name: "step without choices", raw: `{"id": 1, "questions": [{"id": 1, "question_text": "q"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(mustJSON(t, tt.raw))
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDecodeListShapes(t *testing.T) {
	item := `{"id": 1, "questions": []}`
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "bare array", raw: `[` + item + `,` + item + `]`, want: 2},
		{name: "results", raw: `{"count": 1, "results": [` + item + `]}`, want: 1},
		{name: "interviews", raw: `{"interviews": [` + item + `]}`, want: 1},
		{name: "data", raw: `{"data": []}`, want: 0},
		{name: "null", raw: `null`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := DecodeList(mustJSON(t, tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(list) != tt.want {
				t.Fatalf("expected %d sessions, got %d", tt.want, len(list))
			}
		})
	}

	if _, err := DecodeList(mustJSON(t, `{"items": []}`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown list key, got %v", err)
	}
}

func TestDecodeID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: `{"id": 12}`, want: "12"},
		{raw: `{"interview_id": "abc"}`, want: "abc"},
		{raw: `{"interview": {"id": 5, "questions": []}}`, want: "5"},
	}

	for _, tt := range tests {
		got, err := DecodeID(mustJSON(t, tt.raw))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("%s: expected %q, got %q", tt.raw, tt.want, got)
		}
	}

	if _, err := DecodeID(mustJSON(t, `{"detail": "ok"}`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeSource(t *testing.T) {
	src, err := DecodeSource(mustJSON(t, `{"id": 7, "file": "/media/cv_files/jane_doe.pdf", "analysis": {"ai_score": 81.5}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if src.ID != "7" || src.FileName != "jane_doe.pdf" {
		t.Fatalf("unexpected source: %+v", src)
	}
	if !src.Analyzed || src.Score == nil || *src.Score != 81.5 {
		t.Fatalf("unexpected analysis: %+v", src)
	}
}

func TestParseLabel(t *testing.T) {
	if l, err := ParseLabel(" c "); err != nil || l != LabelC {
		t.Fatalf("expected C, got %q (%v)", l, err)
	}
	if _, err := ParseLabel("E"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
