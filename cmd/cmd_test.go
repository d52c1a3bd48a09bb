package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/cv-coach/internal/coach"
	"github.com/spigell/cv-coach/internal/filtering"
	"github.com/spigell/cv-coach/internal/session"
)

func finished() *session.Session {
	score := 50.0
	return &session.Session{
		ID:        "42",
		SourceID:  "7",
		Completed: true,
		Score:     &score,
		Steps: []*session.Step{
			{
				ID:      "1",
				Prompt:  "First?",
				Choices: []session.Choice{{Label: session.LabelA, Text: "yes"}, {Label: session.LabelB, Text: "no"}},
				Answer:  session.LabelA,
				Correct: session.LabelA,
			},
			{
				ID:      "2",
				Prompt:  "Second?",
				Choices: []session.Choice{{Label: session.LabelA, Text: "yes"}, {Label: session.LabelB, Text: "no"}},
				Answer:  session.LabelB,
				Correct: session.LabelA,
			},
		},
	}
}

func TestRenderResultText(t *testing.T) {
	view := newResultView(finished())
	view.Coach = &coach.Feedback{Summary: "Keep going.", Study: []string{"second topic"}}

	var buf bytes.Buffer
	if err := renderResult(&buf, outputText, view); err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Interview 42 (CV 7)",
		"Score: 50.00% (fair), 1 of 2 correct",
		" 1. [+] First?",
		" 2. [-] Second?",
		"your answer: B) no",
		"correct:     A) yes",
		"Keep going.",
		"  - second topic",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output is missing %q:\n%s", want, out)
		}
	}
}

func TestRenderResultInProgress(t *testing.T) {
	s := finished()
	s.Completed = false
	s.Score = nil
	s.Steps[1].Answer = ""

	var buf bytes.Buffer
	if err := renderResult(&buf, outputText, newResultView(s)); err != nil {
		t.Fatalf("render: %v", err)
	}

	if !strings.Contains(buf.String(), "In progress: 1 of 2 answered") || !strings.Contains(buf.String(), "not answered") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestRenderResultStructured(t *testing.T) {
	view := newResultView(finished())

	var js bytes.Buffer
	if err := renderResult(&js, outputJSON, view); err != nil {
		t.Fatalf("render json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["session_id"] != "42" || decoded["grade"] != "fair" || decoded["correct"] != float64(1) {
		t.Fatalf("unexpected json: %s", js.String())
	}

	var ym bytes.Buffer
	if err := renderResult(&ym, outputYAML, view); err != nil {
		t.Fatalf("render yaml: %v", err)
	}
	var fromYAML map[string]any
	if err := yaml.Unmarshal(ym.Bytes(), &fromYAML); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if fromYAML["session_id"] != "42" || fromYAML["completed"] != true {
		t.Fatalf("unexpected yaml:\n%s", ym.String())
	}
}

func TestCheckOutput(t *testing.T) {
	for _, format := range []string{outputText, outputJSON, outputYAML} {
		if err := checkOutput(format); err != nil {
			t.Fatalf("%s: %v", format, err)
		}
	}
	if err := checkOutput("xml"); !errors.Is(err, session.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderList(t *testing.T) {
	inProgress := &session.Session{
		ID:           "1",
		SourceID:     "7",
		CurrentIndex: 2,
		Steps:        finished().Steps,
		StartedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	inProgress.Steps = append(inProgress.Steps, &session.Step{ID: "3", Choices: inProgress.Steps[0].Choices})
	inProgress.CurrentIndex = 2

	rows := newListRows([]*session.Session{inProgress, finished()}, map[string]*session.Source{
		"7": {ID: "7", FileName: "john.pdf"},
	})

	var buf bytes.Buffer
	if err := renderList(&buf, outputText, rows); err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"ID", "john.pdf", "question 3/3", "completed", "2/2 answered", "50%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output is missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := renderList(&buf, outputText, nil); err != nil {
		t.Fatalf("render empty: %v", err)
	}
	if !strings.Contains(buf.String(), "No interviews yet") {
		t.Fatalf("unexpected empty output: %q", buf.String())
	}
}

type fakeSources struct {
	calls atomic.Int32
	errs  map[string]error
}

func (f *fakeSources) Source(_ context.Context, id string) (*session.Source, error) {
	f.calls.Add(1)
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return &session.Source{ID: id, FileName: "cv-" + id + ".pdf"}, nil
}

func TestLookupSources(t *testing.T) {
	sessions := []*session.Session{
		{ID: "1", SourceID: "a"},
		{ID: "2", SourceID: "a"},
		{ID: "3", SourceID: "b"},
		{ID: "4", SourceID: "gone"},
		{ID: "5"},
	}

	f := &fakeSources{errs: map[string]error{"gone": fmt.Errorf("%w: no cv", session.ErrNotFound)}}

	sources, err := lookupSources(context.Background(), f, sessions, zap.NewNop())
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got := f.calls.Load(); got != 3 {
		t.Fatalf("source calls = %d, want one per distinct cv", got)
	}
	if len(sources) != 2 || sources["a"].FileName != "cv-a.pdf" {
		t.Fatalf("unexpected sources: %v", sources)
	}
}

func TestLookupSourcesUnauthorized(t *testing.T) {
	sessions := []*session.Session{{ID: "1", SourceID: "a"}}
	f := &fakeSources{errs: map[string]error{"a": session.ErrUnauthorized}}

	if _, err := lookupSources(context.Background(), f, sessions, zap.NewNop()); !errors.Is(err, session.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestParseIndex(t *testing.T) {
	if idx, err := parseIndex(0); err != nil || idx != nil {
		t.Fatalf("zero must mean unset, got %v, %v", idx, err)
	}
	if idx, err := parseIndex(3); err != nil || *idx != 2 {
		t.Fatalf("question 3 must map to index 2, got %v, %v", idx, err)
	}
	if _, err := parseIndex(-1); !errors.Is(err, session.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRetrySettings(t *testing.T) {
	got := retrySettings(&Config{})
	if got.AnswerAttempts != 3 || got.PositionAttempts != 2 || got.Backoff != 500*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", got)
	}

	got = retrySettings(&Config{Retry: &RetryConfig{PositionAttempts: 5}})
	if got.PositionAttempts != 5 || got.AnswerAttempts != 3 {
		t.Fatalf("unexpected merge: %+v", got)
	}
}

func TestListFilters(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("status", "completed", "")
	cmd.Flags().StringSlice("cv", []string{"7"}, "")

	steps, err := listFilters(cmd)
	if err != nil {
		t.Fatalf("filters: %v", err)
	}

	sessions := []*session.Session{
		finished(),
		{ID: "43", SourceID: "7"},
		{ID: "44", SourceID: "8", Completed: true},
	}
	got, err := filtering.Run(context.Background(), zap.NewNop(), steps, sessions)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 1 || got[0].ID != "42" {
		t.Fatalf("unexpected sessions after filtering: %d", len(got))
	}

	bad := &cobra.Command{}
	bad.Flags().String("status", "archived", "")
	bad.Flags().StringSlice("cv", nil, "")
	if _, err := listFilters(bad); !errors.Is(err, session.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildVersion(t *testing.T) {
	old := version
	t.Cleanup(func() { version = old })

	version = "v1.2.3"
	if got := buildVersion(); got != "v1.2.3" {
		t.Fatalf("buildVersion() = %q", got)
	}

	version = ""
	if got := buildVersion(); got == "" {
		t.Fatal("buildVersion() must never be empty")
	}
}

func TestCoachSkipReason(t *testing.T) {
	if reason := coachSkipReason(finished()); reason != "" {
		t.Fatalf("finished interview without feedback must be reviewed, got %q", reason)
	}

	withFeedback := finished()
	withFeedback.Feedback = "Revise goroutines."
	if reason := coachSkipReason(withFeedback); !strings.Contains(reason, "already has feedback") {
		t.Fatalf("unexpected reason: %q", reason)
	}

	if reason := coachSkipReason(&session.Session{ID: "1"}); !strings.Contains(reason, "not completed") {
		t.Fatalf("unexpected reason: %q", reason)
	}
}
