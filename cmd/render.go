package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spigell/cv-coach/internal/coach"
	"github.com/spigell/cv-coach/internal/session"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

type resultView struct {
	session.Result `yaml:",inline"`
	Completed      bool            `json:"completed" yaml:"completed"`
	Grade          string          `json:"grade" yaml:"grade"`
	Coach          *coach.Feedback `json:"coach,omitempty" yaml:"coach,omitempty"`
}

type listRow struct {
	ID        string   `json:"id" yaml:"id"`
	SourceID  string   `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	CV        string   `json:"cv,omitempty" yaml:"cv,omitempty"`
	Answered  int      `json:"answered" yaml:"answered"`
	Total     int      `json:"total" yaml:"total"`
	Question  int      `json:"question" yaml:"question"`
	Completed bool     `json:"completed" yaml:"completed"`
	Score     *float64 `json:"score,omitempty" yaml:"score,omitempty"`
	StartedAt string   `json:"started_at,omitempty" yaml:"started_at,omitempty"`
}

func newResultView(s *session.Session) *resultView {
	r := session.Summarize(s)
	return &resultView{
		Result:    *r,
		Completed: s.Completed,
		Grade:     session.Grade(r.Score),
	}
}

func newListRows(sessions []*session.Session, sources map[string]*session.Source) []listRow {
	rows := make([]listRow, 0, len(sessions))
	for _, s := range sessions {
		row := listRow{
			ID:        s.ID,
			SourceID:  s.SourceID,
			Answered:  s.Answered(),
			Total:     s.Len(),
			Question:  s.CurrentIndex + 1,
			Completed: s.Completed,
			Score:     s.Score,
		}
		if src, ok := sources[s.SourceID]; ok && src != nil {
			row.CV = src.FileName
		}
		if !s.StartedAt.IsZero() {
			row.StartedAt = s.StartedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, row)
	}
	return rows
}

func checkOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("%w: unknown output format %q, want text, json or yaml", session.ErrValidation, format)
	}
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return checkOutput(format)
	}
}

func renderResult(w io.Writer, format string, v *resultView) error {
	if format != outputText {
		return encode(w, format, v)
	}

	fmt.Fprintf(w, "Interview %s", v.SessionID)
	if v.SourceID != "" {
		fmt.Fprintf(w, " (CV %s)", v.SourceID)
	}
	fmt.Fprintln(w)

	if !v.Completed {
		fmt.Fprintf(w, "In progress: %d of %d answered\n", v.Answered, v.Total)
	} else {
		fmt.Fprintf(w, "Score: %.2f%% (%s), %d of %d correct\n", v.Score, v.Grade, v.Correct, v.Total)
	}
	fmt.Fprintln(w)

	for _, item := range v.Items {
		mark := " "
		switch {
		case item.IsCorrect:
			mark = "+"
		case item.Answer != "" && item.Correct != "":
			mark = "-"
		}

		fmt.Fprintf(w, "%2d. [%s] %s\n", item.Number, mark, item.Prompt)
		if item.Answer != "" {
			fmt.Fprintf(w, "      your answer: %s) %s\n", item.Answer, item.AnswerText)
		} else {
			fmt.Fprintln(w, "      not answered")
		}
		if item.Correct != "" && !item.IsCorrect {
			fmt.Fprintf(w, "      correct:     %s) %s\n", item.Correct, item.CorrectText)
		}
	}

	if v.Feedback != "" {
		fmt.Fprintf(w, "\nFeedback:\n%s\n", v.Feedback)
	}

	if v.Coach != nil {
		fmt.Fprintf(w, "\nCoach:\n%s\n", v.Coach.Summary)
		writeBullets(w, "Strengths", v.Coach.Strengths)
		writeBullets(w, "Study next", v.Coach.Study)
	}

	return nil
}

func writeBullets(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func renderList(w io.Writer, format string, rows []listRow) error {
	if format != outputText {
		return encode(w, format, rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No interviews yet. Start one with the start command.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCV\tSTATUS\tPROGRESS\tSCORE\tSTARTED")
	for _, r := range rows {
		cv := r.CV
		if cv == "" {
			cv = r.SourceID
		}

		status, progress := "in progress", fmt.Sprintf("question %d/%d", r.Question, r.Total)
		if r.Completed {
			status, progress = "completed", fmt.Sprintf("%d/%d answered", r.Answered, r.Total)
		}

		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.0f%%", *r.Score)
		}

		fmt.Fprintln(tw, strings.Join([]string{r.ID, dash(cv), status, progress, score, dash(r.StartedAt)}, "\t"))
	}

	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
