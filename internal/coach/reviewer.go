// Package coach turns a finished interview into study feedback using Gemini.
package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/cv-coach/internal/logger"
	"github.com/spigell/cv-coach/internal/session"
	"github.com/spigell/cv-coach/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Feedback is the coach's review of a finished session.
type Feedback struct {
	Summary   string   `json:"summary" yaml:"summary"`
	Strengths []string `json:"strengths,omitempty" yaml:"strengths,omitempty"`
	Study     []string `json:"study,omitempty" yaml:"study,omitempty"`
	Raw       string   `json:"-" yaml:"-"`
}

type Reviewer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewReviewer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Reviewer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reviewer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

type reviewQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Correct  string `json:"correct_answer,omitempty"`
	Right    bool   `json:"answered_correctly"`
}

// Review asks the model for feedback on a completed session.
func (r *Reviewer) Review(ctx context.Context, s *session.Session) (*Feedback, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: session is required", session.ErrValidation)
	}
	if !s.Completed {
		return nil, fmt.Errorf("%w: session %s is not completed", session.ErrConflict, s.ID)
	}

	result := session.Summarize(s)
	payload := map[string]any{
		"score_percent":   result.Score,
		"correct_answers": result.Correct,
		"total_questions": result.Total,
		"questions":       reviewQuestions(s),
	}

	resultJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result payload: %w", err)
	}

	prompt := buildPrompt(string(resultJSON))
	log := logger.WithSession(r.logger, s.ID)

	log.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	feedback, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	feedback.Raw = raw
	return feedback, nil
}

func reviewQuestions(s *session.Session) []reviewQuestion {
	out := make([]reviewQuestion, 0, s.Len())
	for _, step := range s.Steps {
		out = append(out, reviewQuestion{
			Question: step.Prompt,
			Answer:   step.ChoiceText(step.Answer),
			Correct:  step.ChoiceText(step.Correct),
			Right:    step.IsCorrect(),
		})
	}
	return out
}

func buildPrompt(resultJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Result:\n{{RESULT_JSON}}\n\nJSON Response:"
	}
	return strings.ReplaceAll(template, "{{RESULT_JSON}}", resultJSON)
}

func parseResponse(raw string) (*Feedback, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	feedback := &Feedback{
		Summary:   coerceString(data["summary"]),
		Strengths: coerceStrings(data["strengths"]),
		Study:     coerceStrings(data["study"]),
	}
	if feedback.Summary == "" && len(feedback.Study) == 0 && len(feedback.Strengths) == 0 {
		return nil, fmt.Errorf("parse gemini response: no feedback fields in %q", utils.TruncateForLog(cleaned, 80))
	}

	return feedback, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return nil
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
