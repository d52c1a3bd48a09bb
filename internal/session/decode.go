package session

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// The store is not consistent about its payload shapes: ids arrive as numbers or
// strings, lists may be bare arrays or nested under one of several keys, and
// choices come either as choice_1..choice_4 or as a label map. Everything below
// maps those shapes to the typed model in one place.

var listKeys = []string{"results", "interviews", "sessions", "data"}

var envelopeKeys = []string{"interview", "session", "data"}

type wireSession struct {
	ID             string     `json:"id"`
	CV             string     `json:"cv"`
	SourceID       string     `json:"source_id"`
	Questions      []wireStep `json:"questions"`
	Steps          []wireStep `json:"steps"`
	CurrentIndex   int        `json:"current_question_index"`
	Completed      bool       `json:"completed"`
	Score          *float64   `json:"score"`
	CorrectAnswers int        `json:"correct_answers"`
	Feedback       string     `json:"ai_feedback"`
	StartedAt      string     `json:"started_at"`
}

type wireStep struct {
	ID            string            `json:"id"`
	QuestionText  string            `json:"question_text"`
	Prompt        string            `json:"prompt"`
	Choice1       string            `json:"choice_1"`
	Choice2       string            `json:"choice_2"`
	Choice3       string            `json:"choice_3"`
	Choice4       string            `json:"choice_4"`
	Choices       map[string]string `json:"choices"`
	UserAnswer    string            `json:"user_answer"`
	CorrectAnswer string            `json:"correct_answer"`
}

type wireID struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	InterviewID string `json:"interview_id"`
}

type wireSource struct {
	ID         string         `json:"id"`
	File       string         `json:"file"`
	UploadedAt string         `json:"uploaded_at"`
	Analysis   map[string]any `json:"analysis"`
}

// Source is the analysed artifact (a CV) a session was started from.
type Source struct {
	ID         string
	FileName   string
	UploadedAt time.Time
	Analyzed   bool
	Score      *float64
}

// Decode maps a single session payload to a Session.
func Decode(raw any) (*Session, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: session payload is %T, want object", ErrValidation, raw)
	}

	obj = unwrapEnvelope(obj)

	var w wireSession
	if err := decodeWeak(obj, &w); err != nil {
		return nil, fmt.Errorf("%w: decode session: %v", ErrValidation, err)
	}

	return w.toSession()
}

// DecodeList maps a list payload to sessions. Bare arrays and arrays nested under
// results, interviews, sessions or data are accepted.
func DecodeList(raw any) ([]*Session, error) {
	items, err := extractList(raw)
	if err != nil {
		return nil, err
	}

	sessions := make([]*Session, 0, len(items))
	for idx, item := range items {
		s, err := Decode(item)
		if err != nil {
			return nil, fmt.Errorf("session #%d: %w", idx, err)
		}
		sessions = append(sessions, s)
	}

	return sessions, nil
}

// DecodeID extracts the id of a freshly started session.
func DecodeID(raw any) (string, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: start payload is %T, want object", ErrValidation, raw)
	}

	obj = unwrapEnvelope(obj)

	var w wireID
	if err := decodeWeak(obj, &w); err != nil {
		return "", fmt.Errorf("%w: decode session id: %v", ErrValidation, err)
	}

	for _, candidate := range []string{w.ID, w.SessionID, w.InterviewID} {
		if id := strings.TrimSpace(candidate); id != "" {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: start payload carries no session id", ErrValidation)
}

// DecodeSource maps a source artifact payload.
func DecodeSource(raw any) (*Source, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: source payload is %T, want object", ErrValidation, raw)
	}

	var w wireSource
	if err := decodeWeak(obj, &w); err != nil {
		return nil, fmt.Errorf("%w: decode source: %v", ErrValidation, err)
	}

	if strings.TrimSpace(w.ID) == "" {
		return nil, fmt.Errorf("%w: source payload carries no id", ErrValidation)
	}

	src := &Source{
		ID:         w.ID,
		FileName:   path.Base(strings.TrimSpace(w.File)),
		UploadedAt: parseTime(w.UploadedAt),
		Analyzed:   len(w.Analysis) > 0,
	}
	if src.FileName == "." || src.FileName == "/" {
		src.FileName = ""
	}

	if score, ok := w.Analysis["ai_score"]; ok {
		if f, err := strconv.ParseFloat(fmt.Sprintf("%v", score), 64); err == nil {
			src.Score = &f
		}
	}

	return src, nil
}

func (w *wireSession) toSession() (*Session, error) {
	id := strings.TrimSpace(w.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: session payload carries no id", ErrValidation)
	}

	wireSteps := w.Questions
	if len(wireSteps) == 0 {
		wireSteps = w.Steps
	}

	steps := make([]*Step, 0, len(wireSteps))
	for idx, ws := range wireSteps {
		step, err := ws.toStep(idx)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		steps = append(steps, step)
	}

	source := strings.TrimSpace(w.CV)
	if source == "" {
		source = strings.TrimSpace(w.SourceID)
	}

	s := &Session{
		ID:             id,
		SourceID:       source,
		Steps:          steps,
		CurrentIndex:   clampIndex(w.CurrentIndex, len(steps)),
		Completed:      w.Completed,
		CorrectAnswers: w.CorrectAnswers,
		Feedback:       strings.TrimSpace(w.Feedback),
		StartedAt:      parseTime(w.StartedAt),
	}

	// The store reports 0 for sessions it has not scored yet.
	if w.Completed && w.Score != nil {
		score := *w.Score
		s.Score = &score
	}

	return s, nil
}

func (ws *wireStep) toStep(idx int) (*Step, error) {
	step := &Step{
		ID:     strings.TrimSpace(ws.ID),
		Prompt: strings.TrimSpace(ws.QuestionText),
	}
	if step.ID == "" {
		step.ID = strconv.Itoa(idx)
	}
	if step.Prompt == "" {
		step.Prompt = strings.TrimSpace(ws.Prompt)
	}

	if len(ws.Choices) > 0 {
		byLabel := make(map[Label]string, len(ws.Choices))
		for key, text := range ws.Choices {
			label, err := ParseLabel(key)
			if err != nil {
				continue
			}
			byLabel[label] = text
		}
		for _, label := range Labels {
			if text, ok := byLabel[label]; ok && strings.TrimSpace(text) != "" {
				step.Choices = append(step.Choices, Choice{Label: label, Text: strings.TrimSpace(text)})
			}
		}
	} else {
		for i, text := range []string{ws.Choice1, ws.Choice2, ws.Choice3, ws.Choice4} {
			if strings.TrimSpace(text) == "" {
				continue
			}
			step.Choices = append(step.Choices, Choice{Label: Labels[i], Text: strings.TrimSpace(text)})
		}
	}

	if len(step.Choices) == 0 {
		return nil, fmt.Errorf("%w: step %s has no choices", ErrValidation, step.ID)
	}

	step.Answer = resolveChoice(step, ws.UserAnswer)
	step.Correct = resolveChoice(step, ws.CorrectAnswer)

	return step, nil
}

// resolveChoice accepts either a label or the full option text.
func resolveChoice(step *Step, raw string) Label {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if label, err := ParseLabel(raw); err == nil && step.HasChoice(label) {
		return label
	}

	for _, c := range step.Choices {
		if strings.EqualFold(c.Text, raw) {
			return c.Label
		}
	}

	return ""
}

func extractList(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range listKeys {
			if items, ok := v[key].([]any); ok {
				return items, nil
			}
		}
		return nil, fmt.Errorf("%w: list payload has none of %v", ErrValidation, listKeys)
	case nil:
		return []any{}, nil
	default:
		return nil, fmt.Errorf("%w: list payload is %T", ErrValidation, raw)
	}
}

func unwrapEnvelope(obj map[string]any) map[string]any {
	if _, ok := obj["id"]; ok {
		return obj
	}
	for _, key := range envelopeKeys {
		if inner, ok := obj[key].(map[string]any); ok {
			return inner
		}
	}
	return obj
}

func decodeWeak(input, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

func clampIndex(idx, n int) int {
	if n == 0 || idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
