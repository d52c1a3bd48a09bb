package remote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-coach/internal/logger"
	"github.com/spigell/cv-coach/internal/session"
)

// Start creates a session for an analysed source and returns its id.
func (c *Client) Start(ctx context.Context, sourceID string) (string, error) {
	if strings.TrimSpace(sourceID) == "" {
		return "", fmt.Errorf("%w: source id is required", session.ErrValidation)
	}

	data := map[string]any{
		"cv_id": numericOrString(sourceID),
	}

	raw, err := c.do(ctx, http.MethodPost, join(c.paths.Sessions, c.paths.Start), data)
	if err != nil {
		return "", err
	}

	id, err := session.DecodeID(raw)
	if err != nil {
		return "", err
	}

	c.logger.Info("session started", zap.String(logger.FieldSession, id), zap.String("source_id", sourceID))
	return id, nil
}

// Fetch returns the full session including its steps.
func (c *Client) Fetch(ctx context.Context, id string) (*session.Session, error) {
	raw, err := c.do(ctx, http.MethodGet, c.sessionPath(id, ""), nil)
	if err != nil {
		return nil, err
	}

	return session.Decode(raw)
}

// List returns every session of the signed-in user.
func (c *Client) List(ctx context.Context) ([]*session.Session, error) {
	raw, err := c.do(ctx, http.MethodGet, join(c.paths.Sessions), nil)
	if err != nil {
		return nil, err
	}

	return session.DecodeList(raw)
}

// SubmitAnswer records a choice for a step.
func (c *Client) SubmitAnswer(ctx context.Context, id, stepID string, choice session.Label) error {
	data := map[string]any{
		"question_id": numericOrString(stepID),
		"user_answer": string(choice),
	}

	_, err := c.do(ctx, http.MethodPost, c.sessionPath(id, c.paths.Answer), data)
	return err
}

// PersistPosition stores the current step index. Repeating it is harmless.
func (c *Client) PersistPosition(ctx context.Context, id string, index int) error {
	data := map[string]any{
		"current_question_index": index,
	}

	_, err := c.do(ctx, http.MethodPost, c.sessionPath(id, c.paths.Position), data)
	return err
}

// Delete removes the session permanently.
func (c *Client) Delete(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, c.sessionPath(id, ""), nil); err != nil {
		return err
	}

	c.logger.Info("session deleted", zap.String(logger.FieldSession, id))
	return nil
}

// numericOrString keeps integer ids numeric on the wire.
func numericOrString(s string) any {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
