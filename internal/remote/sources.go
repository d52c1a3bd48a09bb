package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spigell/cv-coach/internal/session"
)

// Source returns the analysed artifact a session was started from.
func (c *Client) Source(ctx context.Context, id string) (*session.Source, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: source id is required", session.ErrValidation)
	}

	raw, err := c.do(ctx, http.MethodGet, join(c.paths.Sources, url.PathEscape(id)), nil)
	if err != nil {
		return nil, err
	}

	return session.DecodeSource(raw)
}
