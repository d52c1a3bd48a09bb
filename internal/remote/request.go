package remote

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-coach/internal/logger"
	"github.com/spigell/cv-coach/internal/session"
	"github.com/spigell/cv-coach/internal/utils"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	requestIDHeader = "X-Request-ID"
	maxErrorDetail  = 200
)

// do sends a JSON request and returns the decoded body, nil for empty bodies.
// Failures carry one of the session error kinds.
func (c *Client) do(ctx context.Context, method, path string, payload any) (any, error) {
	token, err := c.auth.Bearer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrUnauthorized, err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request: %v", session.ErrValidation, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", session.ErrValidation, err)
	}

	req = c.setHeaders(req, token)
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.request(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s %s: %v", session.ErrTransientIO, method, path, err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: read body: %v", session.ErrTransientIO, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(method, path, resp, data)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %s %s: decode body: %v", session.ErrValidation, method, path, err)
	}

	return decoded, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.String(logger.FieldRequest, req.Header.Get(requestIDHeader)),
	)

	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set(requestIDHeader, c.requestID())

	return req
}

func (c *Client) url(path string) string {
	u := strings.TrimRight(c.APIURL, "/") + path
	if c.paths.TrailingSlash && !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

func (c *Client) sessionPath(id string, action string) string {
	return join(c.paths.Sessions, url.PathEscape(id), action)
}

func join(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		b.WriteString("/")
		b.WriteString(p)
	}
	return b.String()
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return io.ReadAll(reader)
}

func statusError(method, path string, resp *http.Response, body []byte) error {
	var kind error
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = session.ErrUnauthorized
	case code == http.StatusNotFound || code == http.StatusGone:
		kind = session.ErrNotFound
	case code == http.StatusConflict:
		kind = session.ErrConflict
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		kind = session.ErrTransientIO
	default:
		kind = session.ErrValidation
	}

	if detail := errorDetail(body); detail != "" {
		return fmt.Errorf("%w: %s %s: %s: %s", kind, method, path, resp.Status, detail)
	}
	return fmt.Errorf("%w: %s %s: %s", kind, method, path, resp.Status)
}

// errorDetail pulls a human readable message out of an error body.
func errorDetail(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return utils.TruncateForLog(string(body), maxErrorDetail)
	}

	for _, key := range []string{"detail", "error", "message"} {
		if v, ok := payload[key]; ok && v != nil {
			return utils.TruncateForLog(fmt.Sprintf("%v", v), maxErrorDetail)
		}
	}

	return ""
}
