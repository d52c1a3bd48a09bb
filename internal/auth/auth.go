package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spigell/cv-coach/internal/secrets"
)

var (
	ErrMissingCredential = errors.New("credential is missing")
	ErrExpiredCredential = errors.New("credential has expired")
)

// Context carries the signed-in user's credential. It is built once at start-up
// and handed to every collaborator that talks to the store.
type Context struct {
	token     string
	userID    string
	expiresAt time.Time
	now       func() time.Time
}

type Option func(*Context)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		c.now = now
	}
}

// New inspects the token. JWTs are decoded without verification to read the
// expiry and user claims; the store remains the authority on validity. Opaque
// tokens are accepted as is and never expire client-side.
func New(token string, opts ...Option) (*Context, error) {
	c := &Context{
		token: strings.TrimSpace(token),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.token == "" {
		return c, nil
	}

	if strings.Count(c.token, ".") != 2 {
		return c, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.expiresAt = exp.Time
	}

	c.userID = userFromClaims(claims)

	return c, nil
}

// Load reads the credential from src and builds a Context around it.
func Load(src secrets.Source, opts ...Option) (*Context, error) {
	token, err := secrets.Load(src)
	if err != nil {
		return nil, err
	}

	return New(token, opts...)
}

// Bearer returns the token to put in the Authorization header, or an error when
// the credential is absent or expired.
func (c *Context) Bearer() (string, error) {
	if c == nil || c.token == "" {
		return "", ErrMissingCredential
	}

	if !c.expiresAt.IsZero() && !c.now().Before(c.expiresAt) {
		return "", fmt.Errorf("%w at %s", ErrExpiredCredential, c.expiresAt.UTC().Format(time.RFC3339))
	}

	return c.token, nil
}

// UserID is the user claim of a JWT, empty for opaque tokens.
func (c *Context) UserID() string {
	if c == nil {
		return ""
	}
	return c.userID
}

// ExpiresAt is zero when the token carries no expiry.
func (c *Context) ExpiresAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.expiresAt
}

func userFromClaims(claims jwt.MapClaims) string {
	// Django simplejwt puts the primary key into user_id.
	switch raw := claims["user_id"].(type) {
	case nil:
	case float64:
		return strconv.FormatFloat(raw, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", raw))
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
