package remote

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	apiURL    = "http://127.0.0.1:8000/api/cv"
	userAgent = "spigell/cv-coach"
	timeout   = 10 * time.Second
)

// Authenticator hands out the bearer credential for each request. It reports
// missing or expired credentials itself.
type Authenticator interface {
	Bearer() (string, error)
}

// Paths are the route segments of the session store. Collection paths are
// joined to APIURL; action paths are joined to a session path.
type Paths struct {
	Sessions string `mapstructure:"sessions"`
	Start    string `mapstructure:"start"`
	Answer   string `mapstructure:"answer"`
	Position string `mapstructure:"position"`
	Sources  string `mapstructure:"sources"`
	// TrailingSlash appends "/" to every path, as Django routers expect.
	TrailingSlash bool `mapstructure:"trailing-slash"`
}

// DefaultPaths is the contract the tracker was designed against.
var DefaultPaths = Paths{
	Sessions: "/sessions",
	Start:    "/start",
	Answer:   "/answer",
	Position: "/position",
	Sources:  "/sources",
}

// Client talks to the remote session store.
type Client struct {
	auth    Authenticator
	logger  *zap.Logger
	limiter *rate.Limiter
	paths   Paths

	HTTPClient *http.Client
	UserAgent  string
	APIURL     string

	requestID func() string
}

type Option func(*Client)

// WithRateLimit paces requests to rps per second. Zero or less disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPaths overrides route segments. Empty fields keep their defaults.
func WithPaths(p Paths) Option {
	return func(c *Client) {
		c.paths = mergePaths(DefaultPaths, p)
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

func New(url string, auth Authenticator, logger *zap.Logger, opts ...Option) *Client {
	if url == "" {
		url = apiURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		auth:   auth,
		logger: logger,
		paths:  DefaultPaths,
		APIURL: url,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: userAgent,
		requestID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func mergePaths(base, override Paths) Paths {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}

	return Paths{
		Sessions:      pick(base.Sessions, override.Sessions),
		Start:         pick(base.Start, override.Start),
		Answer:        pick(base.Answer, override.Answer),
		Position:      pick(base.Position, override.Position),
		Sources:       pick(base.Sources, override.Sources),
		TrailingSlash: override.TrailingSlash,
	}
}
