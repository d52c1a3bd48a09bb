package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-coach/internal/auth"
	"github.com/spigell/cv-coach/internal/coach"
	"github.com/spigell/cv-coach/internal/journal"
	"github.com/spigell/cv-coach/internal/logger"
	"github.com/spigell/cv-coach/internal/remote"
	"github.com/spigell/cv-coach/internal/secrets"
	"github.com/spigell/cv-coach/internal/session"
)

const tokenHint = "set CV_COACH_TOKEN_FILE or CV_COACH_TOKEN, or the 'token-file' key in the configuration file"

// setup builds the logger and reads the configuration. Both are required by every
// command that talks to the store.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Debug("starting with config",
		zap.String("version", version),
		zap.String("api_url", config.APIURL),
		zap.String("token_file", config.TokenFile),
		zap.Duration("timeout", config.Timeout),
		zap.Float64("rate_limit", config.RateLimit),
		zap.String("journal", config.Journal),
	)

	return logger, config
}

func newAuth(config *Config, logger *zap.Logger) *auth.Context {
	authCtx, err := auth.Load(secrets.Source{
		Name:  "access token",
		File:  config.TokenFile,
		Value: config.Token,
	})
	if err != nil {
		logger.Fatal("loading access token", zap.Error(err), zap.String("hint", tokenHint))
	}

	if id := authCtx.UserID(); id != "" {
		logger.Debug("signed in", zap.String("user_id", id), zap.Time("expires_at", authCtx.ExpiresAt()))
	}

	return authCtx
}

func newClient(config *Config, logger *zap.Logger) *remote.Client {
	opts := []remote.Option{
		remote.WithRateLimit(config.RateLimit, 1),
	}
	if config.Paths != nil {
		opts = append(opts, remote.WithPaths(*config.Paths))
	}
	if config.Timeout > 0 {
		opts = append(opts, remote.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}

	client := remote.New(config.APIURL, newAuth(config, logger), logger, opts...)

	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}
	return client
}

func openJournal(config *Config, logger *zap.Logger) (*journal.Journal, error) {
	if config.Journal == "" {
		return nil, nil
	}
	return journal.Open(secrets.ExpandHome(config.Journal), logger)
}

func newReviewer(ctx context.Context, config *AIConfig, logger *zap.Logger) (*coach.Reviewer, error) {
	if config == nil || !config.Enabled {
		return nil, errors.New("ai feedback is disabled, set ai.enabled in the configuration file")
	}

	if config.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  config.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: config.Gemini.APIKey,
	})
	if err != nil {
		return nil, err
	}

	generator, err := coach.NewGenerator(ctx, apiKey, config.Gemini.Model)
	if err != nil {
		return nil, err
	}

	logger.Debug("ai feedback enabled", zap.String("model", generator.Model()))
	return coach.NewReviewer(generator, logger, config.Gemini.MaxLogLength), nil
}

// fatalHint adds a remediation hint for the error kinds a user can act on.
func fatalHint(err error) zap.Field {
	switch {
	case errors.Is(err, session.ErrUnauthorized):
		return zap.String("hint", "the access token is missing, expired or rejected; sign in again. "+tokenHint)
	case errors.Is(err, session.ErrNotFound):
		return zap.String("hint", "check the id with the list command")
	case errors.Is(err, session.ErrTransientIO):
		return zap.String("hint", "the store is unreachable, try again later")
	default:
		return zap.Skip()
	}
}

// parseIndex turns a one-based question number into a resume hint. Zero means unset.
func parseIndex(number int) (*int, error) {
	if number == 0 {
		return nil, nil
	}
	if number < 0 {
		return nil, fmt.Errorf("%w: start-from must be positive, got %d", session.ErrValidation, number)
	}

	idx := number - 1
	return &idx, nil
}
