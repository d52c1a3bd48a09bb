package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cv-coach/internal/journal"
	"github.com/spigell/cv-coach/internal/logger"
	"github.com/spigell/cv-coach/internal/remote"
	"github.com/spigell/cv-coach/internal/stepper"
	"github.com/spigell/cv-coach/internal/tracker"
)

const exitPersistTimeout = 2 * time.Second

var takeCmd = &cobra.Command{
	Use:   "take <interview-id>",
	Short: "Take or resume an interview at the last saved question",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		take(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(takeCmd)

	takeCmd.Flags().IntP("start-from", "s", 0, "resume from this question number (1-based) instead of the saved one")
}

type stepperOutcome struct {
	result *stepper.Result
	err    error
}

func take(cmd *cobra.Command, id string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, config := setup()
	log = logger.WithSession(log, id)

	startFrom, _ := cmd.Flags().GetInt("start-from")
	hint, err := parseIndex(startFrom)
	if err != nil {
		log.Fatal("parsing flags", zap.Error(err))
	}

	client := newClient(config, log)
	retry := retrySettings(config)

	opts := []tracker.Option{
		tracker.WithPositionRetry(retry.PositionAttempts, retry.Backoff),
	}

	j, err := openJournal(config, log)
	if err != nil {
		log.Warn("position journal is unavailable", zap.Error(err))
	}
	if j != nil {
		defer j.Close()
		flushJournal(ctx, j, client, log)
		opts = append(opts, tracker.WithJournal(j))
	}

	tr := tracker.New(client, log, opts...)

	s, err := tr.Load(ctx, id, hint)
	if err != nil {
		log.Fatal("loading interview", zap.Error(err), fatalHint(err))
	}

	if tr.State() == tracker.Completed {
		log.Info("interview is already completed, showing results")
		if err := renderResult(os.Stdout, outputText, newResultView(s)); err != nil {
			log.Fatal("rendering result", zap.Error(err))
		}
		return
	}

	log.Info("interview loaded",
		zap.Int("question", s.CurrentIndex+1),
		zap.Int("questions", s.Len()),
		zap.Int("answered", s.Answered()),
	)

	st := stepper.New(tr, &stepper.PromptChooser{}, s.Len(), log,
		stepper.WithRetry(retry.AnswerAttempts, retry.Backoff),
	)

	// The stepper keeps its own context so an answer already on the wire is not
	// cut off by the signal; the released tracker ignores its outcome.
	done := make(chan stepperOutcome, 1)
	go func() {
		res, err := st.Run(context.WithoutCancel(ctx))
		done <- stepperOutcome{result: res, err: err}
	}()

	select {
	case <-ctx.Done():
		exitCtx, cancel := context.WithTimeout(context.Background(), exitPersistTimeout)
		defer cancel()

		sent := tr.PersistOnExit(exitCtx)
		tr.Release()

		select {
		case <-sent:
		case <-exitCtx.Done():
		}

		log.Info("interrupted, progress saved", zap.Int("question", tr.Frontier()+1))

	case out := <-done:
		tr.Release()
		if out.err != nil {
			log.Fatal("taking interview", zap.Error(out.err), fatalHint(out.err))
		}

		if out.result.Outcome == stepper.OutcomeQuit {
			log.Info("progress saved, run the take command again to resume", zap.Int("question", tr.Frontier()+1))
			return
		}

		if err := renderResult(os.Stdout, outputText, newResultView(out.result.Final)); err != nil {
			log.Fatal("rendering result", zap.Error(err))
		}
	}
}

func retrySettings(config *Config) RetryConfig {
	settings := RetryConfig{AnswerAttempts: 3, PositionAttempts: 2, Backoff: 500 * time.Millisecond}
	if config.Retry == nil {
		return settings
	}

	if config.Retry.AnswerAttempts > 0 {
		settings.AnswerAttempts = config.Retry.AnswerAttempts
	}
	if config.Retry.PositionAttempts > 0 {
		settings.PositionAttempts = config.Retry.PositionAttempts
	}
	if config.Retry.Backoff > 0 {
		settings.Backoff = config.Retry.Backoff
	}

	return settings
}

// flushJournal re-sends positions left over from interrupted runs.
func flushJournal(ctx context.Context, j *journal.Journal, client *remote.Client, log *zap.Logger) int {
	delivered, err := j.Flush(ctx, client)
	if err != nil {
		log.Warn("some journaled positions are still pending", zap.Error(err))
	}
	if delivered > 0 {
		log.Info("journaled positions delivered", zap.Int("count", delivered))
	}
	return delivered
}
