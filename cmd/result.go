package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cv-coach/internal/session"
)

var resultCmd = &cobra.Command{
	Use:   "result <interview-id>",
	Short: "Show the results of an interview",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(resultCmd)

	resultCmd.Flags().StringP("output", "o", outputText, "output format: text, json or yaml")
	resultCmd.Flags().BoolP("feedback", "f", false, "ask the AI coach for study feedback on a finished interview")
}

func result(cmd *cobra.Command, id string) {
	ctx := context.Background()
	log, config := setup()

	format, _ := cmd.Flags().GetString("output")
	if err := checkOutput(format); err != nil {
		log.Fatal("parsing flags", zap.Error(err))
	}

	client := newClient(config, log)

	s, err := client.Fetch(ctx, id)
	if err != nil {
		log.Fatal("getting interview", zap.Error(err), fatalHint(err))
	}

	view := newResultView(s)

	if withFeedback, _ := cmd.Flags().GetBool("feedback"); withFeedback {
		if reason := coachSkipReason(s); reason != "" {
			log.Warn("skipping ai coach", zap.String("reason", reason))
		} else {
			reviewer, err := newReviewer(ctx, config.AI, log)
			if err != nil {
				log.Fatal("building ai coach", zap.Error(err))
			}

			feedback, err := reviewer.Review(ctx, s)
			if err != nil {
				log.Warn("ai coach failed, showing results without it", zap.Error(err))
			} else {
				view.Coach = feedback
			}
		}
	}

	if err := renderResult(os.Stdout, format, view); err != nil {
		log.Fatal("rendering result", zap.Error(err))
	}
}

// coachSkipReason is empty when the AI coach should review s.
func coachSkipReason(s *session.Session) string {
	switch {
	case !s.Completed:
		return "interview is not completed yet"
	case s.Feedback != "":
		return "the store already has feedback for this interview"
	}
	return ""
}
