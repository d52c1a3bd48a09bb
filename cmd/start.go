package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startCmd = &cobra.Command{
	Use:   "start <cv-id>",
	Short: "Start a new interview for an analysed CV",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		start(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().BoolP("take", "t", false, "take the interview right after it is created")
}

func start(cmd *cobra.Command, sourceID string) {
	ctx := context.Background()
	log, config := setup()
	client := newClient(config, log)

	src, err := client.Source(ctx, sourceID)
	if err != nil {
		log.Fatal("getting cv", zap.Error(err), fatalHint(err))
	}

	if !src.Analyzed {
		log.Warn("cv has no analysis yet, the store may refuse to generate questions", zap.String("cv", src.FileName))
	}

	id, err := client.Start(ctx, sourceID)
	if err != nil {
		log.Fatal("starting interview", zap.Error(err), fatalHint(err))
	}

	fmt.Println(id)

	if takeNow, _ := cmd.Flags().GetBool("take"); takeNow {
		take(takeCmd, id)
	}
}
