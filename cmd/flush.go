package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Re-send interview positions saved while the store was unreachable",
	Run: func(_ *cobra.Command, _ []string) {
		flush()
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)
}

func flush() {
	ctx := context.Background()
	log, config := setup()

	j, err := openJournal(config, log)
	if err != nil {
		log.Fatal("opening position journal", zap.Error(err))
	}
	if j == nil {
		log.Info("exiting", zap.String("reason", "journal is disabled in the configuration"))
		return
	}
	defer j.Close()

	pending, err := j.Pending(ctx)
	if err != nil {
		log.Fatal("reading position journal", zap.Error(err))
	}
	if len(pending) == 0 {
		fmt.Println("Nothing to flush.")
		return
	}

	delivered := flushJournal(ctx, j, newClient(config, log), log)
	fmt.Printf("Delivered %d of %d saved positions.\n", delivered, len(pending))
}
