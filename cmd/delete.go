package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <interview-id>",
	Short: "Delete an interview permanently",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		remove(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func remove(cmd *cobra.Command, id string) {
	ctx := context.Background()
	log, config := setup()

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Delete interview %s? This cannot be undone", id),
			IsConfirm: true,
		}

		if _, err := confirm.Run(); err != nil {
			if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
				log.Info("exiting", zap.String("reason", "deletion not confirmed"))
				return
			}
			log.Fatal("asking for confirmation", zap.Error(err))
		}
	}

	client := newClient(config, log)
	if err := client.Delete(ctx, id); err != nil {
		log.Fatal("deleting interview", zap.Error(err), fatalHint(err))
	}

	j, err := openJournal(config, log)
	if err != nil {
		log.Warn("position journal is unavailable", zap.Error(err))
		return
	}
	if j != nil {
		defer j.Close()
		if err := j.Forget(ctx, id); err != nil {
			log.Warn("failed to clear journaled position", zap.Error(err))
		}
	}
}
