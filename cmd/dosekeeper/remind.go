package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// remind command
var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Deliver dose reminders",
}

var remindRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan today's reminders and deliver them until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RemindRun")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Delivering reminders, press Ctrl-C to stop.")
		if err := a.RunReminders(ctx, profileName); err != nil {
			a.Fail()
			return err
		}
		return nil
	},
}

func init() {
	remindCmd.AddCommand(remindRunCmd)
}
