package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stockpilot/internal/scheduler"
)

func newScheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run enabled strategies on their cron schedules until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			sched, err := scheduler.New(rt.cfg, rt.service, rt.logger)
			if err != nil {
				return err
			}

			sched.Start()
			fmt.Fprintln(cmd.OutOrStdout(), "Scheduler running. Press Ctrl+C to stop.")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			fmt.Fprintln(cmd.OutOrStdout(), "Shutting down scheduler...")
			sched.Stop()
			return nil
		},
	}
}
