package cli

import (
	"github.com/spf13/cobra"
)

func newBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show account balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			snap, err := rt.service.Snapshot(cmd.Context(), nil)
			if err != nil {
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newPositionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Show current positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			snap, err := rt.service.Snapshot(cmd.Context(), nil)
			if err != nil {
				return err
			}
			renderPositions(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent trade audit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			records, err := rt.repo.FindRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "maximum number of records to show")
	return cmd
}
