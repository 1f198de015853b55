package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
)

func newSnapshotCmd(a *app) *cobra.Command {
	var (
		all    bool
		status bool
		start  string
		end    string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Rebuild the stored performance history",
		Long: `Replays the transaction history and replaces the stored daily snapshots
the history endpoint serves. With --status nothing is rebuilt; the number of
stored snapshots in the range is printed instead.`,
		Args: cobra.NoArgs,
		RunE: a.withServices(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if status {
				from, to, err := request.ParseDateRange(start, end, true)
				if err != nil {
					return err
				}
				if from.IsZero() {
					from = time.Unix(0, 0).UTC()
				}
				n, err := a.services.Snapshot.Count(ctx, a.userID, from, to)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d snapshots between %s and %s\n", n, from.Format(request.DateLayout), to.Format(request.DateLayout))
				return nil
			}

			if all {
				if err := a.services.Snapshot.RefreshAll(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "Refreshed snapshots for all users")
				return nil
			}

			n, err := a.services.Snapshot.Refresh(ctx, a.userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Stored %d snapshots\n", n)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&all, "all", false, "Refresh every user")
	cmd.Flags().BoolVar(&status, "status", false, "Count stored snapshots instead of refreshing")
	cmd.Flags().StringVar(&start, "start", "", "First date counted by --status (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last date counted by --status (YYYY-MM-DD, defaults to today)")
	return cmd
}
