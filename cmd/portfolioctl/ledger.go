package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// errLedgerInconsistent is returned by verify so the exit status reflects drift.
var errLedgerInconsistent = errors.New("stored lots do not match the transaction history")

func newLotsCmd(a *app) *cobra.Command {
	var holding, account string

	cmd := &cobra.Command{
		Use:   "lots",
		Short: "List open tax lots",
		Args:  cobra.NoArgs,
		RunE: a.withServices(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filter := model.LotFilter{AccountID: account}
			if holding != "" {
				h, err := a.services.Allocation.FindHolding(ctx, a.userID, holding)
				if err != nil {
					return err
				}
				filter.HoldingID = h.ID
			}

			lots, err := a.services.Ledger.GetOpenLots(ctx, a.userID, filter)
			if err != nil {
				return err
			}
			holdings, err := a.services.Allocation.GetHoldings(ctx, a.userID)
			if err != nil {
				return err
			}
			accounts, err := a.services.Allocation.GetAccounts(ctx, a.userID)
			if err != nil {
				return err
			}

			tickers := tickerIndex(holdings)
			names := accountIndex(accounts)
			rows := make([][]string, 0, len(lots))
			for _, lot := range lots {
				rows = append(rows, []string{
					tickers[lot.HoldingID],
					orDash(names[lot.AccountID]),
					lot.AcquiredAt.Format(request.DateLayout),
					lot.RemainingQuantity.String(),
					formatDecimalMoney(lot.CostBasisPerUnit),
					formatDecimalMoney(lot.CostBasis()),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"Ticker", "Account", "Acquired", "Quantity", "Unit Cost", "Cost Basis"}, rows)
			return nil
		}),
	}

	cmd.Flags().StringVar(&holding, "holding", "", "Holding ticker or id")
	cmd.Flags().StringVar(&account, "account", "", "Account id")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay the transaction history and compare it with the stored lots",
		Args:  cobra.NoArgs,
		RunE: a.withServices(func(cmd *cobra.Command, args []string) error {
			report, err := a.services.Replay.Verify(cmd.Context(), a.userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Transactions %d  stored lots %d  replayed lots %d\n",
				report.Transactions, report.StoredLots, report.ReplayedLots)
			if report.Consistent {
				fmt.Fprintln(out, "Ledger is consistent")
				return nil
			}

			rows := make([][]string, 0, len(report.Missing)+len(report.Unexpected)+len(report.Mismatched))
			for _, lot := range report.Missing {
				rows = append(rows, []string{"missing", lot.TransactionID, "-", lot.RemainingQuantity.String()})
			}
			for _, lot := range report.Unexpected {
				rows = append(rows, []string{"unexpected", lot.TransactionID, lot.RemainingQuantity.String(), "-"})
			}
			for _, m := range report.Mismatched {
				rows = append(rows, []string{"mismatched", m.TransactionID,
					m.Stored.RemainingQuantity.String(), m.Replayed.RemainingQuantity.String()})
			}
			renderTable(out, []string{"Problem", "Transaction", "Stored", "Replayed"}, rows)
			return errLedgerInconsistent
		}),
	}
}
