package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
)

func newRebalanceCmd(a *app) *cobra.Command {
	var (
		groups   string
		accounts string
		asOf     string
		noTax    bool
	)

	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Show the trades that bring the portfolio back to its targets",
		Long: `Values every holding at the latest price, compares it with the group and
holding targets and lists the buys and sells needed. Sells are split over
accounts with the least estimated tax unless --no-tax is given.`,
		Args: cobra.NoArgs,
		RunE: a.withServices(func(cmd *cobra.Command, args []string) error {
			taxAware := ""
			if noTax {
				taxAware = "false"
			}
			q, err := request.ParseRebalanceQuery(groups, accounts, asOf, taxAware)
			if err != nil {
				return err
			}

			report, err := a.services.Rebalance.GetRebalanceReport(cmd.Context(), service.RebalanceRequest{
				UserID:   a.userID,
				Filter:   q.Filter,
				AsOf:     q.AsOf,
				TaxAware: q.TaxAware,
			})
			if err != nil {
				return err
			}

			renderRebalance(cmd, report)
			return nil
		}),
	}

	cmd.Flags().StringVar(&groups, "group", "", "Comma-separated group ids to include")
	cmd.Flags().StringVar(&accounts, "account", "", "Comma-separated account ids to include")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Valuation date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().BoolVar(&noTax, "no-tax", false, "Skip tax-aware account selection")
	return cmd
}

func renderRebalance(cmd *cobra.Command, report *model.RebalanceReport) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "As of %s  value %s  cash %s  cash needed %s\n\n",
		report.AsOf.Format(request.DateLayout), formatMoney(report.TotalValue),
		formatMoney(report.TotalCash), formatMoney(report.CashNeeded))

	groupRows := make([][]string, 0, len(report.Groups))
	for _, g := range report.Groups {
		groupRows = append(groupRows, []string{
			g.Name, formatMoney(g.Value), formatPct(g.CurrentPct), formatPct(g.TargetPct), formatPct(g.DriftPct), string(g.Action),
		})
	}
	renderTable(out, []string{"Group", "Value", "Current", "Target", "Drift", "Action"}, groupRows)
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(report.Holdings))
	for _, h := range report.Holdings {
		amount := "-"
		if h.Action != model.ActionHold {
			amount = formatMoney(h.Amount)
		}
		rows = append(rows, []string{
			h.Ticker, formatMoney(h.CurrentValue), formatPct(h.CurrentPct), formatPct(h.ImpliedOverallTarget),
			formatPct(h.DriftPct), string(h.Action), amount, recommendation(h),
		})
	}
	renderTable(out, []string{"Ticker", "Value", "Current", "Target", "Drift", "Action", "Amount", "From"}, rows)

	renderWarnings(out, report.Warnings)
}

// recommendation summarizes where a sell should come from and its tax.
func recommendation(h model.HoldingAllocation) string {
	if len(h.RecommendedAccounts) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(h.RecommendedAccounts))
	for _, r := range h.RecommendedAccounts {
		parts = append(parts, fmt.Sprintf("%s %s", orDash(r.AccountName), formatMoney(r.Amount)))
	}
	summary := strings.Join(parts, ", ")
	if h.TaxImpact != nil {
		summary += " (tax " + formatMoney(h.TaxImpact.Net) + ")"
	}
	return summary
}
