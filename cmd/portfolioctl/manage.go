package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	var typ string
	var taxAdvantaged bool
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Open an account",
		Args:  cobra.ExactArgs(1),
		RunE: a.withServices(func(cmd *cobra.Command, args []string) error {
			status := model.TaxStatusTaxable
			if taxAdvantaged {
				status = model.TaxStatusTaxAdvantaged
			}
			account, err := a.services.Allocation.CreateAccount(cmd.Context(), model.Account{
				UserID:    a.userID,
				Name:      args[0],
				Type:      typ,
				TaxStatus: status,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", account.ID, account.Name, account.TaxStatus)
			return nil
		}),
	}
	add.Flags().StringVar(&typ, "type", "", "Free-form account type, for example ira or brokerage")
	add.Flags().BoolVar(&taxAdvantaged, "tax-advantaged", false, "Gains in the account are not taxed")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: a.withServices(func(cmd *cobra.Command, args []string) error {
			accounts, err := a.services.Allocation.GetAccounts(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(accounts))
			for _, acc := range accounts {
				rows = append(rows, []string{acc.ID, acc.Name, orDash(acc.Type), string(acc.TaxStatus)})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Name", "Type", "Tax Status"}, rows)
			return nil
		}),
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newHoldingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holding",
		Short: "Manage holdings",
	}

	var h model.Holding
	add := &cobra.Command{
		Use:   "add TICKER",
		Short: "Register a holding",
		Args:  cobra.ExactArgs(1),
		RunE: a.withServices(func(cmd *cobra.Command, args []string) error {
			h.UserID = a.userID
			h.Ticker = args[0]
			holding, err := a.services.Allocation.CreateHolding(cmd.Context(), h)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", holding.ID, holding.Ticker)
			return nil
		}),
	}
	add.Flags().StringVar(&h.Name, "name", "", "Display name")
	add.Flags().StringVar(&h.Type, "type", "", "Asset type tag")
	add.Flags().StringVar(&h.Subtype, "subtype", "", "Asset subtype tag")
	add.Flags().StringVar(&h.Geography, "geography", "", "Geography tag")
	add.Flags().StringVar(&h.Size, "size", "", "Size tag")
	add.Flags().StringVar(&h.Factor, "factor", "", "Factor tag")
	add.Flags().StringVar(&h.GroupID, "group", "", "Group id")

	list := &cobra.Command{
		Use:   "list",
		Short: "List holdings",
		Args:  cobra.NoArgs,
		RunE: a.withServices(func(cmd *cobra.Command, args []string) error {
			holdings, err := a.services.Allocation.GetHoldings(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(holdings))
			for _, hd := range holdings {
				target := "-"
				if hd.Target != nil {
					target = formatPct(hd.Target.TargetPct)
				}
				rows = append(rows, []string{hd.ID, hd.Ticker, orDash(hd.Name), orDash(hd.GroupID), target})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "Ticker", "Name", "Group", "Target"}, rows)
			return nil
		}),
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newPriceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Manage prices",
	}

	set := &cobra.Command{
		Use:   "set HOLDING DATE PRICE",
		Short: "Store the price of a holding on a date",
		Long:  `HOLDING is a ticker or a holding id, DATE is YYYY-MM-DD. An existing price for the same date is replaced.`,
		Args:  cobra.ExactArgs(3),
		RunE: a.withServices(func(cmd *cobra.Command, args []string) error {
			date, err := time.Parse(request.DateLayout, args[1])
			if err != nil {
				return apperrors.NewInputError("date", "must be a date in YYYY-MM-DD format")
			}
			price, err := strconv.ParseFloat(args[2], 64)
			if err != nil || price <= 0 {
				return apperrors.NewInputError("price", "must be a positive number")
			}

			holding, err := a.services.Allocation.FindHolding(cmd.Context(), a.userID, args[0])
			if err != nil {
				return err
			}
			if _, err := a.services.Price.SavePrices(cmd.Context(), a.userID, []model.PricePoint{
				{HoldingID: holding.ID, Date: date, Price: price},
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", holding.Ticker, args[1], formatMoney(price))
			return nil
		}),
	}

	cmd.AddCommand(set)
	return cmd
}
