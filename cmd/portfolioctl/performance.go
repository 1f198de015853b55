package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/request"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

func newPerformanceCmd(a *app) *cobra.Command {
	var (
		start     string
		end       string
		lens      string
		metric    string
		benchmark string
		aggregate bool
	)

	cmd := &cobra.Command{
		Use:   "performance",
		Short: "Summarize returns per lens over a date range",
		Args:  cobra.NoArgs,
		RunE: a.withServices(func(cmd *cobra.Command, args []string) error {
			req, err := request.ParsePerformanceQuery(a.userID, start, end, lens,
				strconv.FormatBool(aggregate), metric, benchmark)
			if err != nil {
				return err
			}

			report, err := a.services.Performance.GetPerformance(cmd.Context(), *req)
			if err != nil {
				return err
			}

			renderPerformance(cmd, report)
			return nil
		}),
	}

	cmd.Flags().StringVar(&start, "start", "", "First date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&lens, "lens", string(model.LensGroup), "Grouping: group, type, subtype, geography, size, factor, account or holding")
	cmd.Flags().StringVar(&metric, "metric", string(model.MetricTWR), "Headline return: twr or mwr")
	cmd.Flags().StringVar(&benchmark, "benchmark", "", "Benchmark ticker (defaults to BENCHMARK_TICKER)")
	cmd.Flags().BoolVar(&aggregate, "aggregate", false, "Add a total series over all holdings")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func renderPerformance(cmd *cobra.Command, report *model.PerformanceReport) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s to %s by %s (%s)\n\n", report.Start, report.End, report.Lens, report.Metric)

	rows := make([][]string, 0, len(report.Series))
	for _, s := range report.Series {
		value := "-"
		if n := len(s.Points); n > 0 {
			value = formatMoney(s.Points[n-1].PortfolioValue)
		}
		mwr := "-"
		if s.Summary.MWR != nil {
			mwr = formatPct(*s.Summary.MWR)
		}
		rows = append(rows, []string{
			orDash(s.Label), value, formatMoney(s.Summary.NetGain), formatPct(s.Summary.TotalReturn),
			formatPct(s.Summary.AnnualizedReturn), mwr,
		})
	}
	renderTable(out, []string{"Series", "Value", "Net Gain", "Return", "Annualized", "MWR"}, rows)

	if report.Benchmark != nil && len(report.Benchmark.Points) > 0 {
		last := report.Benchmark.Points[len(report.Benchmark.Points)-1]
		fmt.Fprintf(out, "\nBenchmark %s: %s\n", report.Benchmark.Ticker, formatPct(last.Return))
	}

	renderWarnings(out, report.Warnings)
}
